// Package observability provides the logging, metrics and health-check
// plumbing shared by every component.
package observability

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the structured application logger. Unknown levels
// fall back to info.
func NewLogger(level string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	log := logrus.New()
	log.SetOutput(output)
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
