package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/contextkeys"
	"github.com/adminkit/warden/pkg/observability"
)

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging emits one structured log line per request and feeds the
// request metrics.
func Logging(log *logrus.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, rec.status, duration)

			fields := logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": duration.Milliseconds(),
			}
			if id, ok := contextkeys.RequestID(r.Context()); ok {
				fields["request_id"] = id
			}
			if userID, ok := contextkeys.UserID(r.Context()); ok {
				fields["user_id"] = userID
			}
			log.WithFields(fields).Info("request handled")
		})
	}
}
