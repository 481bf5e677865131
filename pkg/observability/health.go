package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/adminkit/warden/pkg/httputil"
)

// Pinger is anything that can report backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

// Ping calls the wrapped function.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the reachability of the registered backends.
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler with a per-check timeout.
func NewHealthHandler(timeout time.Duration) *HealthHandler {
	return &HealthHandler{
		checks:  make(map[string]Pinger),
		timeout: timeout,
	}
}

// Register adds a named backend check.
func (h *HealthHandler) Register(name string, p Pinger) {
	h.checks[name] = p
}

// ServeHTTP runs every registered check and reports per-backend status.
// Any failing check turns the response into a 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	httputil.WriteJSON(w, status, map[string]interface{}{
		"status": http.StatusText(status),
		"checks": results,
	})
}
