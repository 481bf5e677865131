package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/adminkit/warden/pkg/contextkeys"
)

// RequestIDHeader carries the request id on both requests and
// responses. Inbound ids are trusted as-is so a gateway in front can
// correlate its own logs with ours.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an id, stores it on the context and
// echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
