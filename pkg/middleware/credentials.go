// Package middleware provides the HTTP middleware chain: request
// identity, bearer-token authentication and request logging. Resource
// authorization itself lives in pkg/authz.
package middleware

import (
	"net/http"
	"strings"

	"github.com/adminkit/warden/pkg/contextkeys"
	"github.com/adminkit/warden/pkg/httputil"
)

// TokenVerifier checks a bearer token and returns the user id it was
// issued for.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// Credentials authenticates requests by bearer token and stores the
// user id on the request context for the authorizer downstream.
type Credentials struct {
	tokens TokenVerifier
}

func NewCredentials(tokens TokenVerifier) *Credentials {
	return &Credentials{tokens: tokens}
}

// Handler wraps next with bearer-token authentication. Requests
// without a valid token are rejected before any authorization lookup
// happens.
func (c *Credentials) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.WriteUnauthorized(w, "Unauthorized.")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "Unauthorized.")
			return
		}

		userID, err := c.tokens.Verify(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "Unauthorized.")
			return
		}

		ctx := contextkeys.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
