package authz

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/contextkeys"
	"github.com/adminkit/warden/pkg/httputil"
	"github.com/adminkit/warden/pkg/observability"
)

// PermissionLookup is the single cache query the authorizer needs.
type PermissionLookup interface {
	Lookup(ctx context.Context, userID int64, resourcePath string) (*ResourcePermission, error)
}

// Authorizer is the per-request decision middleware. It is a pure
// function of cache state: no relational queries, nothing slower than
// one cache lookup per request.
type Authorizer struct {
	cache   PermissionLookup
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewAuthorizer creates the authorization middleware. metrics may be nil.
func NewAuthorizer(cache PermissionLookup, log *logrus.Logger, metrics *observability.Metrics) *Authorizer {
	return &Authorizer{
		cache:   cache,
		log:     log,
		metrics: metrics,
	}
}

// Handler wraps an HTTP handler with the allow/deny decision. The
// credential middleware must run first: requests without a user id in
// context are rejected as unauthenticated.
func (a *Authorizer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := contextkeys.UserID(r.Context())
		if !ok {
			httputil.WriteUnauthorized(w, "Unauthorized.")
			return
		}

		path := NormalizePath(r.URL.Path)
		permission, err := a.cache.Lookup(r.Context(), userID, path)
		if err != nil {
			a.log.WithError(err).Error("authorization lookup failed")
			httputil.WriteInternalError(w, err)
			return
		}

		if permission == nil || !allows(permission, r.Method) {
			a.metrics.IncAuthzDecision(r.Method, "deny")
			a.log.WithFields(logrus.Fields{
				"method":   r.Method,
				"user_id":  userID,
				"resource": path,
			}).Debug("authorization denied")
			httputil.WriteForbidden(w, "Forbidden.")
			return
		}

		a.metrics.IncAuthzDecision(r.Method, "allow")
		next.ServeHTTP(w, r)
	})
}

// allows maps the HTTP verb onto the permission flags. Holding any
// grant row at all permits GET; unknown verbs are denied.
func allows(p *ResourcePermission, method string) bool {
	switch method {
	case http.MethodGet:
		return true
	case http.MethodPost:
		return p.Write
	case http.MethodPut, http.MethodPatch:
		return p.Update
	case http.MethodDelete:
		return p.Delete
	default:
		return false
	}
}
