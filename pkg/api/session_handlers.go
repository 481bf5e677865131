package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/authz"
	"github.com/adminkit/warden/pkg/httputil"
	"github.com/adminkit/warden/pkg/session"
)

// SessionHandlers handles login requests.
type SessionHandlers struct {
	resolver SessionResolver
	log      *logrus.Logger
}

type sessionResponse struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Email       string               `json:"email"`
	Token       string               `json:"token"`
	Permissions []permissionResponse `json:"permissions"`
}

type permissionResponse struct {
	Resource string `json:"resource"`
	Write    bool   `json:"write"`
	Update   bool   `json:"update"`
	Delete   bool   `json:"delete"`
}

// createSession handles POST /sessions.
func (h *SessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var problems []string
	if req.Email == "" {
		problems = append(problems, "Email is required.")
	}
	if req.Password == "" {
		problems = append(problems, "Password is required.")
	}
	if len(problems) > 0 {
		httputil.WriteValidationErrors(w, problems)
		return
	}

	sess, err := h.resolver.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, session.ErrInvalidCredentials) {
		httputil.WriteValidationErrors(w, []string{"Invalid credentials."})
		return
	}
	if err != nil {
		h.log.WithError(err).Error("login failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, sessionResponse{
		ID:          sess.ID,
		Name:        sess.Name,
		Email:       sess.Email,
		Token:       sess.Token,
		Permissions: toPermissionResponses(sess.Permissions),
	})
}

func toPermissionResponses(permissions []authz.ResourcePermission) []permissionResponse {
	out := make([]permissionResponse, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, permissionResponse{
			Resource: p.Resource,
			Write:    p.Write,
			Update:   p.Update,
			Delete:   p.Delete,
		})
	}
	return out
}
