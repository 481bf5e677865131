package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/httputil"
	"github.com/adminkit/warden/pkg/store"
)

// UserHandlers handles user management requests.
type UserHandlers struct {
	users UserService
	log   *logrus.Logger
}

// RegisterRoutes registers the user routes.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.listUsers).Methods("GET")
	router.HandleFunc("/users", h.createUser).Methods("POST")
	router.HandleFunc("/users/{id}", h.getUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.updateUser).Methods("PUT")
	router.HandleFunc("/users/{id}", h.deleteUser).Methods("DELETE")
}

type userRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Blocked              bool   `json:"blocked"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

type userResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Blocked bool   `json:"blocked"`
}

// validate checks the payload. Password rules apply only when
// required is set or a password was supplied.
func (req *userRequest) validate(passwordRequired bool) []string {
	var problems []string
	if len(req.Name) < 3 || len(req.Name) > 50 {
		problems = append(problems, "Name must be between 3 and 50 characters.")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		problems = append(problems, "Email must be a valid address.")
	}
	if passwordRequired || req.Password != "" {
		if len(req.Password) < 6 {
			problems = append(problems, "Password must be at least 6 characters.")
		}
		if req.Password != req.PasswordConfirmation {
			problems = append(problems, "Password confirmation does not match.")
		}
	}
	return problems
}

// listUsers handles GET /users.
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := store.UserFilter{
		Name:   r.URL.Query().Get("name"),
		Email:  r.URL.Query().Get("email"),
		Limit:  httputil.ParseQueryInt(r, "limit", 25),
		Offset: httputil.ParseQueryInt(r, "offset", 0),
	}

	users, total, err := h.users.List(r.Context(), filter)
	if err != nil {
		h.log.WithError(err).Error("list users failed")
		httputil.WriteInternalError(w, err)
		return
	}

	data := make([]userResponse, 0, len(users))
	for _, u := range users {
		data = append(data, userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Blocked: u.Blocked})
	}
	httputil.WriteSuccess(w, listResponse{Data: data, Total: total})
}

// createUser handles POST /users.
func (h *UserHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if problems := req.validate(true); len(problems) > 0 {
		httputil.WriteValidationErrors(w, problems)
		return
	}

	user, err := h.users.Create(r.Context(), req.Name, req.Email, req.Password)
	if errors.Is(err, store.ErrConflict) {
		httputil.WriteConflict(w, "Email is already in use.")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("create user failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, userResponse{ID: user.ID, Name: user.Name, Email: user.Email})
}

// getUser handles GET /users/{id}.
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "User not found.")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("get user failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Blocked: user.Blocked})
}

// updateUser handles PUT /users/{id}.
func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req userRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if problems := req.validate(false); len(problems) > 0 {
		httputil.WriteValidationErrors(w, problems)
		return
	}

	err := h.users.Update(r.Context(), userID, req.Name, req.Email, req.Blocked, req.Password)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFoundError(w, "User not found.")
	case errors.Is(err, store.ErrConflict):
		httputil.WriteConflict(w, "Email is already in use.")
	case err != nil:
		h.log.WithError(err).Error("update user failed")
		httputil.WriteInternalError(w, err)
	default:
		httputil.WriteSuccess(w, userResponse{ID: userID, Name: req.Name, Email: req.Email, Blocked: req.Blocked})
	}
}

// deleteUser handles DELETE /users/{id}.
func (h *UserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	err := h.users.Delete(r.Context(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFoundError(w, "User not found.")
	case errors.Is(err, store.ErrConflict):
		httputil.WriteConflict(w, "User cannot be deleted while attached to a group.")
	case err != nil:
		h.log.WithError(err).Error("delete user failed")
		httputil.WriteInternalError(w, err)
	default:
		httputil.WriteNoContent(w)
	}
}
