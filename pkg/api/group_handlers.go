package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/groups"
	"github.com/adminkit/warden/pkg/httputil"
	"github.com/adminkit/warden/pkg/store"
)

// GroupHandlers handles group management requests.
type GroupHandlers struct {
	groups GroupService
	log    *logrus.Logger
}

// RegisterRoutes registers the group routes.
func (h *GroupHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/groups", h.listGroups).Methods("GET")
	router.HandleFunc("/groups", h.createGroup).Methods("POST")
	router.HandleFunc("/groups/{id}", h.getGroup).Methods("GET")
	router.HandleFunc("/groups/{id}", h.updateGroup).Methods("PUT")
	router.HandleFunc("/groups/{id}", h.deleteGroup).Methods("DELETE")
}

type groupUserItem struct {
	ID        int64  `json:"id"`
	Operation string `json:"operation"`
}

type groupResourceItem struct {
	ID        int64  `json:"id"`
	Operation string `json:"operation"`
	Write     *bool  `json:"write"`
	Update    *bool  `json:"update"`
	Delete    *bool  `json:"delete"`
}

// groupRequest is a group mutation payload. Users and Resources keep
// the wire-level distinction between an absent array and an empty
// one; the coordinator uses it to decide whether to rebuild the
// authorization cache.
type groupRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Blocked     bool                `json:"blocked"`
	Users       []groupUserItem     `json:"users"`
	Resources   []groupResourceItem `json:"resources"`
}

func (req *groupRequest) validate() []string {
	var problems []string
	if len(req.Name) < 3 || len(req.Name) > 50 {
		problems = append(problems, "Name must be between 3 and 50 characters.")
	}
	if len(req.Description) > 255 {
		problems = append(problems, "Description must be at most 255 characters.")
	}
	for _, u := range req.Users {
		switch u.Operation {
		case "", groups.OpCreate, groups.OpDelete:
		default:
			problems = append(problems, fmt.Sprintf("Unknown operation %q for user %d.", u.Operation, u.ID))
		}
	}
	for _, r := range req.Resources {
		switch r.Operation {
		case "", groups.OpDelete:
		case groups.OpCreate, groups.OpUpdate:
			if r.Write == nil || r.Update == nil || r.Delete == nil {
				problems = append(problems, fmt.Sprintf("Permission flags are required for resource %d.", r.ID))
			}
		default:
			problems = append(problems, fmt.Sprintf("Unknown operation %q for resource %d.", r.Operation, r.ID))
		}
	}
	return problems
}

func (req *groupRequest) toInput() groups.Input {
	input := groups.Input{
		Name:        req.Name,
		Description: req.Description,
		Blocked:     req.Blocked,
	}
	if req.Users != nil {
		input.Users = make([]groups.UserItem, 0, len(req.Users))
		for _, u := range req.Users {
			input.Users = append(input.Users, groups.UserItem{ID: u.ID, Operation: u.Operation})
		}
	}
	if req.Resources != nil {
		input.Resources = make([]groups.ResourceItem, 0, len(req.Resources))
		for _, r := range req.Resources {
			item := groups.ResourceItem{ID: r.ID, Operation: r.Operation}
			if r.Write != nil {
				item.Write = *r.Write
			}
			if r.Update != nil {
				item.Update = *r.Update
			}
			if r.Delete != nil {
				item.Delete = *r.Delete
			}
			input.Resources = append(input.Resources, item)
		}
	}
	return input
}

type groupResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Blocked     bool   `json:"blocked"`
}

type groupDetailResponse struct {
	groupResponse
	Users     []groupMemberResponse `json:"users"`
	Resources []groupGrantResponse  `json:"resources"`
}

type groupMemberResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type groupGrantResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Write  bool   `json:"write"`
	Update bool   `json:"update"`
	Delete bool   `json:"delete"`
}

// listGroups handles GET /groups.
func (h *GroupHandlers) listGroups(w http.ResponseWriter, r *http.Request) {
	filter := store.GroupFilter{
		Name:   r.URL.Query().Get("name"),
		Limit:  httputil.ParseQueryInt(r, "limit", 25),
		Offset: httputil.ParseQueryInt(r, "offset", 0),
	}
	if blocked, ok := httputil.ParseQueryBool(r, "blocked"); ok {
		filter.Blocked = &blocked
	}

	list, total, err := h.groups.List(r.Context(), filter)
	if err != nil {
		h.log.WithError(err).Error("list groups failed")
		httputil.WriteInternalError(w, err)
		return
	}

	data := make([]groupResponse, 0, len(list))
	for _, g := range list {
		data = append(data, groupResponse{ID: g.ID, Name: g.Name, Blocked: g.Blocked})
	}
	httputil.WriteSuccess(w, listResponse{Data: data, Total: total})
}

// createGroup handles POST /groups.
func (h *GroupHandlers) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		httputil.WriteValidationErrors(w, problems)
		return
	}

	groupID, err := h.groups.Create(r.Context(), req.toInput())
	if errors.Is(err, store.ErrConflict) {
		httputil.WriteConflict(w, "Group name is already in use.")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("create group failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, groupResponse{
		ID:          groupID,
		Name:        req.Name,
		Description: req.Description,
		Blocked:     req.Blocked,
	})
}

// getGroup handles GET /groups/{id}.
func (h *GroupHandlers) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.groups.Get(r.Context(), groupID)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "Group not found.")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("get group failed")
		httputil.WriteInternalError(w, err)
		return
	}

	resp := groupDetailResponse{
		groupResponse: groupResponse{
			ID:          detail.ID,
			Name:        detail.Name,
			Description: detail.Description,
			Blocked:     detail.Blocked,
		},
		Users:     make([]groupMemberResponse, 0, len(detail.Users)),
		Resources: make([]groupGrantResponse, 0, len(detail.Resources)),
	}
	for _, m := range detail.Users {
		resp.Users = append(resp.Users, groupMemberResponse{ID: m.ID, Name: m.Name, Email: m.Email})
	}
	for _, g := range detail.Resources {
		resp.Resources = append(resp.Resources, groupGrantResponse{
			ID:     g.ResourceID,
			Name:   g.ResourceName,
			Write:  g.Write,
			Update: g.Update,
			Delete: g.Delete,
		})
	}
	httputil.WriteSuccess(w, resp)
}

// updateGroup handles PUT /groups/{id}.
func (h *GroupHandlers) updateGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req groupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		httputil.WriteValidationErrors(w, problems)
		return
	}

	err := h.groups.Update(r.Context(), groupID, req.toInput())
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFoundError(w, "Group not found.")
	case errors.Is(err, store.ErrConflict):
		httputil.WriteConflict(w, "Group name is already in use.")
	case err != nil:
		h.log.WithError(err).Error("update group failed")
		httputil.WriteInternalError(w, err)
	default:
		httputil.WriteSuccess(w, groupResponse{
			ID:          groupID,
			Name:        req.Name,
			Description: req.Description,
			Blocked:     req.Blocked,
		})
	}
}

// deleteGroup handles DELETE /groups/{id}.
func (h *GroupHandlers) deleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	err := h.groups.Delete(r.Context(), groupID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFoundError(w, "Group not found.")
	case err != nil:
		h.log.WithError(err).Error("delete group failed")
		httputil.WriteInternalError(w, err)
	default:
		httputil.WriteNoContent(w)
	}
}
