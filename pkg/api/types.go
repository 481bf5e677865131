package api

import (
	"context"

	"github.com/adminkit/warden/pkg/groups"
	"github.com/adminkit/warden/pkg/session"
	"github.com/adminkit/warden/pkg/store"
)

// SessionResolver authenticates credentials into a session.
type SessionResolver interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
}

// UserService manages user accounts.
type UserService interface {
	Create(ctx context.Context, name, email, password string) (*store.User, error)
	Get(ctx context.Context, userID int64) (*store.User, error)
	Update(ctx context.Context, userID int64, name, email string, blocked bool, password string) error
	Delete(ctx context.Context, userID int64) error
	List(ctx context.Context, filter store.UserFilter) ([]store.User, int, error)
}

// GroupService coordinates group mutations with the cache rebuild.
type GroupService interface {
	Create(ctx context.Context, input groups.Input) (int64, error)
	Update(ctx context.Context, groupID int64, input groups.Input) error
	Delete(ctx context.Context, groupID int64) error
	Get(ctx context.Context, groupID int64) (*store.GroupDetail, error)
	List(ctx context.Context, filter store.GroupFilter) ([]store.Group, int, error)
}

// ResourceLister serves the grantable resource catalog.
type ResourceLister interface {
	ListResources(ctx context.Context, filter store.ResourceFilter) ([]store.Resource, error)
}

// listResponse is the envelope for paginated collections.
type listResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}
