// Package groups coordinates group mutations with the authorization
// cache. Every write to the groups graph commits transactionally and
// then triggers a full cache rebuild, so an authorization decision is
// never served from state older than the last committed mutation plus
// one rebuild.
package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/store"
)

// Association operation tags carried by mutation payloads. Entries
// without a recognized tag are ignored rather than rejected; the
// frontend sends untouched rows without a tag.
const (
	OpCreate = "c"
	OpUpdate = "u"
	OpDelete = "d"
)

// UserItem is one membership entry of a group mutation.
type UserItem struct {
	ID        int64
	Operation string
}

// ResourceItem is one grant entry of a group mutation.
type ResourceItem struct {
	ID        int64
	Operation string
	Write     bool
	Update    bool
	Delete    bool
}

// Input is a group mutation payload. Users and Resources distinguish
// nil (association set untouched) from empty (present but without
// entries); the distinction drives whether the cache is rebuilt.
type Input struct {
	Name        string
	Description string
	Blocked     bool
	Users       []UserItem
	Resources   []ResourceItem
}

// Store is the slice of the relational store the coordinator needs.
type Store interface {
	CountGroupsByName(ctx context.Context, name string) (int, error)
	GetGroup(ctx context.Context, groupID int64) (*store.Group, error)
	GetGroupDetail(ctx context.Context, groupID int64) (*store.GroupDetail, error)
	ListGroups(ctx context.Context, filter store.GroupFilter) ([]store.Group, int, error)
	CreateGroup(ctx context.Context, group *store.Group, memberIDs []int64, grants []store.GrantInput) (int64, error)
	UpdateGroup(ctx context.Context, group *store.Group, addMembers, removeMembers []int64, addGrants, updateGrants []store.GrantInput, removeGrants []int64) error
	DeleteGroup(ctx context.Context, groupID int64) error
}

// Rebuilder regenerates the authorization cache from the store.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Service is the mutation coordinator for groups.
type Service struct {
	store Store
	cache Rebuilder
	log   *logrus.Logger
}

func NewService(s Store, cache Rebuilder, log *logrus.Logger) *Service {
	return &Service{store: s, cache: cache, log: log}
}

// Create inserts a new group with its initial memberships and grants.
// The cache is rebuilt only when the payload carries both a user set
// and a resource set: without both, no (user, group, resource) tuple
// can have changed.
func (s *Service) Create(ctx context.Context, input Input) (int64, error) {
	count, err := s.store.CountGroupsByName(ctx, input.Name)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, fmt.Errorf("group name %q: %w", input.Name, store.ErrConflict)
	}

	members := make([]int64, 0, len(input.Users))
	for _, u := range input.Users {
		members = append(members, u.ID)
	}
	grants := make([]store.GrantInput, 0, len(input.Resources))
	for _, r := range input.Resources {
		grants = append(grants, store.GrantInput{
			ResourceID: r.ID,
			Write:      r.Write,
			Update:     r.Update,
			Delete:     r.Delete,
		})
	}

	groupID, err := s.store.CreateGroup(ctx, &store.Group{
		Name:        input.Name,
		Description: input.Description,
		Blocked:     input.Blocked,
	}, members, grants)
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{"group_id": groupID, "name": input.Name}).Info("group created")

	if input.Users != nil && input.Resources != nil {
		if err := s.cache.Rebuild(ctx); err != nil {
			return groupID, fmt.Errorf("group %d created but cache rebuild failed: %w", groupID, err)
		}
	}
	return groupID, nil
}

// Update applies a partitioned mutation to an existing group. The
// cache is rebuilt when the payload touches either association set.
func (s *Service) Update(ctx context.Context, groupID int64, input Input) error {
	current, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}

	if input.Name != current.Name {
		count, err := s.store.CountGroupsByName(ctx, input.Name)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("group name %q: %w", input.Name, store.ErrConflict)
		}
	}

	var addMembers, removeMembers []int64
	for _, u := range input.Users {
		switch u.Operation {
		case OpCreate:
			addMembers = append(addMembers, u.ID)
		case OpDelete:
			removeMembers = append(removeMembers, u.ID)
		}
	}

	var addGrants, updateGrants []store.GrantInput
	var removeGrants []int64
	for _, r := range input.Resources {
		grant := store.GrantInput{
			ResourceID: r.ID,
			Write:      r.Write,
			Update:     r.Update,
			Delete:     r.Delete,
		}
		switch r.Operation {
		case OpCreate:
			addGrants = append(addGrants, grant)
		case OpUpdate:
			updateGrants = append(updateGrants, grant)
		case OpDelete:
			removeGrants = append(removeGrants, r.ID)
		}
	}

	err = s.store.UpdateGroup(ctx, &store.Group{
		ID:          groupID,
		Name:        input.Name,
		Description: input.Description,
		Blocked:     input.Blocked,
	}, addMembers, removeMembers, addGrants, updateGrants, removeGrants)
	if err != nil {
		return err
	}

	s.log.WithField("group_id", groupID).Info("group updated")

	if input.Users != nil || input.Resources != nil {
		if err := s.cache.Rebuild(ctx); err != nil {
			return fmt.Errorf("group %d updated but cache rebuild failed: %w", groupID, err)
		}
	}
	return nil
}

// Delete removes a group with its memberships and grants, then always
// rebuilds the cache: a deleted group invalidates every tuple it
// contributed.
func (s *Service) Delete(ctx context.Context, groupID int64) error {
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete group %d: %w", groupID, err)
	}

	s.log.WithField("group_id", groupID).Info("group deleted")

	if err := s.cache.Rebuild(ctx); err != nil {
		return fmt.Errorf("group %d deleted but cache rebuild failed: %w", groupID, err)
	}
	return nil
}

// Get fetches a group with its members and grants.
func (s *Service) Get(ctx context.Context, groupID int64) (*store.GroupDetail, error) {
	return s.store.GetGroupDetail(ctx, groupID)
}

// List returns one page of groups plus the total match count.
func (s *Service) List(ctx context.Context, filter store.GroupFilter) ([]store.Group, int, error) {
	return s.store.ListGroups(ctx, filter)
}
