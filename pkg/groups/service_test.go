package groups

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adminkit/warden/pkg/store"
)

type fakeStore struct {
	nameCount int
	group     *store.Group

	createdMembers []int64
	createdGrants  []store.GrantInput

	addMembers    []int64
	removeMembers []int64
	addGrants     []store.GrantInput
	updateGrants  []store.GrantInput
	removeGrants  []int64

	deleteErr error
}

func (f *fakeStore) CountGroupsByName(ctx context.Context, name string) (int, error) {
	return f.nameCount, nil
}

func (f *fakeStore) GetGroup(ctx context.Context, groupID int64) (*store.Group, error) {
	if f.group == nil {
		return nil, store.ErrNotFound
	}
	return f.group, nil
}

func (f *fakeStore) GetGroupDetail(ctx context.Context, groupID int64) (*store.GroupDetail, error) {
	if f.group == nil {
		return nil, store.ErrNotFound
	}
	return &store.GroupDetail{Group: *f.group}, nil
}

func (f *fakeStore) ListGroups(ctx context.Context, filter store.GroupFilter) ([]store.Group, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) CreateGroup(ctx context.Context, group *store.Group, memberIDs []int64, grants []store.GrantInput) (int64, error) {
	f.createdMembers = memberIDs
	f.createdGrants = grants
	return 3, nil
}

func (f *fakeStore) UpdateGroup(ctx context.Context, group *store.Group, addMembers, removeMembers []int64, addGrants, updateGrants []store.GrantInput, removeGrants []int64) error {
	f.addMembers = addMembers
	f.removeMembers = removeMembers
	f.addGrants = addGrants
	f.updateGrants = updateGrants
	f.removeGrants = removeGrants
	return nil
}

func (f *fakeStore) DeleteGroup(ctx context.Context, groupID int64) error {
	return f.deleteErr
}

type fakeRebuilder struct {
	calls int
	err   error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) error {
	f.calls++
	return f.err
}

func newTestService(fs *fakeStore, cache *fakeRebuilder) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(fs, cache, log)
}

func TestCreate_RebuildsWhenUsersAndResourcesPresent(t *testing.T) {
	fs := &fakeStore{}
	cache := &fakeRebuilder{}
	svc := newTestService(fs, cache)

	id, err := svc.Create(context.Background(), Input{
		Name:      "Editors",
		Users:     []UserItem{{ID: 1, Operation: OpCreate}},
		Resources: []ResourceItem{{ID: 7, Operation: OpCreate, Write: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, 1, cache.calls)
	assert.Equal(t, []int64{1}, fs.createdMembers)
	require.Len(t, fs.createdGrants, 1)
	assert.True(t, fs.createdGrants[0].Write)
}

func TestCreate_SkipsRebuildWithoutResources(t *testing.T) {
	cache := &fakeRebuilder{}
	svc := newTestService(&fakeStore{}, cache)

	_, err := svc.Create(context.Background(), Input{
		Name:  "Editors",
		Users: []UserItem{{ID: 1, Operation: OpCreate}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.calls)
}

func TestCreate_SkipsRebuildWithoutUsers(t *testing.T) {
	cache := &fakeRebuilder{}
	svc := newTestService(&fakeStore{}, cache)

	_, err := svc.Create(context.Background(), Input{
		Name:      "Editors",
		Resources: []ResourceItem{{ID: 7, Operation: OpCreate}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.calls)
}

func TestCreate_NameConflict(t *testing.T) {
	cache := &fakeRebuilder{}
	svc := newTestService(&fakeStore{nameCount: 1}, cache)

	_, err := svc.Create(context.Background(), Input{Name: "Editors"})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 0, cache.calls)
}

func TestCreate_RebuildFailureSurfacesAfterCommit(t *testing.T) {
	cache := &fakeRebuilder{err: errors.New("redis down")}
	svc := newTestService(&fakeStore{}, cache)

	id, err := svc.Create(context.Background(), Input{
		Name:      "Editors",
		Users:     []UserItem{},
		Resources: []ResourceItem{},
	})
	require.Error(t, err)
	assert.Equal(t, int64(3), id, "group is committed even when the rebuild fails")
}

func TestUpdate_PartitionsOperations(t *testing.T) {
	fs := &fakeStore{group: &store.Group{ID: 3, Name: "Editors"}}
	cache := &fakeRebuilder{}
	svc := newTestService(fs, cache)

	err := svc.Update(context.Background(), 3, Input{
		Name: "Editors",
		Users: []UserItem{
			{ID: 1, Operation: OpCreate},
			{ID: 2, Operation: OpDelete},
			{ID: 9}, // untouched rows carry no operation tag
		},
		Resources: []ResourceItem{
			{ID: 5, Operation: OpCreate, Write: true},
			{ID: 6, Operation: OpUpdate, Update: true},
			{ID: 7, Operation: OpDelete},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, fs.addMembers)
	assert.Equal(t, []int64{2}, fs.removeMembers)
	require.Len(t, fs.addGrants, 1)
	assert.Equal(t, int64(5), fs.addGrants[0].ResourceID)
	require.Len(t, fs.updateGrants, 1)
	assert.Equal(t, int64(6), fs.updateGrants[0].ResourceID)
	assert.Equal(t, []int64{7}, fs.removeGrants)
	assert.Equal(t, 1, cache.calls)
}

func TestUpdate_RebuildsWithOnlyUsers(t *testing.T) {
	fs := &fakeStore{group: &store.Group{ID: 3, Name: "Editors"}}
	cache := &fakeRebuilder{}
	svc := newTestService(fs, cache)

	err := svc.Update(context.Background(), 3, Input{
		Name:  "Editors",
		Users: []UserItem{{ID: 1, Operation: OpCreate}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.calls)
}

func TestUpdate_SkipsRebuildForScalarOnlyChange(t *testing.T) {
	fs := &fakeStore{group: &store.Group{ID: 3, Name: "Editors"}}
	cache := &fakeRebuilder{}
	svc := newTestService(fs, cache)

	err := svc.Update(context.Background(), 3, Input{Name: "Editors", Description: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.calls)
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeRebuilder{})

	err := svc.Update(context.Background(), 99, Input{Name: "Ghosts"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdate_RenameConflict(t *testing.T) {
	fs := &fakeStore{group: &store.Group{ID: 3, Name: "Editors"}, nameCount: 1}
	svc := newTestService(fs, &fakeRebuilder{})

	err := svc.Update(context.Background(), 3, Input{Name: "Admins"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUpdate_SameNameSkipsConflictCheck(t *testing.T) {
	// nameCount counts the group's own row; keeping the name must not
	// trip the uniqueness check.
	fs := &fakeStore{group: &store.Group{ID: 3, Name: "Editors"}, nameCount: 1}
	svc := newTestService(fs, &fakeRebuilder{})

	err := svc.Update(context.Background(), 3, Input{Name: "Editors"})
	assert.NoError(t, err)
}

func TestDelete_AlwaysRebuilds(t *testing.T) {
	cache := &fakeRebuilder{}
	svc := newTestService(&fakeStore{}, cache)

	require.NoError(t, svc.Delete(context.Background(), 3))
	assert.Equal(t, 1, cache.calls)
}

func TestDelete_NotFoundSkipsRebuild(t *testing.T) {
	cache := &fakeRebuilder{}
	svc := newTestService(&fakeStore{deleteErr: store.ErrNotFound}, cache)

	err := svc.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, cache.calls)
}

func TestDelete_RebuildFailureSurfaces(t *testing.T) {
	cache := &fakeRebuilder{err: errors.New("redis down")}
	svc := newTestService(&fakeStore{}, cache)

	assert.Error(t, svc.Delete(context.Background(), 3))
}
