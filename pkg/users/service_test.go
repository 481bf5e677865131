package users

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/adminkit/warden/pkg/store"
)

type fakeStore struct {
	emailInUse bool

	createdHash string
	updatedHash *string
	deleted     []int64
	users       map[int64]*store.User
}

func (f *fakeStore) EmailInUse(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	return f.emailInUse, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, name, email, hash string) (int64, error) {
	f.createdHash = hash
	return 7, nil
}

func (f *fakeStore) GetUser(ctx context.Context, userID int64) (*store.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, userID int64, name, email string, blocked bool, hash *string) error {
	f.updatedHash = hash
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, userID int64) error {
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakeStore) ListUsers(ctx context.Context, filter store.UserFilter) ([]store.User, int, error) {
	return nil, 0, nil
}

func newTestService(fs *fakeStore) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(fs, bcrypt.MinCost, log)
}

func TestCreate_HashesPassword(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	u, err := svc.Create(context.Background(), "Bob", "bob@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	require.NotEmpty(t, fs.createdHash)
	assert.NotEqual(t, "s3cret", fs.createdHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(fs.createdHash), []byte("s3cret")))
}

func TestCreate_EmailConflict(t *testing.T) {
	svc := newTestService(&fakeStore{emailInUse: true})

	_, err := svc.Create(context.Background(), "Bob", "bob@example.com", "s3cret")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUpdate_WithoutPasswordKeepsHash(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	require.NoError(t, svc.Update(context.Background(), 7, "Bob", "bob@example.com", false, ""))
	assert.Nil(t, fs.updatedHash)
}

func TestUpdate_WithPasswordReplacesHash(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	require.NoError(t, svc.Update(context.Background(), 7, "Bob", "bob@example.com", false, "n3w-pass"))
	require.NotNil(t, fs.updatedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*fs.updatedHash), []byte("n3w-pass")))
}

func TestUpdate_EmailConflict(t *testing.T) {
	svc := newTestService(&fakeStore{emailInUse: true})

	err := svc.Update(context.Background(), 7, "Bob", "other@example.com", false, "")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestDelete(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	require.NoError(t, svc.Delete(context.Background(), 7))
	assert.Equal(t, []int64{7}, fs.deleted)
}

func TestGet_NotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
