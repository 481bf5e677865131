// Package users implements user account management on top of the
// relational store.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/adminkit/warden/pkg/store"
)

// Store is the slice of the relational store the service needs.
type Store interface {
	EmailInUse(ctx context.Context, email string, excludeUserID int64) (bool, error)
	CreateUser(ctx context.Context, name, email, hash string) (int64, error)
	GetUser(ctx context.Context, userID int64) (*store.User, error)
	UpdateUser(ctx context.Context, userID int64, name, email string, blocked bool, hash *string) error
	DeleteUser(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context, filter store.UserFilter) ([]store.User, int, error)
}

// Service manages user accounts. Password hashes never leave it; the
// bcrypt cost is fixed at construction so every account in a
// deployment pays the same verification price.
type Service struct {
	store      Store
	bcryptCost int
	log        *logrus.Logger
}

func NewService(s Store, bcryptCost int, log *logrus.Logger) *Service {
	return &Service{store: s, bcryptCost: bcryptCost, log: log}
}

// Create registers a new user. The email must be unused; collisions
// surface as store.ErrConflict.
func (s *Service) Create(ctx context.Context, name, email, password string) (*store.User, error) {
	inUse, err := s.store.EmailInUse(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, fmt.Errorf("email %q: %w", email, store.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.store.CreateUser(ctx, name, email, string(hash))
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": id, "email": email}).Info("user created")
	return &store.User{ID: id, Name: name, Email: email}, nil
}

// Get fetches one user's public fields.
func (s *Service) Get(ctx context.Context, userID int64) (*store.User, error) {
	return s.store.GetUser(ctx, userID)
}

// Update overwrites a user's profile. A non-empty password replaces
// the stored hash; an empty one leaves it untouched.
func (s *Service) Update(ctx context.Context, userID int64, name, email string, blocked bool, password string) error {
	inUse, err := s.store.EmailInUse(ctx, email, userID)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("email %q: %w", email, store.ErrConflict)
	}

	var hash *string
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		h := string(hashed)
		hash = &h
	}

	if err := s.store.UpdateUser(ctx, userID, name, email, blocked, hash); err != nil {
		return err
	}

	s.log.WithField("user_id", userID).Info("user updated")
	return nil
}

// Delete removes a user. Users still attached to a group cannot be
// deleted; the membership constraint surfaces as a conflict.
func (s *Service) Delete(ctx context.Context, userID int64) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete user %d: %w", userID, err)
	}

	s.log.WithField("user_id", userID).Info("user deleted")
	return nil
}

// List returns one page of users plus the total match count.
func (s *Service) List(ctx context.Context, filter store.UserFilter) ([]store.User, int, error) {
	return s.store.ListUsers(ctx, filter)
}
