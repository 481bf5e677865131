// Package session authenticates users and resolves their effective
// permission set into a login session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/adminkit/warden/pkg/authz"
	"github.com/adminkit/warden/pkg/observability"
	"github.com/adminkit/warden/pkg/store"
)

// maxLoginAttempts is the number of consecutive failures after which
// the account is blocked. The counter lives on the user row; blocked
// accounts disappear from the login query, so a blocked user fails
// with the same error as a wrong password.
const maxLoginAttempts = 4

// ErrInvalidCredentials covers every login failure visible to the
// caller: unknown email, wrong password and blocked account. The
// distinction stays server-side.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is the result of a successful login: the user's identity,
// a signed bearer token, and the resolved permission set the frontend
// uses to build its navigation.
type Session struct {
	ID          int64
	Name        string
	Email       string
	Token       string
	Permissions []authz.ResourcePermission
}

// UserStore is the slice of the relational store the resolver needs.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*store.User, error)
	RecordFailedLogin(ctx context.Context, userID int64, attempts int64, blocked bool, at time.Time) error
	ClearFailedLogins(ctx context.Context, userID int64) error
}

// PermissionReader resolves a user's full permission set from the
// authorization cache.
type PermissionReader interface {
	AllPermissions(ctx context.Context, userID int64) ([]authz.ResourcePermission, error)
}

// Resolver performs email/password authentication with lockout
// tracking and assembles the session payload.
type Resolver struct {
	users   UserStore
	perms   PermissionReader
	tokens  *TokenIssuer
	log     *logrus.Logger
	metrics *observability.Metrics
}

func NewResolver(users UserStore, perms PermissionReader, tokens *TokenIssuer, log *logrus.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		users:   users,
		perms:   perms,
		tokens:  tokens,
		log:     log,
		metrics: metrics,
	}
}

// Login authenticates the credentials and returns a session. A wrong
// password increments the failure counter and blocks the account once
// it passes maxLoginAttempts; a correct password clears any recorded
// failures before the token is issued.
func (r *Resolver) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := r.users.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		r.metrics.IncLogin("denied")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("resolve login user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)); err != nil {
		return nil, r.recordFailure(ctx, user)
	}

	if user.LoginAttempts.Valid {
		if err := r.users.ClearFailedLogins(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("clear login failures: %w", err)
		}
	}

	token, err := r.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	permissions, err := r.perms.AllPermissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}

	r.metrics.IncLogin("success")
	r.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("user logged in")

	return &Session{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Token:       token,
		Permissions: permissions,
	}, nil
}

// recordFailure bumps the lockout counter and persists the new state.
// The caller always sees ErrInvalidCredentials; persistence errors
// take precedence so a lost counter update is not silently ignored.
func (r *Resolver) recordFailure(ctx context.Context, user *store.User) error {
	var attempts int64
	if user.LoginAttempts.Valid {
		attempts = user.LoginAttempts.Int64
	}
	attempts++
	blocked := attempts > maxLoginAttempts

	if err := r.users.RecordFailedLogin(ctx, user.ID, attempts, blocked, time.Now()); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	r.metrics.IncLogin("denied")
	r.log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"attempts": attempts,
		"blocked":  blocked,
	}).Warn("login failed")

	return ErrInvalidCredentials
}
