package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// foreignKeyViolation is the postgres error code raised when a delete
// is restricted by a referencing row.
const foreignKeyViolation = "23503"

// User is a system account. LoginAttempts and LastLoginAttempt are the
// lockout counters: attempts increments on every failed login, resets
// to null on success, and once it passes four the account is blocked.
type User struct {
	ID               int64
	Name             string
	Email            string
	Hash             string
	Blocked          bool
	LoginAttempts    sql.NullInt64
	LastLoginAttempt sql.NullTime
}

// UserFilter narrows and paginates user listings.
type UserFilter struct {
	Name   string
	Email  string
	Limit  int
	Offset int
}

// FindUserByEmail fetches the login data for a non-blocked user:
// identity, password hash and lockout counters. Blocked accounts are
// invisible to the authentication process by design.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, name, email, hash, login_attempts, last_login_attempt
		FROM users
		WHERE email = $1 AND blocked = false
	`

	var u User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Hash,
		&u.LoginAttempts,
		&u.LastLoginAttempt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	return &u, nil
}

// RecordFailedLogin persists the lockout state after a failed attempt.
func (s *Store) RecordFailedLogin(ctx context.Context, userID int64, attempts int64, blocked bool, at time.Time) error {
	query := `
		UPDATE users
		SET login_attempts = $1, blocked = $2, last_login_attempt = $3, updated_at = NOW()
		WHERE id = $4
	`
	if _, err := s.db.ExecContext(ctx, query, attempts, blocked, at, userID); err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

// ClearFailedLogins forgives prior failures after a successful login.
func (s *Store) ClearFailedLogins(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET login_attempts = NULL, last_login_attempt = NULL, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("clear failed logins: %w", err)
	}
	return nil
}

// EmailInUse reports whether another user already registered the email.
func (s *Store) EmailInUse(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	query := `SELECT count(*) FROM users WHERE email = $1 AND id <> $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, email, excludeUserID).Scan(&count); err != nil {
		return false, fmt.Errorf("check email in use: %w", err)
	}
	return count > 0, nil
}

// CreateUser inserts a new unblocked user and returns its id.
func (s *Store) CreateUser(ctx context.Context, name, email, hash string) (int64, error) {
	query := `
		INSERT INTO users (name, email, hash, blocked, created_at, updated_at)
		VALUES ($1, $2, $3, false, NOW(), NOW())
		RETURNING id
	`

	var id int64
	if err := s.db.QueryRowContext(ctx, query, name, email, hash).Scan(&id); err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUser fetches a user's public fields.
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `SELECT id, name, email, blocked FROM users WHERE id = $1`

	var u User
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.Name, &u.Email, &u.Blocked)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateUser overwrites a user's scalar fields. The password hash is
// replaced only when hash is non-nil; passwords otherwise change only
// through the dedicated flow.
func (s *Store) UpdateUser(ctx context.Context, userID int64, name, email string, blocked bool, hash *string) error {
	var res sql.Result
	var err error
	if hash != nil {
		query := `
			UPDATE users
			SET name = $1, email = $2, blocked = $3, hash = $4, updated_at = NOW()
			WHERE id = $5
		`
		res, err = s.db.ExecContext(ctx, query, name, email, blocked, *hash, userID)
	} else {
		query := `
			UPDATE users
			SET name = $1, email = $2, blocked = $3, updated_at = NOW()
			WHERE id = $4
		`
		res, err = s.db.ExecContext(ctx, query, name, email, blocked, userID)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user. Group memberships restrict the delete at
// the relational layer: the user must be detached from every group
// first, so deletion never orphans membership rows. The restriction
// surfaces as ErrConflict.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return fmt.Errorf("user %d still belongs to a group: %w", userID, ErrConflict)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns one page of users matching the filter plus the
// total match count. Name and email filter by case-insensitive prefix.
func (s *Store) ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error) {
	where := `WHERE ($1 = '' OR lower(name) LIKE lower($1) || '%')
		  AND ($2 = '' OR lower(email) LIKE lower($2) || '%')`

	var total int
	countQuery := `SELECT count(*) FROM users ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, filter.Name, filter.Email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	pageQuery := `SELECT id, name, email FROM users ` + where + `
		ORDER BY name, id
		LIMIT $3 OFFSET $4`
	rows, err := s.db.QueryContext(ctx, pageQuery, filter.Name, filter.Email, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, total, rows.Err()
}
