package repository

import (
	"context"
	"database/sql"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// User represents a users row.
type User struct {
	ID         string
	Email      string
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// Verified reports whether the user has confirmed a code.
func (u User) Verified() bool { return u.VerifiedAt != nil }

// VerificationCode is one delivery of a code. Only the bcrypt hash is stored.
type VerificationCode struct {
	ID        string
	UserID    string
	CodeHash  string
	SentAt    time.Time
	ExpiresAt time.Time
	Confirmed bool
	Attempts  int
}

// Expired reports whether the code can no longer be used at now.
func (c VerificationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
