package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserRepo handles users.
type UserRepo struct {
	db querier
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// WithTx returns a copy of the repo that runs its statements in tx.
func (r *UserRepo) WithTx(tx *sql.Tx) *UserRepo {
	return &UserRepo{db: tx}
}

// Upsert returns the user for email, creating it when missing.
func (r *UserRepo) Upsert(ctx context.Context, email string, now time.Time) (User, error) {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO users(id, email, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(email) DO NOTHING;
	`, uuid.NewString(), email, now.UTC())
	if err != nil {
		return User{}, fmt.Errorf("user upsert: %w", err)
	}
	u, err := r.ByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, fmt.Errorf("user upsert: %s vanished", email)
	}
	return *u, nil
}

// ByEmail returns nil when no user has that email.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, email, verified_at, created_at FROM users WHERE email = ?`, email)
	var (
		u        User
		verified sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &verified, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user by email: %w", err)
	}
	if verified.Valid {
		t := verified.Time
		u.VerifiedAt = &t
	}
	return &u, nil
}

// MarkVerified stamps verified_at once; later calls keep the first stamp.
func (r *UserRepo) MarkVerified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET verified_at = COALESCE(verified_at, ?) WHERE id = ?`, at.UTC(), id)
	return err
}
