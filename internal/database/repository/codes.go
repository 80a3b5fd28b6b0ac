package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CodeRepo handles verification_codes. Every send is a new row.
type CodeRepo struct {
	db querier
}

func NewCodeRepo(db *sql.DB) *CodeRepo {
	return &CodeRepo{db: db}
}

// WithTx returns a copy of the repo that runs its statements in tx.
func (r *CodeRepo) WithTx(tx *sql.Tx) *CodeRepo {
	return &CodeRepo{db: tx}
}

func (r *CodeRepo) Create(ctx context.Context, userID, codeHash string, sentAt, expiresAt time.Time) (VerificationCode, error) {
	c := VerificationCode{
		ID:        uuid.NewString(),
		UserID:    userID,
		CodeHash:  codeHash,
		SentAt:    sentAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO verification_codes(id, user_id, code_hash, sent_at, expires_at, confirmed, attempts)
	VALUES (?, ?, ?, ?, ?, 0, 0)
	`, c.ID, c.UserID, c.CodeHash, c.SentAt, c.ExpiresAt)
	if err != nil {
		return VerificationCode{}, fmt.Errorf("verification code create: %w", err)
	}
	return c, nil
}

// Latest returns the most recent send for a user, or nil.
func (r *CodeRepo) Latest(ctx context.Context, userID string) (*VerificationCode, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, user_id, code_hash, sent_at, expires_at, confirmed, attempts
	FROM verification_codes
	WHERE user_id = ?
	ORDER BY sent_at DESC, rowid DESC
	LIMIT 1
	`, userID)
	var c VerificationCode
	if err := row.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.SentAt, &c.ExpiresAt, &c.Confirmed, &c.Attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("verification code latest: %w", err)
	}
	return &c, nil
}

// CountSince counts sends at or after since, for throttling.
func (r *CodeRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verification_codes WHERE user_id = ? AND sent_at >= ?`,
		userID, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("verification code count: %w", err)
	}
	return n, nil
}

// IncrementAttempts adds one failed attempt and returns the new total.
func (r *CodeRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE verification_codes SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("verification code attempts: %w", err)
	}
	return attempts, nil
}

func (r *CodeRepo) MarkConfirmed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE verification_codes SET confirmed = 1 WHERE id = ?`, id)
	return err
}

// ExpireNow moves expires_at to now so the code is dead.
func (r *CodeRepo) ExpireNow(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE verification_codes SET expires_at = ? WHERE id = ?`, now.UTC(), id)
	return err
}

// PurgeBefore deletes confirmed or expired rows sent before cutoff and
// returns how many went.
func (r *CodeRepo) PurgeBefore(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	DELETE FROM verification_codes
	WHERE sent_at < ? AND (confirmed = 1 OR expires_at <= ?)
	`, cutoff.UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("verification code purge: %w", err)
	}
	return res.RowsAffected()
}
