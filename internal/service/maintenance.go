package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coozie/coozie/internal/database"
	"github.com/coozie/coozie/internal/database/repository"
)

// MaintenanceService houses destructive/ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB    *sql.DB
	Codes *repository.CodeRepo
	Clock func() time.Time
	Log   *zap.Logger
}

// Purge deletes confirmed or expired codes sent more than olderThan ago.
func (s *MaintenanceService) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s.Codes == nil {
		return 0, fmt.Errorf("maintenance: code repo not configured")
	}
	if olderThan < 0 {
		return 0, fmt.Errorf("maintenance: negative age %s", olderThan)
	}
	now := database.Now()
	if s.Clock != nil {
		now = s.Clock().UTC()
	}
	n, err := s.Codes.PurgeBefore(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, err
	}
	if s.Log != nil {
		s.Log.Info("purged verification codes", zap.Int64("rows", n), zap.Duration("older_than", olderThan))
	}
	return n, nil
}

// Reset wipes all users and codes. It keeps the schema intact so the app can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range []string{"verification_codes", "users"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
