package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coozie/coozie/internal/database"
	"github.com/coozie/coozie/internal/database/repository"
	"github.com/coozie/coozie/internal/service"
)

const defaultPurgeAge = 24 * time.Hour

var (
	purgeOlderThan = defaultPurgeAge
	purgeAll       bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete confirmed and expired codes",
	RunE:  runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	m := &service.MaintenanceService{DB: db, Codes: repository.NewCodeRepo(db), Log: logger}
	if purgeAll {
		if err := m.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All users and codes deleted.")
		return nil
	}
	n, err := m.Purge(cmd.Context(), purgeOlderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d codes older than %s.\n", n, purgeOlderThan)
	return nil
}
