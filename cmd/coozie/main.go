package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coozie/coozie/internal/config"
	"github.com/coozie/coozie/internal/logging"
)

var (
	// Global flags
	verbose bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "coozie",
	Short: "COOZIE email verification",
	Long: `coozie sends a one-time verification code to an email address and
runs the terminal screen where the code is typed or pasted.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger, err = logging.New(cfg.Log, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	verifyCmd.Flags().StringVar(&verifyEmail, "email", "", "Address to verify (required)")
	_ = verifyCmd.MarkFlagRequired("email")

	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", defaultPurgeAge, "Only purge codes sent before this age")
	purgeCmd.Flags().BoolVar(&purgeAll, "all", false, "Delete every user and code")

	configCmd.AddCommand(configInitCmd)
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(secretCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
