package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coozie/coozie/internal/config"
	"github.com/coozie/coozie/internal/secrets"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current settings to the config file",
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", config.Path())
	return nil
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage stored secrets (smtp_password, signing_key)",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Store a secret read from the first line of stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretSet,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretDelete,
}

var secretStore = secrets.Store{}

func runSecretSet(cmd *cobra.Command, args []string) error {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	value := strings.TrimSpace(line)
	if value == "" {
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		return fmt.Errorf("empty secret")
	}
	if err := secretStore.Put(args[0], value); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Stored", args[0])
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	if err := secretStore.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
	return nil
}
