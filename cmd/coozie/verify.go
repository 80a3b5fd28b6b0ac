package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coozie/coozie/internal/database"
	"github.com/coozie/coozie/internal/database/repository"
	"github.com/coozie/coozie/internal/mail"
	"github.com/coozie/coozie/internal/secrets"
	"github.com/coozie/coozie/internal/service"
	"github.com/coozie/coozie/internal/tui"
)

var verifyEmail string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Send a code to --email and run the verification screen",
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	email, err := service.ValidateEmail(verifyEmail)
	if err != nil {
		return fmt.Errorf("%s: %w", verifyEmail, err)
	}
	if hint := service.SuggestEmail(email); hint != "" {
		fmt.Fprintf(out, "Did you mean %s? Continuing with %s.\n", hint, email)
	}

	svc, cleanup, err := buildVerification(secretStore)
	if err != nil {
		return err
	}
	defer cleanup()

	issued, err := svc.Issue(ctx, email)
	if err != nil {
		if errors.Is(err, service.ErrResendThrottled) {
			return errors.New(service.ThrottledMessage)
		}
		return err
	}
	if sender, ok := svc.Mailer.(*mail.Sender); ok && sender.DryRun() {
		fmt.Fprintf(out, "Dry run: the message was written to %s\n", sender.OutboxDir())
	}
	logger.Info("verification started", zap.String("email", issued.Email), zap.Time("expires_at", issued.ExpiresAt))

	session := &service.CodeSession{Service: svc, Email: issued.Email}
	app, err := tui.New(ctx, cfg, tui.Options{Email: issued.Email, Session: session, Log: logger})
	if err != nil {
		return err
	}
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run screen: %w", err)
	}
	if !app.Verified() {
		fmt.Fprintln(out, "Verification cancelled.")
		return nil
	}
	fmt.Fprintln(out, "Verified", issued.Email)
	fmt.Fprintln(out, session.Token())
	return nil
}

// buildVerification opens the database and wires the verification service.
func buildVerification(store secrets.Store) (*service.VerificationService, func(), error) {
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	cleanup := func() { _ = db.Close() }

	key, err := service.ResolveSigningKey(cfg.Auth.SigningKey, store)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sender, err := mail.NewSender(cfg.Mail, resolveSMTPPassword(store), logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return &service.VerificationService{
		DB:     db,
		Users:  repository.NewUserRepo(db),
		Codes:  repository.NewCodeRepo(db),
		Mailer: sender,
		Tokens: &service.TokenIssuer{Key: key, TTL: cfg.Auth.TokenTTL, Issuer: cfg.Auth.Issuer},
		Policy: service.PolicyFromConfig(cfg.Code),
		Log:    logger.Named("verification"),
	}, cleanup, nil
}

// resolveSMTPPassword prefers config and env (COOZIE_MAIL_PASSWORD), then the
// secrets store.
func resolveSMTPPassword(store secrets.Store) string {
	if v := strings.TrimSpace(cfg.Mail.Password); v != "" {
		return v
	}
	if v, err := store.Get(secrets.SMTPPassword); err == nil {
		return v
	}
	return ""
}
