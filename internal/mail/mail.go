package mail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/coozie/coozie/internal/config"
)

const subject = "Your COOZIE verification code"

// ErrNoHost is returned when sending for real without an SMTP host.
var ErrNoHost = errors.New("mail: smtp host not configured")

// Sender delivers verification codes over SMTP, or writes them to an outbox
// directory as .eml files when dry-running.
type Sender struct {
	dialer    *gomail.Dialer
	from      string
	dryRun    bool
	outboxDir string
	now       func() time.Time
	log       *zap.Logger
}

// NewSender builds a sender from config. password overrides cfg.Password
// when it is not empty.
func NewSender(cfg config.MailConfig, password string, log *zap.Logger) (*Sender, error) {
	if password == "" {
		password = cfg.Password
	}
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.DryRun && cfg.SMTPHost == "" {
		return nil, ErrNoHost
	}
	return &Sender{
		dialer:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, password),
		from:      cfg.From,
		dryRun:    cfg.DryRun,
		outboxDir: cfg.OutboxDir,
		now:       time.Now,
		log:       log.Named("mail"),
	}, nil
}

// DryRun reports whether messages go to the outbox instead of SMTP.
func (s *Sender) DryRun() bool { return s.dryRun }

// OutboxDir is where dry-run messages are written.
func (s *Sender) OutboxDir() string { return s.outboxDir }

// SendCode mails code to the recipient, mentioning how long it stays valid.
func (s *Sender) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.message(to, code, ttl)
	if s.dryRun {
		path, err := s.writeOutbox(to, m)
		if err != nil {
			return err
		}
		s.log.Info("verification mail written", zap.String("to", to), zap.String("path", path))
		return nil
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	s.log.Info("verification mail sent", zap.String("to", to))
	return nil
}

func (s *Sender) message(to, code string, ttl time.Duration) *gomail.Message {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s\n\nThe code expires in %d minutes. If you did not ask for it, ignore this email.\n",
		code, minutes))
	m.AddAlternative("text/html", fmt.Sprintf(`
		<h2>Check your email</h2>
		<p>Your verification code is</p>
		<p style="font-size:28px;letter-spacing:8px"><strong>%s</strong></p>
		<p>The code expires in %d minutes. If you did not ask for it, ignore this email.</p>
	`, code, minutes))
	return m
}

func (s *Sender) writeOutbox(to string, m *gomail.Message) (string, error) {
	if err := os.MkdirAll(s.outboxDir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir outbox: %w", err)
	}
	name := fmt.Sprintf("%s-%s.eml", s.now().UTC().Format("20060102T150405.000000000"), fileSafe(to))
	path := filepath.Join(s.outboxDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create outbox file: %w", err)
	}
	if _, err := m.WriteTo(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write outbox file: %w", err)
	}
	return path, f.Close()
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
