package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Code     CodeConfig     `mapstructure:"code"`
	Mail     MailConfig     `mapstructure:"mail"`
	Auth     AuthConfig     `mapstructure:"auth"`
	UI       UIConfig       `mapstructure:"ui"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CodeConfig holds verification code policy and screen timings.
type CodeConfig struct {
	Length         int           `mapstructure:"length"`
	TTL            time.Duration `mapstructure:"ttl"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MaxResends     int           `mapstructure:"max_resends"`
	ResendWindow   time.Duration `mapstructure:"resend_window"`
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"`
	Debounce       time.Duration `mapstructure:"debounce"`
	NoticeWindow   time.Duration `mapstructure:"notice_window"`
}

// MailConfig holds SMTP settings. With DryRun set, messages are written to
// OutboxDir instead of being sent.
type MailConfig struct {
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	From      string `mapstructure:"from"`
	DryRun    bool   `mapstructure:"dry_run"`
	OutboxDir string `mapstructure:"outbox_dir"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
}

// LogConfig holds logger settings. Logs go to a file so they never draw over
// the terminal screen.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// Validation errors.
var (
	ErrCodeLength = errors.New("code.length must be between 4 and 10")
	ErrTiming     = errors.New("code timings out of range")
)

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "coozie")
}

// Path returns the config file location: $COOZIE_CONFIG or
// ~/.config/coozie/config.toml.
func Path() string {
	if p := os.Getenv("COOZIE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "coozie", "config.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(dataDir(), "coozie.db"))
	v.SetDefault("code.length", 6)
	v.SetDefault("code.ttl", 10*time.Minute)
	v.SetDefault("code.max_attempts", 5)
	v.SetDefault("code.max_resends", 3)
	v.SetDefault("code.resend_window", 10*time.Minute)
	v.SetDefault("code.resend_cooldown", 60*time.Second)
	v.SetDefault("code.debounce", 300*time.Millisecond)
	v.SetDefault("code.notice_window", 3*time.Second)
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@coozie.app")
	v.SetDefault("mail.dry_run", true)
	v.SetDefault("mail.outbox_dir", filepath.Join(dataDir(), "outbox"))
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "coozie")
	v.SetDefault("ui.redirect_delay", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(dataDir(), "coozie.log"))
}

// Load reads configuration from file and env. Env var overrides use prefix COOZIE_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("COOZIE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the code policy and timings.
func (c Config) Validate() error {
	if c.Code.Length < 4 || c.Code.Length > 10 {
		return fmt.Errorf("%w: got %d", ErrCodeLength, c.Code.Length)
	}
	switch {
	case c.Code.TTL <= 0:
		return fmt.Errorf("%w: code.ttl must be positive", ErrTiming)
	case c.Code.ResendCooldown <= 0:
		return fmt.Errorf("%w: code.resend_cooldown must be positive", ErrTiming)
	case c.Code.Debounce < 0:
		return fmt.Errorf("%w: code.debounce must not be negative", ErrTiming)
	case c.Code.MaxAttempts < 1:
		return fmt.Errorf("%w: code.max_attempts must be at least 1", ErrTiming)
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// Secrets (mail password, signing key) are left out; keep them in the secrets
// store or the environment.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("code.length", cfg.Code.Length)
	v.Set("code.ttl", cfg.Code.TTL.String())
	v.Set("code.max_attempts", cfg.Code.MaxAttempts)
	v.Set("code.max_resends", cfg.Code.MaxResends)
	v.Set("code.resend_window", cfg.Code.ResendWindow.String())
	v.Set("code.resend_cooldown", cfg.Code.ResendCooldown.String())
	v.Set("code.debounce", cfg.Code.Debounce.String())
	v.Set("code.notice_window", cfg.Code.NoticeWindow.String())
	v.Set("mail.smtp_host", cfg.Mail.SMTPHost)
	v.Set("mail.smtp_port", cfg.Mail.SMTPPort)
	v.Set("mail.username", cfg.Mail.Username)
	v.Set("mail.from", cfg.Mail.From)
	v.Set("mail.dry_run", cfg.Mail.DryRun)
	v.Set("mail.outbox_dir", cfg.Mail.OutboxDir)
	v.Set("auth.token_ttl", cfg.Auth.TokenTTL.String())
	v.Set("auth.issuer", cfg.Auth.Issuer)
	v.Set("ui.redirect_delay", cfg.UI.RedirectDelay.String())
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.path", cfg.Log.Path)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
