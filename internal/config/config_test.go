package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, "coozie.toml")
	t.Setenv("COOZIE_CONFIG", path)
	return path
}

func TestLoadDefaults(t *testing.T) {
	home := filepath.Dir(isolate(t))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "share", "coozie", "coozie.db"), cfg.Database.Path)
	require.Equal(t, 6, cfg.Code.Length)
	require.Equal(t, 10*time.Minute, cfg.Code.TTL)
	require.Equal(t, 5, cfg.Code.MaxAttempts)
	require.Equal(t, 3, cfg.Code.MaxResends)
	require.Equal(t, 60*time.Second, cfg.Code.ResendCooldown)
	require.Equal(t, 300*time.Millisecond, cfg.Code.Debounce)
	require.Equal(t, 3*time.Second, cfg.Code.NoticeWindow)
	require.True(t, cfg.Mail.DryRun)
	require.Equal(t, 587, cfg.Mail.SMTPPort)
	require.Equal(t, "no-reply@coozie.app", cfg.Mail.From)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, 2*time.Second, cfg.UI.RedirectDelay)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := isolate(t)
	content := `
[code]
length = 8
debounce = "150ms"

[mail]
smtp_host = "smtp.example.com"
dry_run = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("COOZIE_CODE_RESEND_COOLDOWN", "30s")
	t.Setenv("COOZIE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Code.Length)
	require.Equal(t, 150*time.Millisecond, cfg.Code.Debounce)
	require.Equal(t, "smtp.example.com", cfg.Mail.SMTPHost)
	require.False(t, cfg.Mail.DryRun)
	require.Equal(t, 30*time.Second, cfg.Code.ResendCooldown)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadLength(t *testing.T) {
	isolate(t)
	t.Setenv("COOZIE_CODE_LENGTH", "12")

	_, err := Load()
	require.ErrorIs(t, err, ErrCodeLength)
}

func TestValidateTimings(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)

	bad := cfg
	bad.Code.Debounce = -time.Second
	require.ErrorIs(t, bad.Validate(), ErrTiming)

	bad = cfg
	bad.Code.TTL = 0
	require.ErrorIs(t, bad.Validate(), ErrTiming)

	bad = cfg
	bad.Code.ResendCooldown = 0
	require.ErrorIs(t, bad.Validate(), ErrTiming)
}

func TestSaveThenLoad(t *testing.T) {
	path := isolate(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Code.Length = 4
	cfg.Code.ResendCooldown = 45 * time.Second
	cfg.Mail.Password = "hunter2"
	require.NoError(t, Save(cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "hunter2")

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4, got.Code.Length)
	require.Equal(t, 45*time.Second, got.Code.ResendCooldown)
	require.Empty(t, got.Mail.Password)
}
