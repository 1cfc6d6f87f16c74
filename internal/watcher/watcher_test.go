package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/guess2/dailytrivia/internal/config"
	"github.com/stretchr/testify/require"
)

const baseConfig = "database:\n  dsn: file:trivia.db\njwt:\n  secret: s\nstripe:\n  disabled: true\n"

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestConfigWatcherReloadsOnChange(t *testing.T) {
	for _, key := range []string{
		config.EnvDatabaseURL, config.EnvJWTSecret, config.EnvRateLimit,
		config.EnvStripeSecretKey, config.EnvStripeWebhookSecret, config.EnvLogLevel,
	} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, baseConfig)

	var reloaded []config.Config
	w := New(path, 0, func(cfg config.Config) { reloaded = append(reloaded, cfg) })
	w.Start(context.Background())
	t.Cleanup(w.Stop)

	require.False(t, w.Poll(), "unchanged file must not reload")

	writeConfig(t, path, baseConfig+"rate-limit:\n  per-second: 5\n")
	require.True(t, w.Poll())
	require.Len(t, reloaded, 1)
	require.Equal(t, 5, reloaded[0].RateLimitPerSecond())
	require.False(t, w.Poll())

	writeConfig(t, path, "database: [\n")
	require.False(t, w.Poll(), "unparsable file is skipped")

	writeConfig(t, path, "database:\n  dsn: file:trivia.db\nstripe:\n  disabled: true\n")
	require.False(t, w.Poll(), "file missing the jwt secret is skipped")

	writeConfig(t, path, baseConfig+"logging:\n  level: debug\n")
	require.True(t, w.Poll())
	require.Len(t, reloaded, 2)
	require.Equal(t, "debug", reloaded[1].Logging.Level)
}

func TestConfigWatcherMissingPath(t *testing.T) {
	w := New("", 0, nil)
	w.Start(context.Background())
	require.False(t, w.Poll())
	w.Stop()

	w = New(filepath.Join(t.TempDir(), "absent.yaml"), 0, nil)
	require.False(t, w.Poll())
}
