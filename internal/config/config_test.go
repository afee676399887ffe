package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadFile_DefaultsAndOverrides(t *testing.T) {
	p := writeFile(t, `
mode: debug
port: 9090
streams:
  max_age: 10m
events:
  rate_limit: 5
`)
	cfg, err := LoadFile(p)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.Streams.MaxAge)
	assert.Equal(t, "@every 5m", cfg.Streams.EvictSchedule)
	assert.Equal(t, 5, cfg.Events.RateLimit)
	assert.Equal(t, time.Second, cfg.Events.RateWindow)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
}

func TestLoadFile_EnvWins(t *testing.T) {
	p := writeFile(t, "mode: debug\nport: 9090\n")
	t.Setenv("PORT", "7070")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("MULTIVIEW_DB_DSN", "file::memory:")

	cfg, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "file::memory:", cfg.DB.DSN)
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
}

func TestValidate(t *testing.T) {
	base := Config{Mode: "debug", Port: 8080, ReadLimit: 1, SendBuffer: 1, DirectoryCacheTTL: time.Minute, Streams: StreamsConfig{MaxAge: time.Minute}}
	require.NoError(t, base.Validate())

	release := base
	release.Mode = "release"
	assert.Error(t, release.Validate())
	release.JWTSecret = "s"
	assert.NoError(t, release.Validate())

	badPort := base
	badPort.Port = 0
	assert.Error(t, badPort.Validate())

	noAge := base
	noAge.Streams.MaxAge = 0
	assert.Error(t, noAge.Validate())

	// a zero ttl would make go-cache keep identities forever
	noTTL := base
	noTTL.DirectoryCacheTTL = 0
	assert.Error(t, noTTL.Validate())
}
