package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "booking.db", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.OperationTimeout)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestParse_FlagBeatsEnv(t *testing.T) {
	// GIVEN: PORT and OPERATION_TIMEOUT in the environment
	// WHEN: -port is also passed
	// THEN: The flag wins for port, the env value is used for timeout

	t.Setenv("PORT", "9000")
	t.Setenv("OPERATION_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Parse([]string{"-port=3000"})
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.OperationTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown driver", []string{"-driver=mysql"}},
		{"bad port", []string{"-port=70000"}},
		{"negative rate", []string{"-rate-rps=-1"}},
		{"zero burst", []string{"-rate-rps=5", "-rate-burst=0"}},
		{"empty db", []string{"-db="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	// Missing file is not an error.
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RATE_LIMIT_BURST=7\n"), 0o600))
	t.Setenv("RATE_LIMIT_BURST", "")
	os.Unsetenv("RATE_LIMIT_BURST")

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimitBurst)
}
