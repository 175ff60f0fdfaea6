package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points Load at a missing .env file and clears FIRMOWY_* vars.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("FIRMOWY_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, k := range []string{
		"FIRMOWY_HTTP_ADDR", "FIRMOWY_DB_DSN", "FIRMOWY_DB_MAX_OPEN_CONNS", "FIRMOWY_DB_MAX_IDLE_CONNS",
		"FIRMOWY_DB_CONN_MAX_LIFETIME", "FIRMOWY_JWT_SECRET", "FIRMOWY_TOKEN_TTL", "FIRMOWY_SESSION_TTL",
		"FIRMOWY_SECURE_COOKIES", "FIRMOWY_SEED_PATH", "FIRMOWY_LOG_LEVEL", "FIRMOWY_LOG_FILE", "FIRMOWY_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, cfg.InsecureSecret())
	assert.Equal(t, 60*time.Minute, cfg.TokenTTL)
}

func TestLoad_Layers(t *testing.T) {
	isolate(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FIRMOWY_JWT_SECRET=from-dotenv\nFIRMOWY_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("FIRMOWY_ENV_FILE", envFile)
	t.Cleanup(func() {
		os.Unsetenv("FIRMOWY_JWT_SECRET")
		os.Unsetenv("FIRMOWY_LOG_LEVEL")
	})
	// godotenv never overrides variables that are already set, so the
	// empty values from isolate must go.
	os.Unsetenv("FIRMOWY_JWT_SECRET")
	os.Unsetenv("FIRMOWY_LOG_LEVEL")

	t.Setenv("FIRMOWY_HTTP_ADDR", ":9000")
	t.Setenv("FIRMOWY_TOKEN_TTL", "15m")
	t.Setenv("FIRMOWY_ALLOWED_ORIGINS", "http://localhost:5173, http://localhost:3000")

	cfg, err := Load([]string{"-addr", ":9100", "-seed", "", "-secure-cookies"})
	require.NoError(t, err)

	want := Default()
	want.HTTPAddr = ":9100"
	want.JWTSecret = "from-dotenv"
	want.LogLevel = "debug"
	want.TokenTTL = 15 * time.Minute
	want.SeedPath = ""
	want.SecureCookies = true
	want.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, cfg.InsecureSecret())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad int", env: map[string]string{"FIRMOWY_DB_MAX_OPEN_CONNS": "many"}},
		{name: "bad duration", env: map[string]string{"FIRMOWY_SESSION_TTL": "8 hours"}},
		{name: "bad bool", env: map[string]string{"FIRMOWY_SECURE_COOKIES": "sometimes"}},
		{name: "unknown flag", args: []string{"-verbose"}},
		{name: "zero ttl", args: []string{"-token-ttl", "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}
