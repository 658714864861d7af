package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"CONFUTIL_DB", "CONFUTIL_SERVER", "CONFUTIL_ADDR", "CONFUTIL_UID", "CONFUTIL_CRM",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			expected: &Config{
				DBPath:    "confutil.db",
				ServerURL: "http://localhost:8888",
				Addr:      ":8888",
				UID:       1,
				Logging:   LoggingConfig{Level: "info", Format: "console", Output: "stderr"},
				Server: ServerConfig{
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 30 * time.Second,
					IdleTimeout:  60 * time.Second,
				},
			},
		},
		{
			name: "overrides",
			envVars: map[string]string{
				"CONFUTIL_DB":     "/var/lib/confutil/prod.db",
				"CONFUTIL_SERVER": "https://conf.example.com",
				"CONFUTIL_ADDR":   "127.0.0.1:9000",
				"CONFUTIL_UID":    "7",
				"CONFUTIL_CRM":    "true",
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "json",
				"LOG_OUTPUT":      "stdout",
				"READ_TIMEOUT":    "5s",
			},
			expected: &Config{
				DBPath:    "/var/lib/confutil/prod.db",
				ServerURL: "https://conf.example.com",
				Addr:      "127.0.0.1:9000",
				UID:       7,
				CRM:       true,
				Logging:   LoggingConfig{Level: "debug", Format: "json", Output: "stdout"},
				Server: ServerConfig{
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 30 * time.Second,
					IdleTimeout:  60 * time.Second,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		fields  []string
	}{
		{"bad uid", map[string]string{"CONFUTIL_UID": "admin"}, []string{"CONFUTIL_UID", "CONFUTIL_UID"}},
		{"zero uid", map[string]string{"CONFUTIL_UID": "0"}, []string{"CONFUTIL_UID"}},
		{"bad crm", map[string]string{"CONFUTIL_CRM": "maybe"}, []string{"CONFUTIL_CRM"}},
		{"relative server", map[string]string{"CONFUTIL_SERVER": "localhost"}, []string{"CONFUTIL_SERVER"}},
		{"bad timeout", map[string]string{"WRITE_TIMEOUT": "soon"}, []string{"WRITE_TIMEOUT"}},
		{
			"several",
			map[string]string{"LOG_LEVEL": "loud", "LOG_FORMAT": "xml", "LOG_OUTPUT": "syslog"},
			[]string{"LOG_FORMAT", "LOG_LEVEL", "LOG_OUTPUT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			fields := make([]string, len(verrs))
			for i, e := range verrs {
				fields[i] = e.Field
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestMustLoadPanics(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_FORMAT", "xml")
	assert.Panics(t, func() { MustLoad() })
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CONFUTIL_DB=fromfile.db\nCONFUTIL_CRM=true\n"), 0o600))
	t.Setenv("CONFUTIL_CRM", "false")
	// godotenv only fills variables that are unset
	require.NoError(t, os.Unsetenv("CONFUTIL_DB"))

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromfile.db", cfg.DBPath)
	assert.False(t, cfg.CRM)

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
