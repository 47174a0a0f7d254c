package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxitrace/toxitrace/internal/storage"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "https://toxitrace-backendx.onrender.com", cfg.API.URL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, storage.BackendKeyring, cfg.Storage.Backend)
	assert.Empty(t, cfg.Storage.Path)
	assert.Equal(t, ":3000", cfg.Portal.Addr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Portal.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.Portal.ShutdownTimeout)
	assert.Equal(t, "warn", cfg.Logging.LevelOr("warn"))
	assert.Equal(t, "console", cfg.Logging.FormatOr("console"))
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"TOXITRACE_API_URL":      "http://localhost:8000/",
		"TOXITRACE_HTTP_TIMEOUT": "5s",
		"TOXITRACE_STORAGE":      " SQLite ",
		"TOXITRACE_STORAGE_PATH": "/tmp/session.sqlite",
		"LOG_LEVEL":              "debug",
		"LOG_FORMAT":             "json",
		"PORTAL_ADDR":            "127.0.0.1:8080",
		"PORTAL_CORS_ORIGINS":    "http://a.test, http://b.test,",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.API.URL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, storage.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/session.sqlite", cfg.Storage.Path)
	assert.Equal(t, "debug", cfg.Logging.LevelOr("warn"))
	assert.Equal(t, "json", cfg.Logging.FormatOr("console"))
	assert.Equal(t, "127.0.0.1:8080", cfg.Portal.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Portal.CORSOrigins)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		errMsg  string
	}{
		{
			name:    "relative api url",
			environ: map[string]string{"TOXITRACE_API_URL": "localhost"},
			errMsg:  "TOXITRACE_API_URL must be an absolute URL",
		},
		{
			name:    "unknown storage",
			environ: map[string]string{"TOXITRACE_STORAGE": "redis"},
			errMsg:  `TOXITRACE_STORAGE must be one of keyring, file, sqlite, memory, got "redis"`,
		},
		{
			name:    "negative timeout",
			environ: map[string]string{"TOXITRACE_HTTP_TIMEOUT": "-1s"},
			errMsg:  "TOXITRACE_HTTP_TIMEOUT must be positive",
		},
		{
			name:    "unparseable timeout",
			environ: map[string]string{"TOXITRACE_HTTP_TIMEOUT": "soon"},
			errMsg:  "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_ReadsProcessEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOXITRACE_STORAGE", "memory")
	t.Setenv("TOXITRACE_API_URL", "http://api.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, storage.BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "http://api.test", cfg.API.URL)
}

func TestStorageOptions_NamespaceIsAPIHost(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"TOXITRACE_API_URL": "https://api.example.com:8443",
		"TOXITRACE_STORAGE": "file",
	})
	require.NoError(t, err)

	opts := cfg.StorageOptions()
	assert.Equal(t, storage.BackendFile, opts.Backend)
	assert.Equal(t, "api.example.com:8443", opts.Namespace)
}
