package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL", "PORT", "BIND_ADDRESS",
		"DOWNLOAD_DIR", "LOG_LEVEL", "LOG_FORMAT", "ENABLE_REQUEST_LOGGING",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, "127.0.0.1:3000", cfg.GetServerAddr())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "https://reports.example.com/")
	t.Setenv("PORT", "4010")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENABLE_REQUEST_LOGGING", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://reports.example.com", cfg.GetAPIBaseURL())
	assert.Equal(t, 4010, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.False(t, cfg.Advanced.EnableRequestLogging)
}

func TestLoad_LegacyFrontendVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "http://backend:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.GetAPIBaseURL())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("API_BASE_URL=http://from-file:8001\n"), 0644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8001", cfg.GetAPIBaseURL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		port    int
		wantErr bool
	}{
		{"valid http", "http://localhost:8000", 3000, false},
		{"valid https", "https://api.example.com", 3000, false},
		{"bad scheme", "ftp://localhost", 3000, true},
		{"missing host", "http://", 3000, true},
		{"bad port", "http://localhost:8000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.API.BaseURL = tt.baseURL
			cfg.Server.Port = tt.port
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.DownloadDirectory = filepath.Join(t.TempDir(), "out", "reports")

	require.NoError(t, cfg.EnsureDirectories())
	info, err := os.Stat(cfg.GetDownloadDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
