// Package config provides environment-based configuration for the extractor client.
// The only setting the core depends on is the backend base address; the rest
// configures the local web UI and logging.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is the backend address used when none is configured.
const DefaultAPIBaseURL = "http://localhost:8000"

// AppConfig represents the full client configuration
type AppConfig struct {
	// Backend API configuration
	API APIConfig

	// Local web UI server configuration
	Server ServerConfig

	// Download destination for the CLI
	Storage StorageConfig

	// Logging options
	Advanced AdvancedConfig
}

// APIConfig contains backend connection settings
type APIConfig struct {
	BaseURL string
}

// ServerConfig contains local web UI settings
type ServerConfig struct {
	Port         int
	BindAddress  string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	BodyLimit    string
}

// StorageConfig contains local file settings
type StorageConfig struct {
	DownloadDirectory string
}

// AdvancedConfig contains logging options
type AdvancedConfig struct {
	LogLevel             string
	LogFormat            string
	EnableRequestLogging bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL: DefaultAPIBaseURL,
		},
		Server: ServerConfig{
			Port:         3000,
			BindAddress:  "127.0.0.1",
			ReadTimeout:  30,
			WriteTimeout: 0, // processing responses are not bounded
			IdleTimeout:  120,
			BodyLimit:    "200M",
		},
		Storage: StorageConfig{
			DownloadDirectory: ".",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "console",
			EnableRequestLogging: true,
		},
	}
}

// Load builds the configuration from defaults, an optional .env file and the
// process environment. A missing .env file is not an error.
func Load(envFiles ...string) (*AppConfig, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else {
		for _, f := range envFiles {
			if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
			}
		}
	}

	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// API_BASE_URL wins over the legacy frontend variable
	if base := os.Getenv("API_BASE_URL"); base != "" {
		c.API.BaseURL = base
	} else if base := os.Getenv("NEXT_PUBLIC_API_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		c.Server.BindAddress = addr
	}

	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		c.Storage.DownloadDirectory = dir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Advanced.LogFormat = format
	}

	if v := os.Getenv("ENABLE_REQUEST_LOGGING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Advanced.EnableRequestLogging = b
		}
	}
}

// Validate checks that the configuration is usable.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid API base URL %q: %w", c.API.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API base URL %q: scheme must be http or https", c.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid API base URL %q: missing host", c.API.BaseURL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// GetAPIBaseURL returns the backend base address without a trailing slash
func (c *AppConfig) GetAPIBaseURL() string {
	return strings.TrimRight(c.API.BaseURL, "/")
}

// GetServerAddr returns the web UI bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetDownloadDir returns the absolute download directory path
func (c *AppConfig) GetDownloadDir() string {
	if abs, err := filepath.Abs(c.Storage.DownloadDirectory); err == nil {
		return abs
	}
	return c.Storage.DownloadDirectory
}

// EnsureDirectories creates the download directory
func (c *AppConfig) EnsureDirectories() error {
	dir := c.GetDownloadDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
