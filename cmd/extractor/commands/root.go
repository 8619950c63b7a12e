// Package commands implements the extractor CLI.
package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/earnings-extractor/client/cmd/extractor/ui"
	"github.com/earnings-extractor/client/internal/config"
	"github.com/earnings-extractor/client/internal/observability"
)

var (
	envFile    string
	apiBaseURL string
	logLevel   string
	verbose    bool
	noColor    bool

	// set by PersistentPreRunE
	cfg    *config.AppConfig
	logger zerolog.Logger
)

// Build information, set by Execute.
var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "extractor",
	Short: "Earnings PDF extractor client",
	Long: `Upload earnings report PDFs to the extraction backend, download the
resulting spreadsheet, and browse past extractions.

The backend address comes from API_BASE_URL (or NEXT_PUBLIC_API_BASE_URL)
and defaults to http://localhost:8000.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Init(noColor)

		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		loaded, err := config.Load(files...)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if apiBaseURL != "" {
			loaded.API.BaseURL = apiBaseURL
		}
		if logLevel != "" {
			loaded.Advanced.LogLevel = logLevel
		}
		if verbose {
			loaded.Advanced.LogLevel = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		cfg = loaded
		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Advanced.LogLevel,
			Format:      cfg.Advanced.LogFormat,
			ServiceName: "earnings-extractor",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from this file instead of .env")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-base-url", "", "backend base address (overrides API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute(ver, built string) error {
	version, buildTime = ver, built
	rootCmd.Version = ver
	return rootCmd.Execute()
}
