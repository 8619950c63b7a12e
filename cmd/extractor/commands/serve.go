package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/earnings-extractor/client/cmd/extractor/ui"
	"github.com/earnings-extractor/client/internal/api"
	"github.com/earnings-extractor/client/internal/config"
	"github.com/earnings-extractor/client/internal/web"
)

var (
	servePort int
	serveBind string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web UI",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides PORT)")
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "bind address (overrides BIND_ADDRESS)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveBind != "" {
		cfg.Server.BindAddress = serveBind
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger, "http://"+cfg.GetServerAddr())
	defer a.Close()

	e, handlers, err := newServer(cfg, a)
	if err != nil {
		return err
	}
	defer handlers.Close()

	checkBackend(ctx, a)
	go a.history.Start(context.WithoutCancel(ctx))

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newServer builds the echo instance serving the UI and its API.
func newServer(cfg *config.AppConfig, a *app) (*echo.Echo, *api.Handlers, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		VerboseErrors:  verbose,
	}, logger)

	handlers := api.NewHandlers(&api.Dependencies{
		Processing: a.processing,
		History:    a.history,
		Backend:    a.client,
		Logger:     logger.With().Str("component", "web").Logger(),
		Version:    version,
	})
	api.RegisterRoutes(e, handlers)

	if err := web.RegisterStaticRoutes(e); err != nil {
		handlers.Close()
		return nil, nil, fmt.Errorf("register UI: %w", err)
	}
	return e, handlers, nil
}

func checkBackend(ctx context.Context, a *app) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.client.Health(ctx); err != nil {
		logger.Warn().Err(err).Str("backend", a.client.BaseURL()).Msg("backend unreachable")
		ui.Warning("Backend %s is not reachable; processing will fail until it is up", a.client.BaseURL())
	}
}

func printBanner(cfg *config.AppConfig) {
	w := ui.Writer()
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║           Earnings PDF Extractor                          ║\n")
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Version:    %-45s║\n", version)
	fmt.Fprintf(w, "║  Build Time: %-45s║\n", buildTime)
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Fprintf(w, "║  Backend:   %-46s║\n", cfg.GetAPIBaseURL())
	fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Open http://%s in your browser\n\n", cfg.GetServerAddr())
}
