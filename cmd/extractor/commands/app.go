package commands

import (
	"github.com/rs/zerolog"

	"github.com/earnings-extractor/client/internal/artifact"
	"github.com/earnings-extractor/client/internal/config"
	"github.com/earnings-extractor/client/internal/history"
	"github.com/earnings-extractor/client/internal/processing"
	"github.com/earnings-extractor/client/internal/reports"
)

// app wires one processing controller and one history controller to a
// backend client. Every command builds exactly one.
type app struct {
	client     *reports.Client
	store      *artifact.MemoryStore
	history    *history.Controller
	processing *processing.Controller
}

func newApp(cfg *config.AppConfig, logger zerolog.Logger, origin string) *app {
	client := reports.NewClient(cfg.GetAPIBaseURL())
	store := artifact.NewMemoryStore(origin)

	hist := history.NewController(client,
		history.WithLogger(logger.With().Str("component", "history").Logger()),
	)
	proc := processing.NewController(client, store,
		processing.WithRefresher(hist),
		processing.WithLogger(logger.With().Str("component", "processing").Logger()),
	)

	return &app{
		client:     client,
		store:      store,
		history:    hist,
		processing: proc,
	}
}

// Close tears both controllers down and releases the held result.
func (a *app) Close() {
	a.processing.Close()
	a.history.Close()
}
