// Package history presents past extractions reported by the backend.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/earnings-extractor/client/internal/models"
	"github.com/earnings-extractor/client/internal/notify"
)

// EmptyMessage is shown when there is nothing to list, including after a
// failed fetch.
const EmptyMessage = "No history yet. Process some PDFs to see them here. History is saved when Supabase is configured for the backend."

// Placeholder is rendered for missing or unreadable timestamps.
const Placeholder = "—"

// TimestampLayout renders entry creation times.
const TimestampLayout = "Jan 2, 2006, 03:04 PM"

// parseLayouts are tried in order on the backend's created_at value.
var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// Fetcher is the part of the backend client the history panel needs.
type Fetcher interface {
	FetchHistory(ctx context.Context) ([]models.HistoryEntry, error)
	DownloadLinkFor(id string) string
}

// Observer receives the view after every change.
type Observer func(models.HistoryView)

// Controller fetches history on demand and keeps the last good list.
type Controller struct {
	fetcher  Fetcher
	logger   zerolog.Logger
	location *time.Location
	hub      *notify.Hub[models.HistoryView]

	mu       sync.Mutex
	status   models.HistoryStatus
	entries  []models.HistoryEntry
	inFlight int
	// gen orders overlapping fetches; only the newest one is applied.
	gen uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithLocation sets the zone timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.location = loc
		}
	}
}

// NewController creates a controller that has not fetched yet. Its view
// reports Loading until the first fetch completes.
func NewController(fetcher Fetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher:  fetcher,
		logger:   zerolog.Nop(),
		location: time.Local,
		hub:      notify.NewHub[models.HistoryView](),
		status:   models.HistoryStatusLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an observer and returns a func that removes it.
func (c *Controller) Subscribe(fn Observer) (unsubscribe func()) {
	return c.hub.Subscribe(fn)
}

// Start performs the initial fetch.
func (c *Controller) Start(ctx context.Context) {
	c.Refresh(ctx)
}

// Refresh re-fetches the history and blocks until the fetch completes.
// Entries already shown stay visible while the fetch is in flight. Any
// failure leaves the panel empty.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.inFlight++
	changed := false
	if len(c.entries) == 0 && c.status != models.HistoryStatusLoading {
		c.status = models.HistoryStatusLoading
		changed = true
	}
	view := c.viewLocked()
	c.mu.Unlock()

	if changed {
		c.hub.Publish(view)
	}

	entries, err := c.fetcher.FetchHistory(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("history unavailable")
		entries = nil
	}

	c.mu.Lock()
	c.inFlight--
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.entries = append([]models.HistoryEntry(nil), entries...)
	if len(c.entries) == 0 {
		c.status = models.HistoryStatusEmpty
	} else {
		c.status = models.HistoryStatusLoaded
	}
	view = c.viewLocked()
	c.mu.Unlock()

	c.logger.Debug().Int("entries", len(entries)).Msg("history refreshed")
	c.hub.Publish(view)
}

// Loading reports whether a fetch is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// View returns the rendered history.
func (c *Controller) View() models.HistoryView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Close drops all observers.
func (c *Controller) Close() {
	c.hub.Reset()
}

func (c *Controller) viewLocked() models.HistoryView {
	view := models.HistoryView{
		Status: c.status,
		Items:  make([]models.HistoryItem, 0, len(c.entries)),
	}
	for _, e := range c.entries {
		view.Items = append(view.Items, models.HistoryItem{
			ID:             e.ID,
			Timestamp:      FormatTimestamp(e.CreatedAt, c.location),
			DownloadURL:    c.fetcher.DownloadLinkFor(e.ID),
			InputFileNames: append([]string{}, e.InputFileNames...),
		})
	}
	if c.status == models.HistoryStatusEmpty {
		view.Message = EmptyMessage
	}
	return view
}

// FormatTimestamp renders a backend creation time in loc. Values without a
// zone are read as UTC. Empty or unparseable values render as Placeholder.
func FormatTimestamp(raw string, loc *time.Location) string {
	if raw == "" {
		return Placeholder
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(loc).Format(TimestampLayout)
		}
	}
	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		return t.In(loc).Format(TimestampLayout)
	}
	return Placeholder
}
