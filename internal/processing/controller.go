// Package processing drives one upload, process and download cycle.
package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/earnings-extractor/client/internal/artifact"
	"github.com/earnings-extractor/client/internal/models"
	"github.com/earnings-extractor/client/internal/notify"
)

// User-visible messages.
const (
	ValidationMessage = "Please add at least one PDF to process."
	FailureMessage    = "Something went wrong while processing the files."
)

var (
	// ErrNoFiles is returned by Process when nothing is selected.
	ErrNoFiles = errors.New("no files selected")
	// ErrBusy is returned while a processing request is in flight.
	ErrBusy = errors.New("processing already in progress")
	// ErrNoResult is returned by Download when there is nothing to download.
	ErrNoResult = errors.New("no processing result available")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
	// ErrProcessingFailed wraps every backend or artifact failure.
	ErrProcessingFailed = errors.New("processing failed")
)

// Submitter uploads files and returns the spreadsheet bytes.
type Submitter interface {
	SubmitForProcessing(ctx context.Context, files []models.SelectedFile) ([]byte, error)
}

// Refresher is notified after every successful extraction.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Observer receives a snapshot after every state transition.
type Observer func(models.ProcessingSnapshot)

// Controller owns the processing state machine and the single live
// artifact reference.
type Controller struct {
	client    Submitter
	store     artifact.Store
	refresher Refresher
	logger    zerolog.Logger
	hub       *notify.Hub[models.ProcessingSnapshot]

	mu     sync.Mutex
	status models.ProcessingStatus
	files  []models.SelectedFile
	result *artifact.Ref
	errMsg string
	closed bool
	seq    uint64

	// pubMu orders delivery. Snapshots older than published are dropped.
	pubMu     sync.Mutex
	published uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithRefresher sets the component refreshed after each success.
func WithRefresher(r Refresher) Option {
	return func(c *Controller) {
		c.refresher = r
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController creates a controller in the Idle state.
func NewController(client Submitter, store artifact.Store, opts ...Option) *Controller {
	c := &Controller{
		client: client,
		store:  store,
		logger: zerolog.Nop(),
		hub:    notify.NewHub[models.ProcessingSnapshot](),
		status: models.ProcessingStatusIdle,
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

// Snapshot returns the current state.
func (c *Controller) Snapshot() models.ProcessingSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Select replaces the file selection. Any held result is released and the
// error cleared. An empty selection returns the controller to Idle.
func (c *Controller) Select(files []models.SelectedFile) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.status == models.ProcessingStatusProcessing {
		c.mu.Unlock()
		return ErrBusy
	}

	prev := c.result
	c.result = nil
	c.errMsg = ""
	c.files = append([]models.SelectedFile(nil), files...)
	if len(files) == 0 {
		c.status = models.ProcessingStatusIdle
	} else {
		c.status = models.ProcessingStatusFilesSelected
	}
	seq, snap := c.transitionLocked()
	c.mu.Unlock()

	c.release(prev)
	c.publish(seq, snap)
	return nil
}

// Process uploads the selected files and blocks until the backend answers.
// Validation failures return ErrNoFiles without a network call; backend
// failures move the controller to Failed and return an error wrapping
// ErrProcessingFailed. On success the refresher is called after observers
// have seen the Succeeded snapshot.
func (c *Controller) Process(ctx context.Context) error {
	files, err := c.begin()
	if err != nil {
		return err
	}
	return c.finish(ctx, files)
}

// ProcessAsync performs the same checks as Process and enters Processing
// before returning. The request then runs on its own goroutine; its outcome
// is delivered on the returned channel, which is closed afterwards.
func (c *Controller) ProcessAsync(ctx context.Context) (<-chan error, error) {
	files, err := c.begin()
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- c.finish(ctx, files)
	}()
	return done, nil
}

// begin validates the selection and moves the controller to Processing.
func (c *Controller) begin() ([]models.SelectedFile, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.status == models.ProcessingStatusProcessing {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if len(c.files) == 0 {
		c.errMsg = ValidationMessage
		seq, snap := c.transitionLocked()
		c.mu.Unlock()

		c.publish(seq, snap)
		return nil, ErrNoFiles
	}

	prev := c.result
	c.result = nil
	c.errMsg = ""
	c.status = models.ProcessingStatusProcessing
	files := append([]models.SelectedFile(nil), c.files...)
	seq, snap := c.transitionLocked()
	c.mu.Unlock()

	c.release(prev)
	c.publish(seq, snap)
	return files, nil
}

func (c *Controller) finish(ctx context.Context, files []models.SelectedFile) error {
	start := time.Now()
	names := models.FileNames(files)
	c.logger.Info().Strs("files", names).Msg("processing started")

	ref, err := c.submit(ctx, files)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.release(ref)
		return ErrClosed
	}
	if err != nil {
		c.status = models.ProcessingStatusFailed
		c.errMsg = FailureMessage
		seq, snap := c.transitionLocked()
		c.mu.Unlock()

		c.logger.Error().Err(err).Strs("files", names).
			Int64("elapsed_ms", time.Since(start).Milliseconds()).
			Msg("processing failed")
		c.publish(seq, snap)
		return fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}

	c.result = ref
	c.status = models.ProcessingStatusSucceeded
	seq, snap := c.transitionLocked()
	c.mu.Unlock()

	c.logger.Info().Strs("files", names).
		Int64("bytes", ref.Size).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("processing succeeded")
	c.publish(seq, snap)

	if c.refresher != nil {
		c.refresher.Refresh(ctx)
	}
	return nil
}

func (c *Controller) submit(ctx context.Context, files []models.SelectedFile) (*artifact.Ref, error) {
	data, err := c.client.SubmitForProcessing(ctx, files)
	if err != nil {
		return nil, err
	}
	ref, err := c.store.Create(models.ResultFilename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("registering artifact: %w", err)
	}
	return ref, nil
}

// Download writes the held result into sink under the fixed filename.
// It does not change state.
func (c *Controller) Download(sink Sink) error {
	c.mu.Lock()
	if c.status != models.ProcessingStatusSucceeded || c.result == nil {
		c.mu.Unlock()
		return ErrNoResult
	}
	url := c.result.URL
	c.mu.Unlock()

	r, _, err := c.store.Open(url)
	if err != nil {
		return fmt.Errorf("opening result: %w", err)
	}
	if err := sink.Save(models.ResultFilename, r); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// Close releases the held reference. It is safe to call more than once.
// A request still in flight finishes, but its result is released at once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	prev := c.result
	c.result = nil
	c.files = nil
	c.mu.Unlock()

	c.hub.Reset()

	c.release(prev)
}

func (c *Controller) release(ref *artifact.Ref) {
	if ref == nil {
		return
	}
	if err := c.store.Revoke(ref.URL); err != nil {
		c.logger.Warn().Err(err).Str("url", ref.URL).Msg("failed to revoke artifact")
	}
}

// transitionLocked stamps the current state with the next sequence number.
func (c *Controller) transitionLocked() (uint64, models.ProcessingSnapshot) {
	c.seq++
	return c.seq, c.snapshotLocked()
}

// publish delivers snap unless a later transition was already delivered,
// so observers always end on the controller's current state. Observers
// must not call back into Select, Process or Close.
func (c *Controller) publish(seq uint64, snap models.ProcessingSnapshot) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if seq <= c.published {
		c.logger.Debug().Str("status", string(snap.Status)).Msg("dropping stale snapshot")
		return
	}
	c.published = seq
	c.hub.Publish(snap)
}

func (c *Controller) snapshotLocked() models.ProcessingSnapshot {
	snap := models.ProcessingSnapshot{
		Status: c.status,
		Files:  models.FileNames(c.files),
		Error:  c.errMsg,
	}
	if c.result != nil {
		snap.Result = &models.ProcessingResult{
			URL:       c.result.URL,
			Filename:  c.result.Filename,
			Size:      c.result.Size,
			CreatedAt: c.result.CreatedAt,
		}
	}
	return snap
}
