// handlers_processing.go - File selection, processing and download handlers
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/earnings-extractor/client/internal/models"
	"github.com/earnings-extractor/client/internal/processing"
	"github.com/earnings-extractor/client/internal/workbook"
)

const (
	// FilesField is the multipart field carrying selected PDFs.
	FilesField = "files"

	pdfContentType  = "application/pdf"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultPreviewRows = 20
	maxPreviewRows     = 500
)

// ProcessingHandlerImpl implements the ProcessingHandler interface
type ProcessingHandlerImpl struct {
	processing ProcessingService
	logger     zerolog.Logger
}

// NewProcessingHandler creates a new processing handler
func NewProcessingHandler(svc ProcessingService, logger zerolog.Logger) ProcessingHandler {
	return &ProcessingHandlerImpl{
		processing: svc,
		logger:     logger,
	}
}

// HandleSelectFiles replaces the selection with the PDFs posted under the
// "files" field. Posting no files clears the selection.
func (h *ProcessingHandlerImpl) HandleSelectFiles(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected a multipart form", err)
	}

	headers := form.File[FilesField]
	files := make([]models.SelectedFile, 0, len(headers))
	for _, fh := range headers {
		if !isPDF(fh.Filename, fh.Header.Get(echo.HeaderContentType)) {
			return NewValidationError(fmt.Sprintf("%s is not a PDF file", fh.Filename))
		}

		src, err := fh.Open()
		if err != nil {
			return NewBadRequestError("failed to read uploaded file", err)
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return NewBadRequestError("failed to read uploaded file", err)
		}

		files = append(files, models.SelectedFile{Name: fh.Filename, Content: content})
	}

	if err := h.processing.Select(files); err != nil {
		return mapProcessingError(err)
	}

	return c.JSON(http.StatusOK, h.processing.Snapshot())
}

// HandleProcess starts processing in the background and answers 202 once
// the controller has entered Processing.
func (h *ProcessingHandlerImpl) HandleProcess(c echo.Context) error {
	// the request must outlive the HTTP exchange
	ctx := context.WithoutCancel(c.Request().Context())

	done, err := h.processing.ProcessAsync(ctx)
	if err != nil {
		return mapProcessingError(err)
	}

	go func() {
		if err := <-done; err != nil {
			h.logger.Debug().Err(err).Msg("background processing finished with error")
		}
	}()

	return c.JSON(http.StatusAccepted, h.processing.Snapshot())
}

// HandleDownload streams the current result as an attachment.
func (h *ProcessingHandlerImpl) HandleDownload(c echo.Context) error {
	if err := h.processing.Download(&responseSink{c: c}); err != nil {
		if errors.Is(err, processing.ErrNoResult) {
			return NewNotFoundError("processing result")
		}
		if c.Response().Committed {
			h.logger.Error().Err(err).Msg("download interrupted")
			return nil
		}
		return NewInternalError("failed to download result", err)
	}
	return nil
}

// HandlePreview returns the first rows of each sheet of the current result.
func (h *ProcessingHandlerImpl) HandlePreview(c echo.Context) error {
	rows := defaultPreviewRows
	if v := c.QueryParam("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewBadRequestError("rows must be a positive integer", err)
		}
		rows = min(n, maxPreviewRows)
	}

	var sink bufferSink
	if err := h.processing.Download(&sink); err != nil {
		if errors.Is(err, processing.ErrNoResult) {
			return NewNotFoundError("processing result")
		}
		return NewInternalError("failed to read result", err)
	}

	sheets, err := workbook.Preview(sink.buf.Bytes(), rows)
	if err != nil {
		return NewUnprocessableError("result is not a readable workbook", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"filename": sink.filename,
		"sheets":   sheets,
	})
}

// responseSink streams a download straight into the HTTP response.
type responseSink struct {
	c echo.Context
}

func (s *responseSink) Save(filename string, r io.Reader) error {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	s.c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return s.c.Stream(http.StatusOK, xlsxContentType, r)
}

// bufferSink keeps a download in memory.
type bufferSink struct {
	filename string
	buf      bytes.Buffer
}

func (s *bufferSink) Save(filename string, r io.Reader) error {
	s.filename = filename
	_, err := s.buf.ReadFrom(r)
	return err
}

func mapProcessingError(err error) error {
	switch {
	case errors.Is(err, processing.ErrNoFiles):
		return NewValidationError(processing.ValidationMessage)
	case errors.Is(err, processing.ErrBusy):
		return NewConflictError("processing already in progress")
	case errors.Is(err, processing.ErrClosed):
		return NewServiceUnavailableError("shutting down")
	default:
		return NewInternalError("processing request failed", err)
	}
}

func isPDF(filename, contentType string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == pdfContentType {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
