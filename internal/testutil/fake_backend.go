// fake_backend.go - In-process report backend for testing
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"github.com/earnings-extractor/client/internal/models"
)

// UploadedFile is one multipart part received by the fake backend.
type UploadedFile struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// ProcessCall records a single POST /reports/process request.
type ProcessCall struct {
	Files []UploadedFile
}

// FakeBackend implements the report backend endpoints over HTTP
type FakeBackend struct {
	server *httptest.Server

	mu            sync.RWMutex
	processCalls  []ProcessCall
	historyCalls  int
	processStatus int
	processBody   []byte
	historyStatus int
	historyBody   []byte
	downloads     map[string][]byte
	gate          chan struct{}
}

// NewFakeBackend starts a fake backend that answers processing requests with
// a workbook listing the uploaded file names and reports an empty history.
func NewFakeBackend() *FakeBackend {
	fb := &FakeBackend{
		processStatus: http.StatusOK,
		historyStatus: http.StatusOK,
		historyBody:   []byte("[]"),
		downloads:     make(map[string][]byte),
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/reports/process", fb.handleProcess)
	e.GET("/reports/history", fb.handleHistory)
	e.GET("/reports/history/:id/download", fb.handleDownload)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	fb.server = httptest.NewServer(e)
	return fb
}

// URL returns the backend base address.
func (fb *FakeBackend) URL() string {
	return fb.server.URL
}

// Close shuts the server down.
func (fb *FakeBackend) Close() {
	fb.mu.Lock()
	if fb.gate != nil {
		close(fb.gate)
		fb.gate = nil
	}
	fb.mu.Unlock()
	fb.server.Close()
}

// Test Helper Methods

// SetProcessResponse fixes the status and body of processing responses.
// A nil body with a 2xx status makes the backend build a workbook.
func (fb *FakeBackend) SetProcessResponse(status int, body []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.processStatus = status
	fb.processBody = body
}

// SetHistoryResponse fixes the status and raw body of history responses.
func (fb *FakeBackend) SetHistoryResponse(status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.historyStatus = status
	fb.historyBody = []byte(body)
}

// SetHistory answers history requests with the given entries.
func (fb *FakeBackend) SetHistory(entries []models.HistoryEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		panic(err)
	}
	fb.SetHistoryResponse(http.StatusOK, string(data))
}

// AddDownload registers the spreadsheet served for a history entry.
func (fb *FakeBackend) AddDownload(id string, data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.downloads[id] = data
}

// HoldProcessing makes processing requests block until the returned
// release func is called.
func (fb *FakeBackend) HoldProcessing() (release func()) {
	gate := make(chan struct{})
	fb.mu.Lock()
	fb.gate = gate
	fb.mu.Unlock()

	return func() {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		// whoever clears the gate closes it
		if fb.gate == gate {
			fb.gate = nil
			close(gate)
		}
	}
}

// ProcessCalls returns a copy of all recorded processing requests.
func (fb *FakeBackend) ProcessCalls() []ProcessCall {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := make([]ProcessCall, len(fb.processCalls))
	copy(out, fb.processCalls)
	return out
}

// HistoryCalls returns the number of history requests received.
func (fb *FakeBackend) HistoryCalls() int {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.historyCalls
}

func (fb *FakeBackend) handleProcess(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid multipart body"})
	}

	var call ProcessCall
	var names []string
	for field, headers := range form.File {
		for _, fh := range headers {
			src, err := fh.Open()
			if err != nil {
				return err
			}
			data, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				return err
			}
			call.Files = append(call.Files, UploadedFile{
				Field:       field,
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
			names = append(names, fh.Filename)
		}
	}

	fb.mu.Lock()
	fb.processCalls = append(fb.processCalls, call)
	status, body, gate := fb.processStatus, fb.processBody, fb.gate
	fb.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if status < 200 || status >= 300 {
		return c.JSON(status, map[string]string{"detail": "processing failed"})
	}
	if body == nil {
		body, err = BuildWorkbook([]string{"File"}, rowsOf(names))
		if err != nil {
			return err
		}
	}
	return c.Blob(status, XLSXContentType, body)
}

func (fb *FakeBackend) handleHistory(c echo.Context) error {
	fb.mu.Lock()
	fb.historyCalls++
	status, body := fb.historyStatus, fb.historyBody
	fb.mu.Unlock()

	return c.Blob(status, echo.MIMEApplicationJSON, body)
}

func (fb *FakeBackend) handleDownload(c echo.Context) error {
	fb.mu.RLock()
	data, ok := fb.downloads[c.Param("id")]
	fb.mu.RUnlock()

	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Extraction not found"})
	}
	return c.Blob(http.StatusOK, XLSXContentType, data)
}

func rowsOf(names []string) [][]string {
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		rows = append(rows, []string{n})
	}
	return rows
}

// XLSXContentType is the media type of spreadsheet responses.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BuildWorkbook returns xlsx bytes with a header row followed by rows, on
// a sheet named "Sheet1".
func BuildWorkbook(headers []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	for r, row := range rows {
		for i, v := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
