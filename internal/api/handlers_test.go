package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earnings-extractor/client/internal/artifact"
	"github.com/earnings-extractor/client/internal/history"
	"github.com/earnings-extractor/client/internal/models"
	"github.com/earnings-extractor/client/internal/processing"
	"github.com/earnings-extractor/client/internal/reports"
	"github.com/earnings-extractor/client/internal/testutil"
)

type testApp struct {
	e          *echo.Echo
	backend    *testutil.FakeBackend
	processing *processing.Controller
	history    *history.Controller
	handlers   *Handlers
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	backend := testutil.NewFakeBackend()
	client := reports.NewClient(backend.URL())
	hist := history.NewController(client)
	proc := processing.NewController(client, artifact.NewMemoryStore("test"), processing.WithRefresher(hist))

	handlers := NewHandlers(&Dependencies{
		Processing: proc,
		History:    hist,
		Backend:    client,
		Logger:     zerolog.Nop(),
		Version:    "test",
	})

	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(true)

	t.Cleanup(func() {
		handlers.Close()
		proc.Close()
		backend.Close()
	})

	return &testApp{e: e, backend: backend, processing: proc, history: hist, handlers: handlers}
}

type part struct {
	name        string
	contentType string
	data        string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		w, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

// serve runs handler and passes any returned error through the error
// handler, like echo does for routed requests.
func (a *testApp) serve(handler echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := a.e.NewContext(req, rec)
	if err := handler(c); err != nil {
		a.e.HTTPErrorHandler(err, c)
	}
	return rec
}

func (a *testApp) selectFiles(t *testing.T, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	return a.serve(a.handlers.Processing.HandleSelectFiles, req)
}

func (a *testApp) waitForStatus(t *testing.T, want models.ProcessingStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return a.processing.Snapshot().Status == want
	}, 5*time.Second, 10*time.Millisecond)
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHandleSelectFiles(t *testing.T) {
	app := newTestApp(t)

	rec := app.selectFiles(t,
		part{name: "q1.pdf", contentType: "application/pdf", data: "%PDF-1"},
		part{name: "Q2.PDF", contentType: "application/octet-stream", data: "%PDF-2"},
	)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.ProcessingSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, models.ProcessingStatusFilesSelected, snap.Status)
	assert.Equal(t, []string{"q1.pdf", "Q2.PDF"}, snap.Files)

	t.Run("rejects non-pdf files", func(t *testing.T) {
		rec := app.selectFiles(t, part{name: "notes.txt", contentType: "text/plain", data: "hi"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)
		assert.Equal(t, []string{"q1.pdf", "Q2.PDF"}, app.processing.Snapshot().Files, "selection unchanged")
	})

	t.Run("empty selection clears", func(t *testing.T) {
		rec := app.selectFiles(t)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.ProcessingStatusIdle, app.processing.Snapshot().Status)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/files", bytes.NewBufferString("{}"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := app.serve(app.handlers.Processing.HandleSelectFiles, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleProcess_Validation(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	rec := app.serve(app.handlers.Processing.HandleProcess, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, processing.ValidationMessage, decodeAPIError(t, rec).Message)
	assert.Empty(t, app.backend.ProcessCalls())
}

func TestHandleProcess_SuccessDownloadAndHistory(t *testing.T) {
	app := newTestApp(t)
	app.backend.SetHistory([]models.HistoryEntry{
		{ID: "h1", CreatedAt: "2024-01-05T09:00:00Z", InputFileNames: []string{"q1.pdf"}},
	})

	require.Equal(t, http.StatusOK, app.selectFiles(t,
		part{name: "q1.pdf", contentType: "application/pdf", data: "%PDF-1"},
	).Code)

	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	rec := app.serve(app.handlers.Processing.HandleProcess, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	app.waitForStatus(t, models.ProcessingStatusSucceeded)
	require.Eventually(t, func() bool {
		return app.history.View().Status == models.HistoryStatusLoaded
	}, 5*time.Second, 10*time.Millisecond, "history refreshes after success")

	req = httptest.NewRequest(http.MethodGet, "/download", nil)
	rec = app.serve(app.handlers.Processing.HandleDownload, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=pdf_report.xlsx`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, testutil.XLSXContentType, rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())

	req = httptest.NewRequest(http.MethodGet, "/preview?rows=5", nil)
	rec = app.serve(app.handlers.Processing.HandlePreview, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"q1.pdf"`)
	assert.Contains(t, rec.Body.String(), `"filename":"pdf_report.xlsx"`)
}

func TestHandleProcess_Busy(t *testing.T) {
	app := newTestApp(t)
	release := app.backend.HoldProcessing()
	defer release()

	app.selectFiles(t, part{name: "q1.pdf", contentType: "application/pdf", data: "%PDF-1"})

	rec := app.serve(app.handlers.Processing.HandleProcess, httptest.NewRequest(http.MethodPost, "/process", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = app.serve(app.handlers.Processing.HandleProcess, httptest.NewRequest(http.MethodPost, "/process", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.selectFiles(t, part{name: "q2.pdf", contentType: "application/pdf", data: "%PDF-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	release()
	app.waitForStatus(t, models.ProcessingStatusSucceeded)
	assert.Len(t, app.backend.ProcessCalls(), 1)
}

func TestHandleProcess_BackendFailure(t *testing.T) {
	app := newTestApp(t)
	app.backend.SetProcessResponse(http.StatusInternalServerError, nil)

	app.selectFiles(t, part{name: "q1.pdf", contentType: "application/pdf", data: "%PDF-1"})
	rec := app.serve(app.handlers.Processing.HandleProcess, httptest.NewRequest(http.MethodPost, "/process", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	app.waitForStatus(t, models.ProcessingStatusFailed)
	assert.Equal(t, processing.FailureMessage, app.processing.Snapshot().Error)

	rec = app.serve(app.handlers.Processing.HandleDownload, httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePreview(t *testing.T) {
	app := newTestApp(t)

	t.Run("without result", func(t *testing.T) {
		rec := app.serve(app.handlers.Processing.HandlePreview, httptest.NewRequest(http.MethodGet, "/preview", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad rows", func(t *testing.T) {
		rec := app.serve(app.handlers.Processing.HandlePreview, httptest.NewRequest(http.MethodGet, "/preview?rows=-1", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("result is not a workbook", func(t *testing.T) {
		app.backend.SetProcessResponse(http.StatusOK, []byte("XLSX1"))
		require.NoError(t, app.processing.Select([]models.SelectedFile{{Name: "q1.pdf", Content: []byte("x")}}))
		require.NoError(t, app.processing.Process(context.Background()))

		rec := app.serve(app.handlers.Processing.HandlePreview, httptest.NewRequest(http.MethodGet, "/preview", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestHandleGetHistory(t *testing.T) {
	app := newTestApp(t)

	rec := app.serve(app.handlers.History.HandleGetHistory, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"loading"`)
	assert.Equal(t, 0, app.backend.HistoryCalls(), "plain GET does not fetch")

	app.backend.SetHistory([]models.HistoryEntry{{ID: "abc", InputFileNames: []string{"a.pdf"}}})
	rec = app.serve(app.handlers.History.HandleGetHistory, httptest.NewRequest(http.MethodGet, "/history?refresh=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.HistoryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, models.HistoryStatusLoaded, view.Status)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "—", view.Items[0].Timestamp)
	assert.Equal(t, app.backend.URL()+"/reports/history/abc/download", view.Items[0].DownloadURL)
}

func TestHandleHealth(t *testing.T) {
	app := newTestApp(t)

	rec := app.serve(app.handlers.Health.HandleHealth, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)

	down := NewHealthHandler("test", reports.NewClient("http://127.0.0.1:1"))
	rec = app.serve(down.HandleHealth, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"unreachable"`)
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name       string
		err        error
		verbose    bool
		wantStatus int
		wantCode   string
		wantDetail bool
	}{
		{name: "api error", err: NewConflictError("busy"), wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "echo error", err: echo.NewHTTPError(http.StatusNotFound, "nope"), wantStatus: http.StatusNotFound, wantCode: "HTTP_ERROR"},
		{name: "unknown quiet", err: assert.AnError, wantStatus: http.StatusInternalServerError, wantCode: "UNKNOWN_ERROR"},
		{name: "unknown verbose", err: assert.AnError, verbose: true, wantStatus: http.StatusInternalServerError, wantCode: "UNKNOWN_ERROR", wantDetail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			NewErrorHandler(tt.verbose)(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeAPIError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantDetail, apiErr.Details != "")
		})
	}
}
