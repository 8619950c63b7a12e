package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/earnings-extractor/client/cmd/extractor/ui"
	"github.com/earnings-extractor/client/internal/config"
	"github.com/earnings-extractor/client/internal/history"
	"github.com/earnings-extractor/client/internal/models"
	"github.com/earnings-extractor/client/internal/processing"
	"github.com/earnings-extractor/client/internal/testutil"
)

// run executes the root command against backend and captures its output.
func run(t *testing.T, backend *testutil.FakeBackend, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	envFile, apiBaseURL, logLevel, verbose, noColor = "", "", "", false, false
	processOutDir, processPreviewRows = "", 10
	historyOutput = "table"

	var out, errOut bytes.Buffer
	ui.SetOutput(&out, &errOut)
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })

	base := []string{"--no-color", "--log-level", "error", "--api-base-url", backend.URL()}
	rootCmd.SetArgs(append(base, args...))
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writePDFs(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("%PDF-"+n), 0644))
		paths = append(paths, p)
	}
	return paths
}

func TestProcessCommand(t *testing.T) {
	backend := testutil.NewFakeBackend()
	defer backend.Close()
	backend.SetHistory([]models.HistoryEntry{{ID: "h1", InputFileNames: []string{"q1.pdf", "q2.pdf"}}})

	out := t.TempDir()
	paths := writePDFs(t, "q1.pdf", "q2.pdf")

	stdout, _, err := run(t, backend, append([]string{"process", "--out", out}, paths...)...)
	require.NoError(t, err)

	saved := filepath.Join(out, "pdf_report.xlsx")
	assert.FileExists(t, saved)
	assert.Contains(t, stdout, "Saved "+saved)
	assert.Contains(t, stdout, "1 extraction(s) in history")
	assert.Contains(t, stdout, "q2.pdf", "preview lists the workbook rows")

	calls := backend.ProcessCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Files, 2)
	assert.Equal(t, "q1.pdf", calls[0].Files[0].Name)
	assert.Equal(t, "files", calls[0].Files[0].Field)
}

func TestProcessCommand_NoFiles(t *testing.T) {
	backend := testutil.NewFakeBackend()
	defer backend.Close()

	_, stderr, err := run(t, backend, "process")

	assert.ErrorIs(t, err, processing.ErrNoFiles)
	assert.Contains(t, stderr, processing.ValidationMessage)
	assert.Empty(t, backend.ProcessCalls())
}

func TestProcessCommand_BackendFailure(t *testing.T) {
	backend := testutil.NewFakeBackend()
	defer backend.Close()
	backend.SetProcessResponse(http.StatusInternalServerError, nil)

	out := t.TempDir()
	_, stderr, err := run(t, backend, append([]string{"process", "--out", out}, writePDFs(t, "q1.pdf")...)...)

	assert.ErrorIs(t, err, processing.ErrProcessingFailed)
	assert.Contains(t, stderr, processing.FailureMessage)
	assert.NoFileExists(t, filepath.Join(out, "pdf_report.xlsx"))
}

func TestProcessCommand_MissingFile(t *testing.T) {
	backend := testutil.NewFakeBackend()
	defer backend.Close()

	_, _, err := run(t, backend, "process", filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
	assert.Empty(t, backend.ProcessCalls())
}

func TestHistoryCommand(t *testing.T) {
	backend := testutil.NewFakeBackend()
	defer backend.Close()
	backend.SetHistory([]models.HistoryEntry{
		{ID: "abc", CreatedAt: "2024-03-02T14:30:00Z", InputFileNames: []string{"q1.pdf"}},
	})

	t.Run("table", func(t *testing.T) {
		stdout, _, err := run(t, backend, "history")
		require.NoError(t, err)
		assert.Contains(t, stdout, "q1.pdf")
		assert.Contains(t, stdout, backend.URL()+"/reports/history/abc/download")
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := run(t, backend, "history", "--output", "json")
		require.NoError(t, err)

		var view models.HistoryView
		require.NoError(t, json.Unmarshal([]byte(stdout), &view))
		assert.Equal(t, models.HistoryStatusLoaded, view.Status)
		require.Len(t, view.Items, 1)
		assert.Equal(t, "abc", view.Items[0].ID)
	})

	t.Run("yaml", func(t *testing.T) {
		stdout, _, err := run(t, backend, "history", "-o", "yaml")
		require.NoError(t, err)

		var view models.HistoryView
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &view))
		assert.Equal(t, models.HistoryStatusLoaded, view.Status)
		assert.Equal(t, []string{"q1.pdf"}, view.Items[0].InputFileNames)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := run(t, backend, "history", "-o", "xml")
		assert.Error(t, err)
	})
}

func TestHistoryCommand_Unavailable(t *testing.T) {
	backend := testutil.NewFakeBackend()
	defer backend.Close()
	backend.SetHistoryResponse(http.StatusInternalServerError, "")

	stdout, _, err := run(t, backend, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, history.EmptyMessage)
}

func TestNewServer(t *testing.T) {
	backend := testutil.NewFakeBackend()
	defer backend.Close()

	c := config.DefaultConfig()
	c.API.BaseURL = backend.URL()
	c.Advanced.EnableRequestLogging = false

	logger = zerolog.Nop()
	a := newApp(c, logger, "http://localhost")
	defer a.Close()

	e, handlers, err := newServer(c, a)
	require.NoError(t, err)
	defer handlers.Close()

	for _, path := range []string{"/", "/health", "/state", "/history"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}
