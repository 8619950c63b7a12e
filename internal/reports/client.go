// Package reports is the HTTP client for the earnings report backend.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/earnings-extractor/client/internal/models"
)

const (
	processPath = "/reports/process"
	historyPath = "/reports/history"
	healthPath  = "/health"

	// FilesField is the multipart field repeated once per uploaded PDF.
	FilesField = "files"

	pdfContentType = "application/pdf"
)

// Client talks to the report backend. It is stateless: no retries, no
// caching, and no client-side timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitForProcessing uploads files as one multipart request and returns the
// spreadsheet bytes from a successful response.
func (c *Client) SubmitForProcessing(ctx context.Context, files []models.SelectedFile) ([]byte, error) {
	if len(files) == 0 {
		return nil, ErrEmptyInput
	}

	body, contentType, err := encodeFiles(files)
	if err != nil {
		return nil, fmt.Errorf("encoding upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, body)
	if err != nil {
		return nil, fmt.Errorf("building process request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending process request: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &RequestFailedError{Op: "process reports", StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading process response: %w", err)
	}
	return data, nil
}

// FetchHistory returns past extractions, newest first as ordered by the
// backend. A non-success status yields an empty slice and no error, so
// callers cannot tell "no history" from "history unavailable".
func (c *Client) FetchHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+historyPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending history request: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return []models.HistoryEntry{}, nil
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding history response: %w", err)
	}

	// Anything other than an array is treated as no history.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []models.HistoryEntry{}, nil
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decoding history entries: %w", err)
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return entries, nil
}

// DownloadLinkFor returns the download endpoint for a history entry.
func (c *Client) DownloadLinkFor(id string) string {
	return c.baseURL + historyPath + "/" + url.PathEscape(id) + "/download"
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !isSuccess(resp.StatusCode) {
		return &RequestFailedError{Op: "health check", StatusCode: resp.StatusCode}
	}
	return nil
}

// encodeFiles writes every file as its own part under FilesField, in order.
func encodeFiles(files []models.SelectedFile) (io.Reader, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			FilesField, escapeQuotes(f.Name)))
		h.Set("Content-Type", pdfContentType)

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
