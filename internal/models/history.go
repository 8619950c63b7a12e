package models

// HistoryEntry is one past extraction as reported by the backend.
// CreatedAt is kept as the raw backend string; it may be empty.
type HistoryEntry struct {
	ID             string   `json:"id" yaml:"id"`
	CreatedAt      string   `json:"created_at" yaml:"created_at"`
	InputFileNames []string `json:"input_file_names" yaml:"input_file_names"`
}

// HistoryStatus represents the presentation state of the history panel.
// A failed fetch is reported as HistoryStatusEmpty.
type HistoryStatus string

const (
	HistoryStatusLoading HistoryStatus = "loading"
	HistoryStatusLoaded  HistoryStatus = "loaded"
	HistoryStatusEmpty   HistoryStatus = "empty"
)

// HistoryItem is a rendered history entry.
type HistoryItem struct {
	ID             string   `json:"id" yaml:"id"`
	Timestamp      string   `json:"timestamp" yaml:"timestamp"`
	DownloadURL    string   `json:"downloadUrl" yaml:"download_url"`
	InputFileNames []string `json:"inputFileNames" yaml:"input_file_names"`
}

// HistoryView is a point-in-time copy of the history panel.
type HistoryView struct {
	Status  HistoryStatus `json:"status" yaml:"status"`
	Items   []HistoryItem `json:"items" yaml:"items"`
	Message string        `json:"message,omitempty" yaml:"message,omitempty"`
}
