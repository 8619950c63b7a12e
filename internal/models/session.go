// Package models contains domain types for the earnings extractor client.
package models

import "time"

// ProcessingStatus represents the state of the processing workflow.
type ProcessingStatus string

const (
	ProcessingStatusIdle          ProcessingStatus = "idle"
	ProcessingStatusFilesSelected ProcessingStatus = "files_selected"
	ProcessingStatusProcessing    ProcessingStatus = "processing"
	ProcessingStatusSucceeded     ProcessingStatus = "succeeded"
	ProcessingStatusFailed        ProcessingStatus = "failed"
)

// ResultFilename is the suggested filename for every downloaded spreadsheet.
const ResultFilename = "pdf_report.xlsx"

// ProcessingResult describes the live artifact reference held after a
// successful extraction.
type ProcessingResult struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProcessingSnapshot is a point-in-time copy of the processing state.
type ProcessingSnapshot struct {
	Status ProcessingStatus  `json:"status"`
	Files  []string          `json:"files"`
	Result *ProcessingResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// CanDownload reports whether a result is available.
func (s ProcessingSnapshot) CanDownload() bool {
	return s.Status == ProcessingStatusSucceeded && s.Result != nil
}

