package reports

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when SubmitForProcessing is called without files.
var ErrEmptyInput = errors.New("no files provided")

// RequestFailedError reports a non-success response from the backend.
type RequestFailedError struct {
	Op         string
	StatusCode int
}

// Error implements the error interface
func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("%s: backend responded with status %d", e.Op, e.StatusCode)
}

// IsRequestFailed reports whether err carries a non-success backend status.
func IsRequestFailed(err error) bool {
	var rf *RequestFailedError
	return errors.As(err, &rf)
}
