// Package ui provides terminal output helpers for the extractor CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// Init turns color off when disableColor is set. Otherwise fatih/color
// decides from the terminal and NO_COLOR.
func Init(disableColor bool) {
	if disableColor {
		color.NoColor = true
	}
}

// SetOutput redirects normal and error output. Used by tests.
func SetOutput(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = stdout
	errOut = stderr
}

func writers() (io.Writer, io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	return out, errOut
}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner on the error stream with the given message.
func NewSpinner(message string) *Spinner {
	_, w := writers()
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.spinner.Start()
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// Success prints a success message.
func Success(format string, args ...interface{}) {
	w, _ := writers()
	color.New(color.FgGreen).Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error prints an error message to the error stream.
func Error(format string, args ...interface{}) {
	_, w := writers()
	color.New(color.FgRed).Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a warning.
func Warning(format string, args ...interface{}) {
	w, _ := writers()
	color.New(color.FgYellow).Fprintf(w, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info prints an informational message.
func Info(format string, args ...interface{}) {
	w, _ := writers()
	color.New(color.FgCyan).Fprintf(w, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Message prints plain text.
func Message(format string, args ...interface{}) {
	w, _ := writers()
	fmt.Fprintf(w, format+"\n", args...)
}

// Section prints a section header.
func Section(title string) {
	w, _ := writers()
	color.New(color.Bold).Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", len(title)))
}

// Table renders rows under headers.
func Table(headers []string, rows [][]string) {
	w, _ := writers()
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)
	table.AppendBulk(rows)
	table.Render()
}

// Writer returns the normal output stream.
func Writer() io.Writer {
	w, _ := writers()
	return w
}

// Bytes formats a size for humans.
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
