package processing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink receives a downloaded result.
type Sink interface {
	Save(filename string, r io.Reader) error
}

// DirSink saves downloads into a directory, replacing existing files.
type DirSink struct {
	Dir string
}

// Path returns where filename is written.
func (d DirSink) Path(filename string) string {
	return filepath.Join(d.Dir, filepath.Base(filename))
}

// Save writes r to Dir/filename.
func (d DirSink) Save(filename string, r io.Reader) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	path := d.Path(filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing file: %w", err)
	}
	return f.Close()
}
