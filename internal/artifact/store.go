// Package artifact holds in-memory binary artifacts behind revocable
// temporary references, the way a browser holds blobs behind object URLs.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// URLScheme prefixes every reference URL.
const URLScheme = "blob:"

// ErrNotFound is returned for unknown or revoked references.
var ErrNotFound = errors.New("artifact not found")

// Ref is a live reference to a stored artifact.
type Ref struct {
	URL       string
	Filename  string
	Size      int64
	CreatedAt time.Time
}

// Store defines the interface for artifact storage.
type Store interface {
	Create(filename string, r io.Reader) (*Ref, error)
	Open(url string) (io.ReadSeeker, *Ref, error)
	Revoke(url string) error
	Live() int
}

type entry struct {
	ref  *Ref
	data []byte
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	origin  string
	entries map[string]*entry
}

// NewMemoryStore creates a new MemoryStore. Origin is embedded in reference
// URLs, e.g. "blob:http://127.0.0.1:3000/<uuid>".
func NewMemoryStore(origin string) *MemoryStore {
	return &MemoryStore{
		origin:  strings.TrimRight(origin, "/"),
		entries: make(map[string]*entry),
	}
}

// Create reads r fully and registers the bytes under a new reference.
func (s *MemoryStore) Create(filename string, r io.Reader) (*Ref, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	url := URLScheme + s.origin + "/" + uuid.New().String()
	ref := &Ref{
		URL:       url,
		Filename:  filename,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[url] = &entry{ref: ref, data: data}

	return ref, nil
}

// Open returns a reader over the artifact bytes and its metadata.
func (s *MemoryStore) Open(url string) (io.ReadSeeker, *Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[url]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}

	return bytes.NewReader(e.data), e.ref, nil
}

// Revoke releases the artifact. Revoking an unknown reference returns
// ErrNotFound and changes nothing.
func (s *MemoryStore) Revoke(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[url]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}

	delete(s.entries, url)
	return nil
}

// Live returns the number of unrevoked artifacts.
func (s *MemoryStore) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
