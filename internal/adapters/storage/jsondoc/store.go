// Package jsondoc persists the work graph as one pretty-printed JSON file.
//
// Writers coordinate through a sidecar lock file carrying an owner token.
// Writes go to a temp file in the same directory and land with a rename, so
// readers never observe a half-written document.
package jsondoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hylla/kvartal/internal/domain"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755

	// staleAfter is how old a lock may get before another writer takes it
	// over. Holders are short-lived; anything older is a crashed process.
	staleAfter = 30 * time.Second

	// acquireTimeout bounds how long Save and Init wait for the lock.
	acquireTimeout = 5 * time.Second

	retryInterval = 50 * time.Millisecond
)

// Store is a DocumentStore backed by a single JSON file.
type Store struct {
	path  string
	owner string
	clock func() time.Time
}

// Option customizes Store construction.
type Option func(*Store)

// WithClock overrides the store clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New builds a Store for the document at path.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, owner: uuid.NewString(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Init persists a fresh document, failing if one already exists.
func (s *Store) Init(ctx context.Context, doc *domain.Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("%w: create document directory: %v", domain.ErrPersistence, err)
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyInitialized, s.path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: stat document: %v", domain.ErrPersistence, err)
	}
	return s.write(doc)
}

// Load reads and validates the current document.
func (s *Store) Load(_ context.Context) (*domain.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotInitialized, s.path)
		}
		return nil, fmt.Errorf("%w: read document: %v", domain.ErrPersistence, err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", domain.ErrPersistence, err)
	}
	doc.Normalize(s.clock())
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save writes the document back if its revision still matches the stored
// one, then bumps the revision.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if current.Revision != doc.Revision {
		return fmt.Errorf("%w: document is at revision %d, write expected %d",
			domain.ErrRevisionConflict, current.Revision, doc.Revision)
	}
	doc.Revision++
	if err := s.write(doc); err != nil {
		doc.Revision--
		return err
	}
	return nil
}

// write lands the document atomically via a temp file and rename.
func (s *Store) write(doc *domain.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", domain.ErrPersistence, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".kvartal-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", domain.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", domain.ErrPersistence, err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: chmod temp file: %v", domain.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename into place: %v", domain.ErrPersistence, err)
	}
	return nil
}
