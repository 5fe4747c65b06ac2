// Package sqlitedoc persists the work graph document in a single-row
// sqlite table. The JSON wire format is identical to the file store; sqlite
// contributes durable writes and a database-enforced revision swap.
package sqlitedoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/kvartal/internal/domain"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Store is a DocumentStore backed by sqlite.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &Store{db: db, clock: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenInMemory opens a throwaway in-memory database.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	store := &Store{db: db, clock: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS document (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			revision INTEGER NOT NULL,
			body TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// Init persists a fresh document, failing if one already exists.
func (s *Store) Init(ctx context.Context, doc *domain.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", domain.ErrPersistence, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO document (id, revision, body, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		doc.Revision, string(body), s.clock().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: insert document: %v", domain.ErrPersistence, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: insert document: %v", domain.ErrPersistence, err)
	}
	if affected == 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

// Load reads and validates the current document.
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	var (
		revision int64
		body     string
	)
	err := s.db.QueryRowContext(ctx, `SELECT revision, body FROM document WHERE id = 1`).Scan(&revision, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select document: %v", domain.ErrPersistence, err)
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", domain.ErrPersistence, err)
	}
	doc.Revision = revision
	doc.Normalize(s.clock())
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save swaps the document row if the revision still matches, bumping it.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	next := doc.Revision + 1
	doc.Revision = next
	body, err := json.Marshal(doc)
	if err != nil {
		doc.Revision = next - 1
		return fmt.Errorf("%w: encode document: %v", domain.ErrPersistence, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE document SET revision = ?, body = ?, updated_at = ?
		 WHERE id = 1 AND revision = ?`,
		next, string(body), s.clock().UTC().Format(time.RFC3339), next-1)
	if err != nil {
		doc.Revision = next - 1
		return fmt.Errorf("%w: update document: %v", domain.ErrPersistence, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		doc.Revision = next - 1
		return fmt.Errorf("%w: update document: %v", domain.ErrPersistence, err)
	}
	if affected == 0 {
		doc.Revision = next - 1
		var current int64
		err := s.db.QueryRowContext(ctx, `SELECT revision FROM document WHERE id = 1`).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotInitialized
		}
		if err != nil {
			return fmt.Errorf("%w: select revision: %v", domain.ErrPersistence, err)
		}
		return fmt.Errorf("%w: document is at revision %d, write expected %d",
			domain.ErrRevisionConflict, current, next-1)
	}
	return nil
}
