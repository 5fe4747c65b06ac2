package sqlitedoc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/kvartal/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInitAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Init(ctx, domain.NewDocument(testNow)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := store.Init(ctx, domain.NewDocument(testNow)); !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Fatalf("Init() second call error = %v, want ErrAlreadyInitialized", err)
	}

	doc, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Revision != 1 || len(doc.Entities.Quarters) != 4 {
		t.Fatalf("loaded revision = %d, quarters = %d", doc.Revision, len(doc.Entities.Quarters))
	}
}

func TestLoadUninitialized(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Load(context.Background()); !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("Load() error = %v, want ErrNotInitialized", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Init(ctx, domain.NewDocument(testNow)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	doc, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	epic, err := domain.NewEpic(domain.EpicInput{ID: "E-001", Title: "Epic", Quarter: "Q1"}, testNow)
	if err != nil {
		t.Fatalf("NewEpic() error = %v", err)
	}
	if err := doc.AttachEpic(epic); err != nil {
		t.Fatalf("AttachEpic() error = %v", err)
	}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Revision != 2 {
		t.Fatalf("reloaded revision = %d, want 2", reloaded.Revision)
	}
	if _, err := reloaded.Epic("E-001"); err != nil {
		t.Fatalf("Epic() after reload error = %v", err)
	}
}

func TestSaveDetectsLostRace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Init(ctx, domain.NewDocument(testNow)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	first, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, second); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("Save() stale error = %v, want ErrRevisionConflict", err)
	}
}
