package app

import (
	"context"

	"github.com/hylla/kvartal/internal/domain"
)

// DocumentStore abstracts persistence of the work graph document.
//
// Save performs a compare-and-swap on the document revision: the write only
// lands if the stored revision still equals the revision the document was
// loaded with, and the persisted copy carries revision+1. A lost race
// surfaces as domain.ErrRevisionConflict.
type DocumentStore interface {
	// Init persists a fresh document. It fails with
	// domain.ErrAlreadyInitialized when a document already exists.
	Init(ctx context.Context, doc *domain.Document) error

	// Load reads the current document. It fails with
	// domain.ErrNotInitialized when no document exists yet.
	Load(ctx context.Context) (*domain.Document, error)

	// Save writes the document back under the revision CAS described above.
	Save(ctx context.Context, doc *domain.Document) error
}
