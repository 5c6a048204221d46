package trade

import (
	"context"
)

// DocumentRepository loads and saves typed documents keyed by kind and code.
type DocumentRepository interface {
	// LoadByCode fetches one document. Returns apperror.CodeNotFound when the
	// code does not exist; the stitching loader skips those silently.
	LoadByCode(ctx context.Context, kind Kind, code string) (*Document, error)

	// FindCompatible returns editable documents matching the sample's
	// warehouse, currency, series, company, discounts and subject, ordered
	// ascending by issue date and time.
	FindCompatible(ctx context.Context, sample *Document) ([]*Document, error)

	// Create inserts a new document.
	Create(ctx context.Context, doc *Document) error

	// Save updates an existing document with optimistic locking.
	Save(ctx context.Context, doc *Document) error
}

// LineRepository provides CRUD over document lines. Each kind has its own
// line table, so the kind travels with every call.
type LineRepository interface {
	// GetLines returns the document's lines ordered by position.
	GetLines(ctx context.Context, kind Kind, documentCode string) ([]DocumentLine, error)

	// SaveLine updates a single line (served-quantity increments).
	SaveLine(ctx context.Context, kind Kind, line *DocumentLine) error

	// ReplaceLines rewrites the whole line set of a document.
	ReplaceLines(ctx context.Context, kind Kind, documentCode string, lines []DocumentLine) error
}

// StatusCatalog maps workflow status ids to their generation behavior.
type StatusCatalog interface {
	// ActiveGeneratingStatuses lists active statuses of the kind that
	// trigger generation, for operator selection.
	ActiveGeneratingStatuses(ctx context.Context, kind Kind) ([]WorkflowStatus, error)

	// Get fetches one status by id.
	Get(ctx context.Context, statusID int) (*WorkflowStatus, error)

	// TargetKindFor resolves the downstream kind a status generates,
	// or nil when the status only closes.
	TargetKindFor(ctx context.Context, statusID int) (*Kind, error)

	// DefaultStatusFor returns the initial status newly generated documents
	// of the kind start in.
	DefaultStatusFor(ctx context.Context, kind Kind) (*WorkflowStatus, error)
}
