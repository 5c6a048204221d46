package trade

import (
	"context"
	"time"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/types"
)

// SubjectRef is the resolved subject of a document: the customer or supplier
// code plus its side discriminator. Compatibility checks compare this pair,
// never the raw code alone, because customer and supplier documents store the
// code in different columns.
type SubjectRef struct {
	Code string
	Side Side
}

// Equal reports whether two subject references point at the same party.
func (s SubjectRef) Equal(other SubjectRef) bool {
	return s.Code == other.Code && s.Side == other.Side
}

// Document is a commercial document in one of the eight kind variants.
type Document struct {
	// Code is the primary business key, unique within the kind.
	Code string `db:"code" json:"code"`

	// Kind determines tables, subject side and workflow behavior.
	Kind Kind `db:"-" json:"kind"`

	// StatusID references a WorkflowStatus scoped to this kind.
	StatusID int `db:"status_id" json:"statusId"`

	WarehouseID  string `db:"warehouse_id" json:"warehouseId"`
	CurrencyCode string `db:"currency_code" json:"currencyCode"`
	CompanyID    int64  `db:"company_id" json:"companyId"`

	// Two independent document-level discount percentages.
	Discount1 types.Percent `db:"discount1" json:"discount1"`
	Discount2 types.Percent `db:"discount2" json:"discount2"`

	// SubjectCode is the customer or supplier code; the side comes from Kind.
	SubjectCode string `db:"subject_code" json:"subjectCode"`

	Series string `db:"series" json:"series"`

	// IssuedAt combines the business date and time; candidate sets are
	// ordered ascending by it before generation.
	IssuedAt time.Time `db:"issued_at" json:"issuedAt"`

	// Editable documents may still join stitching operations.
	Editable bool `db:"editable" json:"editable"`

	// GenerationEnabled is cleared once the document is fully served or closed.
	GenerationEnabled bool `db:"generation_enabled" json:"generationEnabled"`

	// ExternalRef is the counterparty's own number (numero2 / numproveedor).
	ExternalRef string `db:"external_ref" json:"externalRef,omitempty"`

	// Totals, recomputed by the totals calculator.
	Net      types.Money `db:"net" json:"net"`
	TotalVAT types.Money `db:"total_vat" json:"totalVat"`
	Total    types.Money `db:"total" json:"total"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewDocument creates a document of the given kind with fresh timestamps.
func NewDocument(kind Kind) *Document {
	now := time.Now().UTC()
	return &Document{
		Kind:              kind,
		Editable:          true,
		GenerationEnabled: true,
		IssuedAt:          now,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SubjectRef returns the resolved subject of this document.
func (d *Document) SubjectRef() SubjectRef {
	return SubjectRef{Code: d.SubjectCode, Side: d.Kind.Side()}
}

// Clone returns a copy of the document suitable as a generation prototype.
// The copy drops identity and totals; the generator assigns those anew.
func (d *Document) Clone() *Document {
	clone := *d
	clone.Code = ""
	clone.Version = 1
	clone.Net = types.Zero()
	clone.TotalVAT = types.Zero()
	clone.Total = types.Zero()
	return &clone
}

// DisableGeneration clears the generation-eligibility flag.
func (d *Document) DisableGeneration() {
	d.GenerationEnabled = false
}

// Touch updates the UpdatedAt timestamp and increments version.
func (d *Document) Touch() {
	d.UpdatedAt = time.Now().UTC()
	d.Version++
}

// NewLine returns a blank line owned by this document. Quantity and served
// start at zero; display flags default to visible.
func (d *Document) NewLine() DocumentLine {
	return NewDocumentLine(d.Code)
}

// Validate implements basic document invariants.
func (d *Document) Validate(ctx context.Context) error {
	if !d.Kind.IsValid() {
		return apperror.NewValidation("unknown document kind").WithDetail("kind", string(d.Kind))
	}

	if d.SubjectCode == "" {
		return apperror.NewValidation("subject is required").WithDetail("field", "subjectCode")
	}

	if d.WarehouseID == "" {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}

	if d.IssuedAt.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "issuedAt")
	}

	return nil
}
