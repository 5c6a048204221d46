package trade

import (
	"docstitch/internal/core/id"
	"docstitch/internal/core/types"
)

// DocumentLine belongs to exactly one document; lines are destroyed with it.
//
// Served is monotonically non-decreasing over the line's lifetime and must
// never exceed Quantity after a breakdown round. A violation is a programming
// error, not operator input to be tolerated.
type DocumentLine struct {
	ID           id.ID `db:"id" json:"id"`
	DocumentCode string `db:"document_code" json:"documentCode"`

	// Position orders lines inside the document.
	Position int `db:"position" json:"position"`

	// ProductRef is nil for free-text and annotation lines.
	ProductRef  *string `db:"product_ref" json:"productRef,omitempty"`
	Description string  `db:"description" json:"description"`

	// Quantity is the requested amount (cantidad); Served is the part already
	// carried into a downstream document (servido).
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Served   types.Quantity `db:"served" json:"served"`

	UnitPrice types.Money   `db:"unit_price" json:"unitPrice"`
	Discount1 types.Percent `db:"discount1" json:"discount1"`
	Discount2 types.Percent `db:"discount2" json:"discount2"`

	TaxCode      string `db:"tax_code" json:"taxCode"`
	TaxException string `db:"tax_exception" json:"taxException,omitempty"`

	// Display flags for rendered output.
	ShowQuantity bool `db:"show_quantity" json:"showQuantity"`
	ShowPrice    bool `db:"show_price" json:"showPrice"`
	PageBreak    bool `db:"page_break" json:"pageBreak"`

	// Supplied marks goods already handed over outside the workflow.
	Supplied bool `db:"supplied" json:"supplied"`
}

// NewDocumentLine returns a blank line bound to the given document code.
func NewDocumentLine(documentCode string) DocumentLine {
	return DocumentLine{
		ID:           id.New(),
		DocumentCode: documentCode,
		UnitPrice:    types.Zero(),
		Discount1:    types.Zero(),
		Discount2:    types.Zero(),
		ShowQuantity: true,
		ShowPrice:    true,
	}
}

// IsAnnotation reports whether the line carries no business quantity.
// Blank separators and info lines synthesized during stitching qualify.
func (l *DocumentLine) IsAnnotation() bool {
	return l.Quantity.IsZero() && l.ProductRef == nil
}

// Pending returns the quantity not yet carried downstream.
func (l *DocumentLine) Pending() types.Quantity {
	return l.Quantity - l.Served
}
