package stitching

import (
	"context"

	"docstitch/internal/core/apperror"
	"docstitch/internal/domain/trade"
)

// BreakdownEngine partitions a source document's lines into carried vs
// not-carried for one stitch round and settles the served-quantity accounting.
type BreakdownEngine struct {
	docs  trade.DocumentRepository
	lines trade.LineRepository
}

// NewBreakdownEngine creates a breakdown engine over the given repositories.
func NewBreakdownEngine(docs trade.DocumentRepository, lines trade.LineRepository) *BreakdownEngine {
	return &BreakdownEngine{docs: docs, lines: lines}
}

// BreakdownResult is the outcome of one document's breakdown pass.
type BreakdownResult struct {
	// Carried holds the lines to copy into the new document, in source order.
	Carried []trade.DocumentLine

	// FullyServed reports whether every line of the document is now served.
	FullyServed bool
}

// BreakDown walks the document's lines against the operator's ledger.
//
// A line with a zero request and a non-zero quantity stays behind this round;
// it counts toward full service only through its already-served amount. Every
// other line (positive request, or a zero-quantity annotation line) is carried
// forward; the document stays partially served unless requested plus served
// covers the original quantity. A request larger than the line's pending
// amount fails validation before any write, keeping served within quantity.
//
// When the whole document comes out fully served, its generation flag is
// cleared, its status advanced to targetStatusID, and the document saved.
// Lines are then re-read, since the status save may have triggered a
// concurrent recalculation, and each one's served amount is incremented by
// this round's request and saved. Any save failure aborts the whole stitching operation:
// a partial write would corrupt the served-quantity accounting.
func (e *BreakdownEngine) BreakDown(
	ctx context.Context,
	doc *trade.Document,
	docLines []trade.DocumentLine,
	ledger Ledger,
	targetStatusID int,
	decorate func(ctx context.Context, line *trade.DocumentLine) error,
) (BreakdownResult, error) {
	result := BreakdownResult{FullyServed: true}

	for _, line := range docLines {
		quantity := ledger.Requested(line.ID)
		ledger.Set(line.ID, quantity)

		// An overshoot would settle Served past Quantity, which no later
		// round can repair.
		if quantity.IsPositive() && quantity > line.Pending() {
			return BreakdownResult{}, apperror.NewValidation("requested quantity exceeds pending amount").
				WithDetail("document_code", doc.Code).
				WithDetail("line_id", line.ID.String()).
				WithDetail("requested", quantity.String()).
				WithDetail("pending", line.Pending().String())
		}

		if quantity.IsZero() && !line.Quantity.IsZero() {
			result.FullyServed = result.FullyServed && line.Served >= line.Quantity
			continue
		}
		if quantity+line.Served < line.Quantity {
			result.FullyServed = false
		}

		carried := line
		if decorate != nil {
			if err := decorate(ctx, &carried); err != nil {
				return BreakdownResult{}, err
			}
		}
		result.Carried = append(result.Carried, carried)
	}

	if result.FullyServed {
		doc.DisableGeneration()
		doc.StatusID = targetStatusID
		if err := e.docs.Save(ctx, doc); err != nil {
			return BreakdownResult{}, apperror.NewPersistence(err).
				WithDetail("document_code", doc.Code)
		}
	}

	// Re-read in case the status save recalculated the lines.
	freshLines, err := e.lines.GetLines(ctx, doc.Kind, doc.Code)
	if err != nil {
		return BreakdownResult{}, apperror.NewPersistence(err).
			WithDetail("document_code", doc.Code)
	}
	for i := range freshLines {
		line := &freshLines[i]
		line.Served += ledger.Requested(line.ID)
		if err := e.lines.SaveLine(ctx, doc.Kind, line); err != nil {
			return BreakdownResult{}, apperror.NewPersistence(err).
				WithDetail("document_code", doc.Code).
				WithDetail("line_id", line.ID.String())
		}
	}

	return result, nil
}
