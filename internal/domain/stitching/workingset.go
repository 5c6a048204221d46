package stitching

import (
	"context"
	"sort"

	"docstitch/internal/core/apperror"
	"docstitch/internal/domain/trade"
	"docstitch/pkg/logger"
)

// WorkingSet is the transient collection of documents selected for one
// stitching operation. It admits a candidate only when it is compatible
// with every document already in the set, so compatibility is transitive
// across the whole batch by construction.
type WorkingSet struct {
	docs []*trade.Document
}

// NewWorkingSet returns an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{}
}

// TryAdd admits the candidate if warehouse, currency, company, both discount
// percentages and the resolved subject reference match every document already
// in the set. On the first mismatch the whole candidate is rejected, the set
// is left unchanged, and a warning naming the document is logged.
func (w *WorkingSet) TryAdd(ctx context.Context, candidate *trade.Document) error {
	for _, doc := range w.docs {
		if doc.WarehouseID != candidate.WarehouseID ||
			doc.CurrencyCode != candidate.CurrencyCode ||
			doc.CompanyID != candidate.CompanyID ||
			!doc.Discount1.Equal(candidate.Discount1) ||
			!doc.Discount2.Equal(candidate.Discount2) ||
			!doc.SubjectRef().Equal(candidate.SubjectRef()) {
			logger.Warn(ctx, "incompatible document", "code", candidate.Code)
			return apperror.NewIncompatibleDocument(candidate.Code)
		}
	}

	w.docs = append(w.docs, candidate)
	return nil
}

// Documents returns the admitted documents in their current order.
func (w *WorkingSet) Documents() []*trade.Document {
	return w.docs
}

// First returns the earliest document, nil when the set is empty.
// Call SortByIssueDate first.
func (w *WorkingSet) First() *trade.Document {
	if len(w.docs) == 0 {
		return nil
	}
	return w.docs[0]
}

// Len returns the number of admitted documents.
func (w *WorkingSet) Len() int {
	return len(w.docs)
}

// Codes returns the admitted document codes in order.
func (w *WorkingSet) Codes() []string {
	codes := make([]string, len(w.docs))
	for i, doc := range w.docs {
		codes[i] = doc.Code
	}
	return codes
}

// SortByIssueDate orders the set ascending by combined date and time.
// Documents with equal timestamps keep their relative order.
func (w *WorkingSet) SortByIssueDate() {
	sort.SliceStable(w.docs, func(i, j int) bool {
		return w.docs[i].IssuedAt.Before(w.docs[j].IssuedAt)
	})
}
