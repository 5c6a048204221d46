package stitching

import (
	"context"
	"fmt"
	"time"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/types"
	"docstitch/internal/domain/trade"
)

// In-memory fakes shared by the package tests.

type fakeDocs struct {
	byCode map[string]*trade.Document

	// failSaveCode makes Save fail for one code, to exercise rollback paths.
	failSaveCode string

	saved   []string
	created []*trade.Document
}

func newFakeDocs(docs ...*trade.Document) *fakeDocs {
	f := &fakeDocs{byCode: make(map[string]*trade.Document)}
	for _, doc := range docs {
		f.byCode[doc.Code] = doc
	}
	return f
}

func (f *fakeDocs) LoadByCode(_ context.Context, kind trade.Kind, code string) (*trade.Document, error) {
	doc, ok := f.byCode[code]
	if !ok || doc.Kind != kind {
		return nil, apperror.NewNotFound(kind.Table(), code)
	}
	return doc, nil
}

func (f *fakeDocs) FindCompatible(_ context.Context, sample *trade.Document) ([]*trade.Document, error) {
	var out []*trade.Document
	for _, doc := range f.byCode {
		if doc.Kind != sample.Kind || !doc.Editable || !doc.GenerationEnabled {
			continue
		}
		if doc.WarehouseID == sample.WarehouseID &&
			doc.CurrencyCode == sample.CurrencyCode &&
			doc.CompanyID == sample.CompanyID &&
			doc.Series == sample.Series &&
			doc.SubjectCode == sample.SubjectCode &&
			doc.Discount1.Equal(sample.Discount1) &&
			doc.Discount2.Equal(sample.Discount2) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeDocs) Create(_ context.Context, doc *trade.Document) error {
	f.byCode[doc.Code] = doc
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocs) Save(_ context.Context, doc *trade.Document) error {
	if doc.Code == f.failSaveCode {
		return fmt.Errorf("save rejected for %s", doc.Code)
	}
	f.byCode[doc.Code] = doc
	f.saved = append(f.saved, doc.Code)
	return nil
}

type fakeLines struct {
	byDoc map[string][]trade.DocumentLine

	failSaveDoc string
}

func newFakeLines() *fakeLines {
	return &fakeLines{byDoc: make(map[string][]trade.DocumentLine)}
}

func (f *fakeLines) GetLines(_ context.Context, _ trade.Kind, documentCode string) ([]trade.DocumentLine, error) {
	lines := f.byDoc[documentCode]
	out := make([]trade.DocumentLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (f *fakeLines) SaveLine(_ context.Context, _ trade.Kind, line *trade.DocumentLine) error {
	if line.DocumentCode == f.failSaveDoc {
		return fmt.Errorf("line save rejected for %s", line.DocumentCode)
	}
	lines := f.byDoc[line.DocumentCode]
	for i := range lines {
		if lines[i].ID == line.ID {
			lines[i] = *line
			return nil
		}
	}
	return fmt.Errorf("line %s not found", line.ID)
}

func (f *fakeLines) ReplaceLines(_ context.Context, _ trade.Kind, documentCode string, lines []trade.DocumentLine) error {
	stored := make([]trade.DocumentLine, len(lines))
	copy(stored, lines)
	f.byDoc[documentCode] = stored
	return nil
}

type fakeStatuses struct {
	byID map[int]trade.WorkflowStatus
}

func newFakeStatuses(statuses ...trade.WorkflowStatus) *fakeStatuses {
	f := &fakeStatuses{byID: make(map[int]trade.WorkflowStatus)}
	for _, s := range statuses {
		f.byID[s.ID] = s
	}
	return f
}

func (f *fakeStatuses) ActiveGeneratingStatuses(_ context.Context, kind trade.Kind) ([]trade.WorkflowStatus, error) {
	var out []trade.WorkflowStatus
	for _, s := range f.byID {
		if s.Kind == kind && s.Active && s.Generates {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStatuses) Get(_ context.Context, statusID int) (*trade.WorkflowStatus, error) {
	s, ok := f.byID[statusID]
	if !ok {
		return nil, apperror.NewNotFound("workflow_statuses", statusID)
	}
	return &s, nil
}

func (f *fakeStatuses) TargetKindFor(ctx context.Context, statusID int) (*trade.Kind, error) {
	s, err := f.Get(ctx, statusID)
	if err != nil {
		return nil, err
	}
	if !s.CanGenerate() {
		return nil, nil
	}
	return s.TargetKind, nil
}

func (f *fakeStatuses) DefaultStatusFor(_ context.Context, kind trade.Kind) (*trade.WorkflowStatus, error) {
	for _, s := range f.byID {
		if s.Kind == kind && s.Default {
			return &s, nil
		}
	}
	return nil, apperror.NewNotFound("workflow_statuses", string(kind))
}

// fakeTx runs the function directly; commit/rollback semantics are covered by
// the real transaction manager's own behavior.
type fakeTx struct {
	calls int
}

func (f *fakeTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// fakeGenerator captures what the orchestrator asks it to create.
type fakeGenerator struct {
	prototype *trade.Document
	target    trade.Kind
	lines     []trade.DocumentLine
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, prototype *trade.Document, target trade.Kind,
	lines []trade.DocumentLine, _ Ledger, _ GenerateProps) ([]*trade.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prototype = prototype
	f.target = target
	f.lines = lines

	doc := prototype.Clone()
	doc.Kind = target
	doc.Code = "GEN-1"
	return []*trade.Document{doc}, nil
}

type auditCall struct {
	action  string
	kind    trade.Kind
	sources []string
	created []string
}

type fakeAudit struct {
	calls []auditCall
}

func (f *fakeAudit) RecordStitch(_ context.Context, action string, kind trade.Kind, sources, created []string) error {
	f.calls = append(f.calls, auditCall{action: action, kind: kind, sources: sources, created: created})
	return nil
}

// Builders.

func qty(units int64) types.Quantity {
	return types.NewQuantityFromInt64Scaled(units * types.QuantityScale)
}

func testDoc(kind trade.Kind, code string, issued time.Time) *trade.Document {
	doc := trade.NewDocument(kind)
	doc.Code = code
	doc.StatusID = 1
	doc.WarehouseID = "MAIN"
	doc.CurrencyCode = "EUR"
	doc.CompanyID = 1
	doc.SubjectCode = "CUST001"
	doc.Series = "A"
	doc.IssuedAt = issued
	return doc
}

func testLine(doc *trade.Document, position int, quantity types.Quantity) trade.DocumentLine {
	line := doc.NewLine()
	line.Position = position
	line.Description = fmt.Sprintf("item %d", position)
	line.Quantity = quantity
	line.UnitPrice = types.MustMoney("10")
	line.TaxCode = "IVA21"
	return line
}
