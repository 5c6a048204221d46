package stitching

import (
	"context"
	"strings"
	"testing"
	"time"

	"docstitch/internal/core/apperror"
	"docstitch/internal/domain/trade"
)

func deliveryStatus(id int) trade.WorkflowStatus {
	target := trade.CustomerDelivery
	return trade.WorkflowStatus{
		ID: id, Kind: trade.CustomerOrder, Name: "To delivery",
		Active: true, Generates: true, TargetKind: &target,
	}
}

func newTestOrchestrator(docs *fakeDocs, lines *fakeLines, statuses *fakeStatuses,
	gen *fakeGenerator, audit *fakeAudit, exts ...Extension) (*Orchestrator, *fakeTx) {
	txm := &fakeTx{}
	var recorder AuditRecorder
	if audit != nil {
		recorder = audit
	}
	orch := NewOrchestrator(docs, lines, statuses, gen, txm, recorder, exts...)
	orch.breakdown = NewBreakdownEngine(docs, lines)
	return orch, txm
}

func TestLoadCandidates_InvoicesRejected(t *testing.T) {
	orch, _ := newTestOrchestrator(newFakeDocs(), newFakeLines(), newFakeStatuses(), &fakeGenerator{}, nil)

	_, err := orch.LoadCandidates(context.Background(), trade.CustomerInvoice, []string{"FC-1"})
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestLoadCandidates_SkipsMissingCollectsRejected(t *testing.T) {
	now := time.Now()
	good := testDoc(trade.CustomerOrder, "OC-1", now)
	alien := testDoc(trade.CustomerOrder, "OC-2", now)
	alien.WarehouseID = "OTHER"

	docs := newFakeDocs(good, alien)
	orch, _ := newTestOrchestrator(docs, newFakeLines(), newFakeStatuses(deliveryStatus(7)), &fakeGenerator{}, nil)

	view, err := orch.LoadCandidates(context.Background(), trade.CustomerOrder, []string{"OC-1", "OC-MISSING", "OC-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.Set.Len() != 1 {
		t.Errorf("expected 1 admitted document, got %d", view.Set.Len())
	}
	if len(view.Rejected) != 1 || view.Rejected[0] != "OC-2" {
		t.Errorf("expected OC-2 rejected, got %v", view.Rejected)
	}
	if len(view.Statuses) != 1 {
		t.Errorf("expected 1 selectable status, got %d", len(view.Statuses))
	}
}

func TestLoadCandidates_MoreDocumentsExcludesSelected(t *testing.T) {
	now := time.Now()
	selected := testDoc(trade.CustomerOrder, "OC-1", now)
	extra := testDoc(trade.CustomerOrder, "OC-3", now.Add(time.Hour))

	docs := newFakeDocs(selected, extra)
	orch, _ := newTestOrchestrator(docs, newFakeLines(), newFakeStatuses(deliveryStatus(7)), &fakeGenerator{}, nil)

	view, err := orch.LoadCandidates(context.Background(), trade.CustomerOrder, []string{"OC-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(view.MoreDocuments) != 1 || view.MoreDocuments[0].Code != "OC-3" {
		t.Errorf("expected only OC-3 offered, got %v", view.MoreDocuments)
	}
}

func TestRun_GenerateMergesTwoOrders(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	docA := testDoc(trade.CustomerOrder, "OC-A", base)
	docB := testDoc(trade.CustomerOrder, "OC-B", base.Add(time.Hour))

	lineA := testLine(docA, 1, qty(5))
	lineB := testLine(docB, 1, qty(3))

	docs := newFakeDocs(docA, docB)
	lines := newFakeLines()
	lines.byDoc["OC-A"] = []trade.DocumentLine{lineA}
	lines.byDoc["OC-B"] = []trade.DocumentLine{lineB}

	gen := &fakeGenerator{}
	audit := &fakeAudit{}
	orch, txm := newTestOrchestrator(docs, lines, newFakeStatuses(deliveryStatus(7)), gen, audit)

	req := Request{
		Kind:       trade.CustomerOrder,
		Codes:      []string{"OC-B", "OC-A"}, // order corrected by issue date
		Status:     "7",
		Quantities: Ledger{lineA.ID: qty(5), lineB.ID: qty(3)},
	}

	outcome, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Action != ActionGenerate {
		t.Errorf("expected generate action, got %s", outcome.Action)
	}
	if txm.calls != 1 {
		t.Errorf("expected exactly one transaction, got %d", txm.calls)
	}

	// Prototype comes from the earliest document.
	if gen.prototype == nil || gen.prototype.SubjectCode != docA.SubjectCode {
		t.Fatal("prototype not built from working set")
	}
	if gen.target != trade.CustomerDelivery {
		t.Errorf("expected CustomerDelivery target, got %s", gen.target)
	}
	// No annotation lines requested: only the two business lines carry over.
	if len(gen.lines) != 2 {
		t.Fatalf("expected 2 carried lines, got %d", len(gen.lines))
	}

	// Both sources are now fully served and closed.
	for _, doc := range []*trade.Document{docA, docB} {
		if doc.GenerationEnabled {
			t.Errorf("%s must have generation disabled", doc.Code)
		}
		if doc.StatusID != 7 {
			t.Errorf("%s must be advanced to status 7, got %d", doc.Code, doc.StatusID)
		}
	}

	if len(audit.calls) != 1 || audit.calls[0].action != "generate" {
		t.Fatalf("expected one generate audit entry, got %v", audit.calls)
	}
	if len(audit.calls[0].created) != 1 || audit.calls[0].created[0] != "GEN-1" {
		t.Errorf("audit must name the created document, got %v", audit.calls[0].created)
	}
}

func TestRun_AnnotationLinesForSubsequentDocuments(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	docA := testDoc(trade.CustomerOrder, "OC-A", base)
	docB := testDoc(trade.CustomerOrder, "OC-B", base.Add(time.Hour))
	docB.ExternalRef = "REF-42"

	lineA := testLine(docA, 1, qty(1))
	lineB := testLine(docB, 1, qty(1))

	docs := newFakeDocs(docA, docB)
	lines := newFakeLines()
	lines.byDoc["OC-A"] = []trade.DocumentLine{lineA}
	lines.byDoc["OC-B"] = []trade.DocumentLine{lineB}

	gen := &fakeGenerator{}
	orch, _ := newTestOrchestrator(docs, lines, newFakeStatuses(deliveryStatus(7)), gen, nil)

	req := Request{
		Kind:       trade.CustomerOrder,
		Codes:      []string{"OC-A", "OC-B"},
		Status:     "7",
		ExtraLines: true,
		Quantities: Ledger{lineA.ID: qty(1), lineB.ID: qty(1)},
	}

	if _, err := orch.Run(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// lineA, blank, info, lineB: annotations only before subsequent documents.
	if len(gen.lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(gen.lines))
	}

	blank := gen.lines[1]
	if !blank.IsAnnotation() || blank.Description != "" || blank.ShowQuantity || blank.ShowPrice {
		t.Errorf("expected hidden blank separator, got %+v", blank)
	}

	info := gen.lines[2]
	if !info.IsAnnotation() {
		t.Error("info line must be an annotation")
	}
	if !strings.Contains(info.Description, "OC-B") ||
		!strings.Contains(info.Description, "(REF-42)") ||
		!strings.Contains(info.Description, "01-03-2026") {
		t.Errorf("info line missing source details: %q", info.Description)
	}
	if !strings.HasSuffix(info.Description, "--------------------") {
		t.Errorf("info line missing separator rule: %q", info.Description)
	}
}

func TestRun_CloseAction(t *testing.T) {
	now := time.Now()
	docA := testDoc(trade.CustomerOrder, "OC-A", now)
	docB := testDoc(trade.CustomerOrder, "OC-B", now)

	docs := newFakeDocs(docA, docB)
	audit := &fakeAudit{}
	orch, txm := newTestOrchestrator(docs, newFakeLines(), newFakeStatuses(deliveryStatus(7)), &fakeGenerator{}, audit)

	req := Request{
		Kind:   trade.CustomerOrder,
		Codes:  []string{"OC-A", "OC-B"},
		Status: "close:9",
	}

	outcome, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Action != ActionClose {
		t.Errorf("expected close action, got %s", outcome.Action)
	}
	if len(outcome.Closed) != 2 {
		t.Errorf("expected 2 closed codes, got %v", outcome.Closed)
	}
	if txm.calls != 1 {
		t.Errorf("expected one transaction, got %d", txm.calls)
	}
	for _, doc := range []*trade.Document{docA, docB} {
		if doc.GenerationEnabled || doc.StatusID != 9 {
			t.Errorf("%s not closed: enabled=%v status=%d", doc.Code, doc.GenerationEnabled, doc.StatusID)
		}
	}
	if len(audit.calls) != 1 || audit.calls[0].action != "close" {
		t.Errorf("expected one close audit entry, got %v", audit.calls)
	}
}

func TestRun_EmptySetIsEmptyOperation(t *testing.T) {
	orch, _ := newTestOrchestrator(newFakeDocs(), newFakeLines(), newFakeStatuses(deliveryStatus(7)), &fakeGenerator{}, nil)

	req := Request{Kind: trade.CustomerOrder, Codes: []string{"OC-NOPE"}, Status: "7"}
	_, err := orch.Run(context.Background(), req)
	if !apperror.IsEmptyOperation(err) {
		t.Fatalf("expected empty operation, got %v", err)
	}
}

func TestRun_NoCarriedLinesIsEmptyOperation(t *testing.T) {
	// Documents admitted but the operator requested nothing.
	now := time.Now()
	doc := testDoc(trade.CustomerOrder, "OC-A", now)
	line := testLine(doc, 1, qty(5))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc["OC-A"] = []trade.DocumentLine{line}

	orch, _ := newTestOrchestrator(docs, lines, newFakeStatuses(deliveryStatus(7)), &fakeGenerator{}, nil)

	req := Request{
		Kind:       trade.CustomerOrder,
		Codes:      []string{"OC-A"},
		Status:     "7",
		Quantities: Ledger{},
	}

	_, err := orch.Run(context.Background(), req)
	if !apperror.IsEmptyOperation(err) {
		t.Fatalf("expected empty operation, got %v", err)
	}
	if doc.StatusID == 7 {
		t.Error("document must keep its status after an empty round")
	}
}

func TestRun_StatusWithoutTargetKind(t *testing.T) {
	now := time.Now()
	doc := testDoc(trade.CustomerOrder, "OC-A", now)
	line := testLine(doc, 1, qty(1))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc["OC-A"] = []trade.DocumentLine{line}

	closeOnly := trade.WorkflowStatus{ID: 9, Kind: trade.CustomerOrder, Name: "Closed", Active: true}
	orch, _ := newTestOrchestrator(docs, lines, newFakeStatuses(closeOnly), &fakeGenerator{}, nil)

	req := Request{
		Kind:       trade.CustomerOrder,
		Codes:      []string{"OC-A"},
		Status:     "9",
		Quantities: Ledger{line.ID: qty(1)},
	}

	_, err := orch.Run(context.Background(), req)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if doc.StatusID == 9 || !doc.GenerationEnabled {
		t.Error("no writes may happen when the target kind is missing")
	}
}

func TestRun_GeneratorFailurePropagates(t *testing.T) {
	now := time.Now()
	doc := testDoc(trade.CustomerOrder, "OC-A", now)
	line := testLine(doc, 1, qty(1))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc["OC-A"] = []trade.DocumentLine{line}

	gen := &fakeGenerator{err: apperror.NewPersistence(nil)}
	orch, _ := newTestOrchestrator(docs, lines, newFakeStatuses(deliveryStatus(7)), gen, nil)

	req := Request{
		Kind:       trade.CustomerOrder,
		Codes:      []string{"OC-A"},
		Status:     "7",
		Quantities: Ledger{line.ID: qty(1)},
	}

	_, err := orch.Run(context.Background(), req)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodePersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

// vetoExtension rejects every prototype.
type vetoExtension struct {
	BaseExtension
}

func (vetoExtension) Name() string { return "veto" }

func (vetoExtension) CheckPrototype(context.Context, *trade.Document, []trade.DocumentLine) (bool, error) {
	return false, nil
}

func TestRun_ExtensionVeto(t *testing.T) {
	now := time.Now()
	doc := testDoc(trade.CustomerOrder, "OC-A", now)
	line := testLine(doc, 1, qty(1))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc["OC-A"] = []trade.DocumentLine{line}

	gen := &fakeGenerator{}
	orch, _ := newTestOrchestrator(docs, lines, newFakeStatuses(deliveryStatus(7)), gen, nil, vetoExtension{})

	req := Request{
		Kind:       trade.CustomerOrder,
		Codes:      []string{"OC-A"},
		Status:     "7",
		Quantities: Ledger{line.ID: qty(1)},
	}

	_, err := orch.Run(context.Background(), req)
	if !apperror.IsEmptyOperation(err) {
		t.Fatalf("expected empty operation from veto, got %v", err)
	}
	appErr, _ := apperror.AsAppError(err)
	if appErr.Details["vetoed_by"] != "veto" {
		t.Errorf("expected veto attribution, got %v", appErr.Details)
	}
	if gen.prototype != nil {
		t.Error("generator must not run after a veto")
	}
}
