package stitching

import (
	"context"
	"testing"
	"time"

	"docstitch/internal/core/apperror"
	"docstitch/internal/domain/trade"
)

func TestBreakDown_FullCarry(t *testing.T) {
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	lineA := testLine(doc, 1, qty(5))
	lineB := testLine(doc, 2, qty(3))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{lineA, lineB}

	ledger := Ledger{lineA.ID: qty(5), lineB.ID: qty(3)}

	engine := NewBreakdownEngine(docs, lines)
	res, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.FullyServed {
		t.Error("expected document fully served")
	}
	if len(res.Carried) != 2 {
		t.Fatalf("expected 2 carried lines, got %d", len(res.Carried))
	}
	if doc.GenerationEnabled {
		t.Error("generation flag must be cleared on a fully served document")
	}
	if doc.StatusID != 7 {
		t.Errorf("expected status 7, got %d", doc.StatusID)
	}

	stored := lines.byDoc[doc.Code]
	if stored[0].Served != qty(5) || stored[1].Served != qty(3) {
		t.Errorf("served not settled: got %v and %v", stored[0].Served, stored[1].Served)
	}
}

func TestBreakDown_PartialCarry(t *testing.T) {
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	line := testLine(doc, 1, qty(5))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{line}

	ledger := Ledger{line.ID: qty(2)}

	engine := NewBreakdownEngine(docs, lines)
	res, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.FullyServed {
		t.Error("2 of 5 must not be fully served")
	}
	if len(res.Carried) != 1 {
		t.Fatalf("expected 1 carried line, got %d", len(res.Carried))
	}
	if doc.StatusID == 7 {
		t.Error("partially served document must keep its status")
	}
	if !doc.GenerationEnabled {
		t.Error("partially served document must stay eligible for generation")
	}
	if lines.byDoc[doc.Code][0].Served != qty(2) {
		t.Errorf("expected served 2, got %v", lines.byDoc[doc.Code][0].Served)
	}
}

func TestBreakDown_ZeroRequestStaysBehind(t *testing.T) {
	// A zero request on a line with remaining quantity leaves the line out of
	// the round entirely.
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	wanted := testLine(doc, 1, qty(5))
	skipped := testLine(doc, 2, qty(4))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{wanted, skipped}

	ledger := Ledger{wanted.ID: qty(5)}

	engine := NewBreakdownEngine(docs, lines)
	res, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.FullyServed {
		t.Error("document with an unserved skipped line is not fully served")
	}
	if len(res.Carried) != 1 {
		t.Fatalf("expected 1 carried line, got %d", len(res.Carried))
	}
	if res.Carried[0].ID != wanted.ID {
		t.Error("wrong line carried")
	}

	stored := lines.byDoc[doc.Code]
	if stored[1].Served != 0 {
		t.Errorf("skipped line must keep served 0, got %v", stored[1].Served)
	}
}

func TestBreakDown_PreviouslyServedCountsTowardFull(t *testing.T) {
	// 3 already served, 2 requested now: the line completes.
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	line := testLine(doc, 1, qty(5))
	line.Served = qty(3)

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{line}

	ledger := Ledger{line.ID: qty(2)}

	engine := NewBreakdownEngine(docs, lines)
	res, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.FullyServed {
		t.Error("served 3 + requested 2 of 5 must be fully served")
	}
	if lines.byDoc[doc.Code][0].Served != qty(5) {
		t.Errorf("expected served 5, got %v", lines.byDoc[doc.Code][0].Served)
	}
}

func TestBreakDown_AnnotationLineAlwaysCarried(t *testing.T) {
	// Zero-quantity lines (annotations, free text) travel with the document
	// and do not block full service.
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	business := testLine(doc, 1, qty(2))
	note := doc.NewLine()
	note.Position = 2
	note.Description = "free text"

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{business, note}

	ledger := Ledger{business.ID: qty(2)}

	engine := NewBreakdownEngine(docs, lines)
	res, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.FullyServed {
		t.Error("annotation line must not block full service")
	}
	if len(res.Carried) != 2 {
		t.Fatalf("expected business plus annotation carried, got %d", len(res.Carried))
	}
}

func TestBreakDown_RequestBeyondPendingRejected(t *testing.T) {
	// Requesting 10 on a 5-unit line would settle served past quantity, which
	// no later round can repair.
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	line := testLine(doc, 1, qty(5))

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{line}

	ledger := Ledger{line.ID: qty(10)}

	engine := NewBreakdownEngine(docs, lines)
	_, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err == nil {
		t.Fatal("expected validation error for a request beyond the pending amount")
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeValidation {
		t.Errorf("expected %s, got %v", apperror.CodeValidation, err)
	}

	if len(docs.saved) != 0 {
		t.Error("document must not be saved after a rejected request")
	}
	if lines.byDoc[doc.Code][0].Served != 0 {
		t.Errorf("served must stay untouched, got %v", lines.byDoc[doc.Code][0].Served)
	}
}

func TestBreakDown_PartialAfterEarlierRounds(t *testing.T) {
	// 3 already served leaves 2 pending; requesting 3 overshoots even though
	// the request is below the line quantity.
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	line := testLine(doc, 1, qty(5))
	line.Served = qty(3)

	docs := newFakeDocs(doc)
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{line}

	ledger := Ledger{line.ID: qty(3)}

	engine := NewBreakdownEngine(docs, lines)
	_, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err == nil {
		t.Fatal("expected validation error when the request exceeds the pending amount")
	}
	if lines.byDoc[doc.Code][0].Served != qty(3) {
		t.Errorf("served must stay at 3, got %v", lines.byDoc[doc.Code][0].Served)
	}
}

func TestBreakDown_SaveFailureAborts(t *testing.T) {
	ctx := context.Background()
	doc := testDoc(trade.CustomerOrder, "OC-1", time.Now())
	line := testLine(doc, 1, qty(5))

	docs := newFakeDocs(doc)
	docs.failSaveCode = doc.Code
	lines := newFakeLines()
	lines.byDoc[doc.Code] = []trade.DocumentLine{line}

	ledger := Ledger{line.ID: qty(5)}

	engine := NewBreakdownEngine(docs, lines)
	_, err := engine.BreakDown(ctx, doc, lines.byDoc[doc.Code], ledger, 7, nil)
	if err == nil {
		t.Fatal("expected error from failing document save")
	}
	if lines.byDoc[doc.Code][0].Served != 0 {
		t.Error("served must not be settled after an aborted round")
	}
}
