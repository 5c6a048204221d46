package stitching

import (
	"context"
	"testing"
	"time"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/types"
	"docstitch/internal/domain/trade"
)

func TestWorkingSet_TryAdd_Compatible(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	set := NewWorkingSet()
	a := testDoc(trade.CustomerOrder, "OC-1", now)
	b := testDoc(trade.CustomerOrder, "OC-2", now.Add(time.Hour))

	if err := set.TryAdd(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := set.TryAdd(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("expected 2 documents, got %d", set.Len())
	}
}

func TestWorkingSet_TryAdd_Incompatible(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	cases := []struct {
		name   string
		mutate func(*trade.Document)
	}{
		{"warehouse", func(d *trade.Document) { d.WarehouseID = "OTHER" }},
		{"currency", func(d *trade.Document) { d.CurrencyCode = "USD" }},
		{"company", func(d *trade.Document) { d.CompanyID = 2 }},
		{"discount1", func(d *trade.Document) { d.Discount1 = types.MustMoney("5") }},
		{"discount2", func(d *trade.Document) { d.Discount2 = types.MustMoney("2.5") }},
		{"subject", func(d *trade.Document) { d.SubjectCode = "CUST999" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := NewWorkingSet()
			if err := set.TryAdd(ctx, testDoc(trade.CustomerOrder, "OC-1", now)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			candidate := testDoc(trade.CustomerOrder, "OC-2", now)
			tc.mutate(candidate)

			err := set.TryAdd(ctx, candidate)
			if !apperror.IsIncompatibleDocument(err) {
				t.Fatalf("expected incompatible document error, got %v", err)
			}
			if set.Len() != 1 {
				t.Errorf("set must be unchanged after rejection, got %d documents", set.Len())
			}
		})
	}
}

func TestWorkingSet_SubjectSideMatters(t *testing.T) {
	// A customer and a supplier document can share the raw subject code;
	// they must still never mix.
	ctx := context.Background()
	now := time.Now()

	set := NewWorkingSet()
	customer := testDoc(trade.CustomerOrder, "OC-1", now)
	supplier := testDoc(trade.SupplierOrder, "OP-1", now)
	supplier.SubjectCode = customer.SubjectCode

	if err := set.TryAdd(ctx, customer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := set.TryAdd(ctx, supplier); !apperror.IsIncompatibleDocument(err) {
		t.Fatalf("expected incompatible document error, got %v", err)
	}
}

func TestWorkingSet_SortByIssueDate(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	set := NewWorkingSet()
	late := testDoc(trade.CustomerOrder, "OC-LATE", base.Add(48*time.Hour))
	early := testDoc(trade.CustomerOrder, "OC-EARLY", base)
	mid := testDoc(trade.CustomerOrder, "OC-MID", base.Add(2*time.Hour))

	for _, doc := range []*trade.Document{late, early, mid} {
		if err := set.TryAdd(ctx, doc); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	set.SortByIssueDate()

	want := []string{"OC-EARLY", "OC-MID", "OC-LATE"}
	got := set.Codes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if set.First().Code != "OC-EARLY" {
		t.Errorf("expected first OC-EARLY, got %s", set.First().Code)
	}
}
