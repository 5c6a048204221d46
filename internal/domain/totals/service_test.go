package totals

import (
	"context"
	"testing"

	"docstitch/internal/core/types"
	"docstitch/internal/domain/trade"
)

func rates() StaticRates {
	return StaticRates{
		"IVA21": types.MustMoney("21"),
		"IVA10": types.MustMoney("10"),
	}
}

func line(quantity int64, price, d1 string, taxCode string) trade.DocumentLine {
	l := trade.NewDocumentLine("DOC-1")
	l.Quantity = types.NewQuantityFromInt64Scaled(quantity * types.QuantityScale)
	l.UnitPrice = types.MustMoney(price)
	l.Discount1 = types.MustMoney(d1)
	l.TaxCode = taxCode
	return l
}

func TestCalculate_NetAndVAT(t *testing.T) {
	svc := NewService(nil, nil, rates())
	doc := trade.NewDocument(trade.CustomerDelivery)

	lines := []trade.DocumentLine{
		line(2, "10", "0", "IVA21"),   // 20.00 net, 4.20 vat
		line(1, "100", "10", "IVA10"), // 90.00 net, 9.00 vat
	}

	if err := svc.Calculate(context.Background(), doc, lines, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !doc.Net.Equal(types.MustMoney("110")) {
		t.Errorf("expected net 110, got %s", doc.Net)
	}
	if !doc.TotalVAT.Equal(types.MustMoney("13.2")) {
		t.Errorf("expected vat 13.2, got %s", doc.TotalVAT)
	}
	if !doc.Total.Equal(types.MustMoney("123.2")) {
		t.Errorf("expected total 123.2, got %s", doc.Total)
	}
}

func TestCalculate_DocumentDiscountsCascade(t *testing.T) {
	svc := NewService(nil, nil, rates())
	doc := trade.NewDocument(trade.CustomerDelivery)
	doc.Discount1 = types.MustMoney("10")
	doc.Discount2 = types.MustMoney("50")

	lines := []trade.DocumentLine{line(1, "100", "0", "IVA21")}

	if err := svc.Calculate(context.Background(), doc, lines, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100 * 0.9 * 0.5 = 45
	if !doc.Net.Equal(types.MustMoney("45")) {
		t.Errorf("expected net 45, got %s", doc.Net)
	}
	if !doc.TotalVAT.Equal(types.MustMoney("9.45")) {
		t.Errorf("expected vat 9.45, got %s", doc.TotalVAT)
	}
}

func TestCalculate_TaxExceptionZeroesRate(t *testing.T) {
	svc := NewService(nil, nil, rates())
	doc := trade.NewDocument(trade.CustomerDelivery)

	exempt := line(1, "100", "0", "IVA21")
	exempt.TaxException = "export"

	if err := svc.Calculate(context.Background(), doc, []trade.DocumentLine{exempt}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !doc.TotalVAT.IsZero() {
		t.Errorf("expected zero vat for exempt line, got %s", doc.TotalVAT)
	}
	if !doc.Total.Equal(doc.Net) {
		t.Errorf("total must equal net for exempt-only documents")
	}
}

func TestCalculate_UnknownTaxCodeIsZero(t *testing.T) {
	svc := NewService(nil, nil, rates())
	doc := trade.NewDocument(trade.CustomerDelivery)

	if err := svc.Calculate(context.Background(), doc, []trade.DocumentLine{line(1, "50", "0", "NOPE")}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doc.TotalVAT.IsZero() {
		t.Errorf("unknown tax codes resolve to zero, got %s", doc.TotalVAT)
	}
}
