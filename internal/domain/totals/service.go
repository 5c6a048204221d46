// Package totals recomputes document net, tax and total amounts from lines.
// Tax-rate resolution is external: the service only consumes a RateSource.
package totals

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"docstitch/internal/core/types"
	"docstitch/internal/domain/trade"
)

// RateSource resolves a line tax code into a percentage.
type RateSource interface {
	RateFor(ctx context.Context, taxCode string) (types.Percent, error)
}

// StaticRates is a fixed in-memory rate source, used in tests and as a
// fallback when no tax catalog is configured.
type StaticRates map[string]types.Percent

// RateFor implements RateSource. Unknown codes resolve to zero.
func (s StaticRates) RateFor(_ context.Context, taxCode string) (types.Percent, error) {
	if rate, ok := s[taxCode]; ok {
		return rate, nil
	}
	return types.Zero(), nil
}

var hundred = decimal.NewFromInt(100)

// Service is the totals calculator consumed by the generator and the API
// document-creation path.
type Service struct {
	docs  trade.DocumentRepository
	lines trade.LineRepository
	rates RateSource
}

// NewService creates a totals calculator.
func NewService(docs trade.DocumentRepository, lines trade.LineRepository, rates RateSource) *Service {
	return &Service{docs: docs, lines: lines, rates: rates}
}

// Calculate recomputes the document's net, tax and total from the given
// lines and document-level discounts. With persist set, the document and its
// lines are saved afterwards.
func (s *Service) Calculate(ctx context.Context, doc *trade.Document, docLines []trade.DocumentLine, persist bool) error {
	docFactor := discountFactor(doc.Discount1, doc.Discount2)

	net := types.Zero()
	vat := types.Zero()
	for i := range docLines {
		line := &docLines[i]
		lineNet := line.Quantity.Decimal().
			Mul(line.UnitPrice).
			Mul(discountFactor(line.Discount1, line.Discount2)).
			Mul(docFactor)

		rate, err := s.rates.RateFor(ctx, line.TaxCode)
		if err != nil {
			return fmt.Errorf("resolve tax rate %q: %w", line.TaxCode, err)
		}
		if line.TaxException != "" {
			rate = types.Zero()
		}

		net = net.Add(lineNet)
		vat = vat.Add(lineNet.Mul(rate).Div(hundred))
	}

	doc.Net = net.Round(2)
	doc.TotalVAT = vat.Round(2)
	doc.Total = doc.Net.Add(doc.TotalVAT)

	if !persist {
		return nil
	}

	if err := s.docs.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document totals: %w", err)
	}
	if err := s.lines.ReplaceLines(ctx, doc.Kind, doc.Code, docLines); err != nil {
		return fmt.Errorf("save lines: %w", err)
	}
	return nil
}

// discountFactor turns two cascading percentages into a multiplier.
func discountFactor(d1, d2 types.Percent) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return one.Sub(d1.Div(hundred)).Mul(one.Sub(d2.Div(hundred)))
}
