// Package generator persists new downstream documents built from a stitching
// prototype and a set of carried lines.
package generator

import (
	"context"
	"fmt"
	"time"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/id"
	"docstitch/internal/domain/stitching"
	"docstitch/internal/domain/totals"
	"docstitch/internal/domain/trade"
	"docstitch/pkg/logger"
	"docstitch/pkg/numerator"
)

// Service implements stitching.GeneratorService.
//
// Generate is expected to run inside the orchestrator's transaction; the
// service itself opens none. It holds no per-call state, so one instance
// serves concurrent rounds.
type Service struct {
	docs     trade.DocumentRepository
	lines    trade.LineRepository
	statuses trade.StatusCatalog
	codes    *numerator.Service
	totals   *totals.Service
}

// NewService creates a document generator.
func NewService(
	docs trade.DocumentRepository,
	lines trade.LineRepository,
	statuses trade.StatusCatalog,
	codes *numerator.Service,
	totalsSvc *totals.Service,
) *Service {
	return &Service{
		docs:     docs,
		lines:    lines,
		statuses: statuses,
		codes:    codes,
		totals:   totalsSvc,
	}
}

// Generate builds the target-kind document from the prototype, allocates its
// code, rebinds the carried lines to it (business lines take the requested
// quantity with served reset to zero; annotation lines are copied verbatim),
// computes totals, persists everything and returns the created documents.
func (s *Service) Generate(
	ctx context.Context,
	prototype *trade.Document,
	target trade.Kind,
	carried []trade.DocumentLine,
	ledger stitching.Ledger,
	props stitching.GenerateProps,
) ([]*trade.Document, error) {
	doc := prototype.Clone()
	doc.Kind = target
	doc.IssuedAt = time.Now().UTC()
	if props.Date != nil {
		doc.IssuedAt = *props.Date
	}

	// The prototype's status id belongs to the source kind; without a default
	// for the target kind the new document would carry a cross-kind status.
	status, err := s.statuses.DefaultStatusFor(ctx, target)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewInvalidTransition("no default status configured for target kind").
				WithDetail("kind", target.String())
		}
		return nil, fmt.Errorf("resolve default status: %w", err)
	}
	doc.StatusID = status.ID

	cfg := numerator.DefaultConfig(target.CodePrefix())
	opts := numerator.DefaultOptions()
	if !target.IsInvoice() {
		opts.Strategy = numerator.StrategyCached
	}
	code, err := s.codes.NextCode(ctx, cfg, opts, doc.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("allocate code: %w", err)
	}
	doc.Code = code

	newLines := make([]trade.DocumentLine, len(carried))
	for i, src := range carried {
		line := src
		line.ID = id.New()
		line.DocumentCode = doc.Code
		line.Position = i + 1
		line.Served = 0
		if requested := ledger.Requested(src.ID); requested.IsPositive() {
			line.Quantity = requested
		}
		newLines[i] = line
	}

	if err := s.totals.Calculate(ctx, doc, newLines, false); err != nil {
		return nil, err
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := s.lines.ReplaceLines(ctx, target, doc.Code, newLines); err != nil {
		return nil, fmt.Errorf("save lines: %w", err)
	}

	logger.Info(ctx, "document created", "kind", target, "code", doc.Code, "lines", len(newLines))
	return []*trade.Document{doc}, nil
}

var _ stitching.GeneratorService = (*Service)(nil)
