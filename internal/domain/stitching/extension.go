package stitching

import (
	"context"

	"docstitch/internal/domain/trade"
)

// Extension is a pluggable behavior invoked at fixed points of a stitch
// round. Extensions are injected into the orchestrator at construction time
// as an explicit ordered list and run in registration order.
type Extension interface {
	// Name identifies the extension in logs and veto details.
	Name() string

	// DecorateBlankLine may mutate a synthesized blank separator line.
	DecorateBlankLine(ctx context.Context, line *trade.DocumentLine) error

	// DecorateInfoLine may mutate a synthesized info line.
	DecorateInfoLine(ctx context.Context, line *trade.DocumentLine) error

	// DecorateCarriedLine may mutate a line about to be carried forward.
	DecorateCarriedLine(ctx context.Context, line *trade.DocumentLine) error

	// CheckPrototype may veto or mutate the prototype and line set before
	// anything is persisted. Returning false aborts the round with rollback.
	CheckPrototype(ctx context.Context, prototype *trade.Document, lines []trade.DocumentLine) (bool, error)
}

// BaseExtension provides no-op implementations so extensions only override
// the hooks they care about.
type BaseExtension struct{}

func (BaseExtension) DecorateBlankLine(context.Context, *trade.DocumentLine) error { return nil }

func (BaseExtension) DecorateInfoLine(context.Context, *trade.DocumentLine) error { return nil }

func (BaseExtension) DecorateCarriedLine(context.Context, *trade.DocumentLine) error { return nil }

func (BaseExtension) CheckPrototype(context.Context, *trade.Document, []trade.DocumentLine) (bool, error) {
	return true, nil
}
