package stitching

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/tx"
	"docstitch/internal/domain/trade"
	"docstitch/pkg/logger"
)

var tracer = otel.Tracer("docstitch/stitching")

// GeneratorService persists the new downstream document and returns what it
// created. The generator owns code allocation and totals calculation; the
// orchestrator only hands it the prototype, the carried lines and the ledger.
// Returning the documents keeps the round's outcome request-scoped instead of
// parking it on the shared service.
type GeneratorService interface {
	Generate(ctx context.Context, prototype *trade.Document, target trade.Kind,
		lines []trade.DocumentLine, ledger Ledger, props GenerateProps) ([]*trade.Document, error)
}

// GenerateProps carries optional operator overrides into the generator.
type GenerateProps struct {
	// Date overrides the generated document's issue date.
	Date *time.Time
}

// AuditRecorder persists one audit entry per committed stitch round.
// Recording happens inside the round's transaction.
type AuditRecorder interface {
	RecordStitch(ctx context.Context, action string, kind trade.Kind,
		sourceCodes, createdCodes []string) error
}

// CandidateView is what the operator reviews before submitting a round:
// the admitted working set, the codes that failed compatibility, further
// compatible documents available for inclusion, and the selectable statuses.
type CandidateView struct {
	Set           *WorkingSet
	Rejected      []string
	MoreDocuments []*trade.Document
	Statuses      []trade.WorkflowStatus
}

// Outcome reports what a committed round did.
type Outcome struct {
	Action  Action
	Closed  []string
	Created []*trade.Document
}

// Orchestrator drives a stitching operation: load candidates, validate,
// branch on close vs generate, and commit or roll back atomically.
//
// One request maps to one Run call; there is no shared mutable state between
// requests beyond the injected collaborators, which are read-mostly.
type Orchestrator struct {
	docs       trade.DocumentRepository
	lines      trade.LineRepository
	statuses   trade.StatusCatalog
	generator  GeneratorService
	breakdown  *BreakdownEngine
	txm        tx.Manager
	audit      AuditRecorder
	extensions []Extension
}

// NewOrchestrator wires the orchestrator. Extensions run in the given order;
// audit may be nil.
func NewOrchestrator(
	docs trade.DocumentRepository,
	lines trade.LineRepository,
	statuses trade.StatusCatalog,
	generator GeneratorService,
	txm tx.Manager,
	audit AuditRecorder,
	extensions ...Extension,
) *Orchestrator {
	return &Orchestrator{
		docs:       docs,
		lines:      lines,
		statuses:   statuses,
		generator:  generator,
		breakdown:  NewBreakdownEngine(docs, lines),
		txm:        txm,
		audit:      audit,
		extensions: extensions,
	}
}

// LoadCandidates resolves the requested codes into a validated working set
// plus the surrounding review data. Codes that fail to load are skipped
// silently; codes that fail compatibility are collected as rejected.
func (o *Orchestrator) LoadCandidates(ctx context.Context, kind trade.Kind, codes []string) (*CandidateView, error) {
	if kind.IsInvoice() {
		return nil, apperror.NewInvalidTransition("invoice documents cannot be stitched").
			WithDetail("kind", kind.String())
	}

	view := &CandidateView{Set: NewWorkingSet()}

	for _, code := range codes {
		doc, err := o.docs.LoadByCode(ctx, kind, code)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if err := view.Set.TryAdd(ctx, doc); err != nil {
			view.Rejected = append(view.Rejected, code)
		}
	}
	view.Set.SortByIssueDate()

	if first := view.Set.First(); first != nil {
		selected := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			selected[code] = struct{}{}
		}

		more, err := o.docs.FindCompatible(ctx, first)
		if err != nil {
			return nil, err
		}
		for _, doc := range more {
			if _, taken := selected[doc.Code]; !taken {
				view.MoreDocuments = append(view.MoreDocuments, doc)
			}
		}
	}

	statuses, err := o.statuses.ActiveGeneratingStatuses(ctx, kind)
	if err != nil {
		return nil, err
	}
	view.Statuses = statuses

	return view, nil
}

// Run executes one stitch round to completion or rollback.
//
// Returns apperror.CodeEmptyOperation when there was nothing to do; callers
// must treat that as a benign no-op, not a failure.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "stitch.run",
		trace.WithAttributes(
			attribute.String("stitch.kind", req.Kind.String()),
			attribute.Int("stitch.codes", len(req.Codes)),
		))
	defer span.End()

	view, err := o.LoadCandidates(ctx, req.Kind, req.Codes)
	if err != nil {
		return nil, err
	}
	if view.Set.Len() == 0 {
		return nil, apperror.NewEmptyOperation()
	}

	action, statusID, err := req.Action()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("stitch.action", action.String()))

	switch action {
	case ActionClose:
		return o.closeDocuments(ctx, req, view.Set, statusID)
	default:
		return o.generateDocument(ctx, req, view.Set, statusID)
	}
}

// closeDocuments advances every document in the set to the target status and
// clears its generation flag, all inside one transaction.
func (o *Orchestrator) closeDocuments(ctx context.Context, req Request, set *WorkingSet, statusID int) (*Outcome, error) {
	err := o.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, doc := range set.Documents() {
			doc.DisableGeneration()
			doc.StatusID = statusID
			if err := o.docs.Save(ctx, doc); err != nil {
				return apperror.NewPersistence(err).WithDetail("document_code", doc.Code)
			}
		}
		return o.recordAudit(ctx, ActionClose, req.Kind, set.Codes(), nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "documents closed", "kind", req.Kind, "count", set.Len())
	return &Outcome{Action: ActionClose, Closed: set.Codes()}, nil
}

// generateDocument merges the set's lines into a new downstream document.
func (o *Orchestrator) generateDocument(ctx context.Context, req Request, set *WorkingSet, statusID int) (*Outcome, error) {
	// Resolve the target kind up front: a status without one cannot generate,
	// and finding out after breakdown writes would waste the round.
	targetKind, err := o.statuses.TargetKindFor(ctx, statusID)
	if err != nil {
		return nil, err
	}
	if targetKind == nil || !targetKind.IsValid() {
		return nil, apperror.NewInvalidTransition("status has no target document kind").
			WithDetail("status_id", statusID)
	}

	var outcome *Outcome
	err = o.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var prototype *trade.Document
		var newLines []trade.DocumentLine
		tr := req.translator()

		for _, doc := range set.Documents() {
			docLines, err := o.lines.GetLines(ctx, doc.Kind, doc.Code)
			if err != nil {
				return apperror.NewPersistence(err).WithDetail("document_code", doc.Code)
			}

			if prototype == nil {
				prototype = doc.Clone()
				if req.SeriesOverride != "" {
					prototype.Series = req.SeriesOverride
				}
			} else if req.ExtraLinesFor(doc.Code) && len(docLines) > 0 {
				blank := BlankLine(doc)
				if err := o.eachExtension(ctx, func(ext Extension) error {
					return ext.DecorateBlankLine(ctx, &blank)
				}); err != nil {
					return err
				}
				newLines = append(newLines, blank)

				info := InfoLine(doc, tr)
				if err := o.eachExtension(ctx, func(ext Extension) error {
					return ext.DecorateInfoLine(ctx, &info)
				}); err != nil {
					return err
				}
				newLines = append(newLines, info)
			}

			res, err := o.breakdown.BreakDown(ctx, doc, docLines, req.Quantities, statusID, o.decorateCarried)
			if err != nil {
				return err
			}
			newLines = append(newLines, res.Carried...)
		}

		if prototype == nil || len(newLines) == 0 {
			return apperror.NewEmptyOperation()
		}

		for _, ext := range o.extensions {
			ok, err := ext.CheckPrototype(ctx, prototype, newLines)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.NewEmptyOperation().WithDetail("vetoed_by", ext.Name())
			}
		}

		props := GenerateProps{Date: req.DateOverride}
		created, err := o.generator.Generate(ctx, prototype, *targetKind, newLines, req.Quantities, props)
		if err != nil {
			if _, ok := apperror.AsAppError(err); ok {
				return err
			}
			return apperror.NewPersistence(err)
		}

		createdCodes := make([]string, len(created))
		for i, doc := range created {
			createdCodes[i] = doc.Code
		}
		if err := o.recordAudit(ctx, ActionGenerate, req.Kind, set.Codes(), createdCodes); err != nil {
			return err
		}

		outcome = &Outcome{Action: ActionGenerate, Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document generated",
		"kind", req.Kind, "target", targetKind.String(), "sources", set.Len())
	return outcome, nil
}

func (o *Orchestrator) decorateCarried(ctx context.Context, line *trade.DocumentLine) error {
	return o.eachExtension(ctx, func(ext Extension) error {
		return ext.DecorateCarriedLine(ctx, line)
	})
}

func (o *Orchestrator) eachExtension(ctx context.Context, fn func(ext Extension) error) error {
	for _, ext := range o.extensions {
		if err := fn(ext); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) recordAudit(ctx context.Context, action Action, kind trade.Kind, sources, created []string) error {
	if o.audit == nil {
		return nil
	}
	return o.audit.RecordStitch(ctx, action.String(), kind, sources, created)
}
