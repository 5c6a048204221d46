package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docstitch/internal/core/tx"
	"docstitch/internal/domain/totals"
	"docstitch/internal/domain/trade"
	"docstitch/internal/infrastructure/http/v1/dto"
	"docstitch/pkg/numerator"
)

// DocumentHandler exposes document CRUD for all eight kind variants.
type DocumentHandler struct {
	*BaseHandler
	docs     trade.DocumentRepository
	lines    trade.LineRepository
	statuses trade.StatusCatalog
	codes    *numerator.Service
	totals   *totals.Service
	txm      tx.ReadOnlyManager
}

// NewDocumentHandler creates the document handler.
func NewDocumentHandler(
	base *BaseHandler,
	docs trade.DocumentRepository,
	lines trade.LineRepository,
	statuses trade.StatusCatalog,
	codes *numerator.Service,
	totalsSvc *totals.Service,
	txm tx.ReadOnlyManager,
) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		docs:        docs,
		lines:       lines,
		statuses:    statuses,
		codes:       codes,
		totals:      totalsSvc,
		txm:         txm,
	}
}

// Get returns one document with its lines.
// GET /documents/:kind/:code
func (h *DocumentHandler) Get(c *gin.Context) {
	kind, err := trade.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}
	code := c.Param("code")

	// One read-only transaction so document and lines come from the same
	// snapshot.
	var doc *trade.Document
	var docLines []trade.DocumentLine
	err = h.txm.ReadOnly(c.Request.Context(), func(ctx context.Context) error {
		if doc, err = h.docs.LoadByCode(ctx, kind, code); err != nil {
			return err
		}
		docLines, err = h.lines.GetLines(ctx, kind, code)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.DocumentResponse{Document: doc, Lines: docLines})
}

// Create inserts a new document with lines, allocating its code and
// computing totals inside one transaction.
// POST /documents/:kind
func (h *DocumentHandler) Create(c *gin.Context) {
	kind, err := trade.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToDocument(kind)
	docLines := req.ToLines(doc)

	ctx := c.Request.Context()
	if err := doc.Validate(ctx); err != nil {
		h.Error(c, err)
		return
	}

	if doc.StatusID == 0 {
		status, err := h.statuses.DefaultStatusFor(ctx, kind)
		if err != nil {
			h.Error(c, err)
			return
		}
		doc.StatusID = status.ID
	}

	err = h.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return h.create(ctx, doc, docLines)
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, doc.Code)
}

func (h *DocumentHandler) create(ctx context.Context, doc *trade.Document, docLines []trade.DocumentLine) error {
	cfg := numerator.DefaultConfig(doc.Kind.CodePrefix())
	opts := numerator.DefaultOptions()
	if !doc.Kind.IsInvoice() {
		opts.Strategy = numerator.StrategyCached
	}

	code, err := h.codes.NextCode(ctx, cfg, opts, doc.IssuedAt)
	if err != nil {
		return err
	}
	doc.Code = code
	for i := range docLines {
		docLines[i].DocumentCode = code
	}

	if err := h.totals.Calculate(ctx, doc, docLines, false); err != nil {
		return err
	}

	if err := h.docs.Create(ctx, doc); err != nil {
		return err
	}
	return h.lines.ReplaceLines(ctx, doc.Kind, doc.Code, docLines)
}
