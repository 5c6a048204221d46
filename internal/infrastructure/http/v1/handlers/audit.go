package handlers

import (
	"github.com/gin-gonic/gin"

	"docstitch/internal/domain/trade"
	"docstitch/internal/infrastructure/storage/postgres"
)

// AuditHandler exposes the stitch audit trail.
type AuditHandler struct {
	*BaseHandler
	audit *postgres.StitchAudit
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(base *BaseHandler, audit *postgres.StitchAudit) *AuditHandler {
	return &AuditHandler{BaseHandler: base, audit: audit}
}

// History returns recent stitch rounds for a document kind, newest first.
// GET /stitch/:kind/history?limit=50
func (h *AuditHandler) History(c *gin.Context) {
	kind, err := trade.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	entries, err := h.audit.History(c.Request.Context(), kind, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, entries)
}
