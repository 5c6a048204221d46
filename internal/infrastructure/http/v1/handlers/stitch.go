package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/id"
	"docstitch/internal/core/types"
	"docstitch/internal/domain/stitching"
	"docstitch/internal/domain/trade"
	"docstitch/internal/infrastructure/http/v1/dto"
	"docstitch/internal/infrastructure/http/v1/middleware"
	"docstitch/pkg/i18n"
)

// Form field prefixes for the dynamic per-document and per-line inputs.
const (
	extraLinesFieldPrefix = "extralines_"
	quantityFieldPrefix   = "quantity_"
)

// StitchHandler exposes the stitch operation: candidate review, token issue
// and round submission.
type StitchHandler struct {
	*BaseHandler
	orchestrator *stitching.Orchestrator
	formTokens   *middleware.FormTokenService
}

// NewStitchHandler creates the stitch handler.
func NewStitchHandler(base *BaseHandler, orchestrator *stitching.Orchestrator, formTokens *middleware.FormTokenService) *StitchHandler {
	return &StitchHandler{
		BaseHandler:  base,
		orchestrator: orchestrator,
		formTokens:   formTokens,
	}
}

// Token issues a fresh form token for the next submission.
// GET /stitch/token
func (h *StitchHandler) Token(c *gin.Context) {
	if h.formTokens == nil {
		h.OK(c, dto.FormTokenResponse{})
		return
	}

	token, err := h.formTokens.Issue()
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	h.OK(c, dto.FormTokenResponse{Token: token})
}

// Candidates returns the validated working set plus review data for the
// requested codes.
// GET /stitch/:kind/candidates?codes=A&codes=B
func (h *StitchHandler) Candidates(c *gin.Context) {
	kind, err := trade.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}

	codes := stitching.ResolveCodes(c.QueryArray("codes"), c.Query("code"), nil)
	if len(codes) == 0 {
		h.Error(c, apperror.NewValidation("no document codes given"))
		return
	}

	view, err := h.orchestrator.LoadCandidates(c.Request.Context(), kind, codes)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCandidateView(view))
}

// Run executes one stitch round from a form submission.
// POST /stitch/:kind
func (h *StitchHandler) Run(c *gin.Context) {
	kind, err := trade.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}

	tr := i18n.ForLanguage(c.GetHeader("Accept-Language"))

	req, err := h.parseForm(c, kind, tr)
	if err != nil {
		h.Error(c, err)
		return
	}

	outcome, err := h.orchestrator.Run(c.Request.Context(), req)
	if err != nil {
		// An empty round is a notice for the operator, not a failure.
		if apperror.IsEmptyOperation(err) {
			h.OK(c, dto.SuccessResponse{Success: false, Message: tr.Trans("nothing-to-do")})
			return
		}
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOutcome(outcome, tr.Trans("record-updated-correctly")))
}

// parseForm assembles a stitching request from the submitted form. Dynamic
// fields carry per-document annotation switches and per-line quantities.
func (h *StitchHandler) parseForm(c *gin.Context, kind trade.Kind, tr *i18n.Translator) (stitching.Request, error) {
	req := stitching.Request{
		Kind:           kind,
		Status:         c.PostForm("status"),
		SeriesOverride: c.PostForm("series"),
		ExtraLines:     parseBoolField(c.PostForm("extralines")),
		ExtraLinesPer:  make(map[string]bool),
		Quantities:     make(stitching.Ledger),
		Translator:     tr,
	}

	req.Codes = stitching.ResolveCodes(
		c.PostFormArray("codes"),
		c.PostForm("code"),
		c.PostFormArray("newcodes"),
	)
	if len(req.Codes) == 0 {
		return req, apperror.NewValidation("no document codes given")
	}
	if req.Status == "" {
		return req, apperror.NewValidation("no target status given")
	}

	if raw := c.PostForm("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, apperror.NewValidation("invalid date").
				WithDetail("date", raw).WithCause(err)
		}
		req.DateOverride = &date
	}

	if err := c.Request.ParseForm(); err != nil {
		return req, apperror.NewValidation("malformed form data").WithCause(err)
	}

	for field, values := range c.Request.PostForm {
		if len(values) == 0 {
			continue
		}

		switch {
		case strings.HasPrefix(field, extraLinesFieldPrefix):
			code := strings.TrimPrefix(field, extraLinesFieldPrefix)
			req.ExtraLinesPer[code] = parseBoolField(values[0])

		case strings.HasPrefix(field, quantityFieldPrefix):
			lineID, err := id.Parse(strings.TrimPrefix(field, quantityFieldPrefix))
			if err != nil {
				return req, apperror.NewValidation("invalid line id").
					WithDetail("field", field).WithCause(err)
			}
			qty, err := types.ParseQuantity(values[0])
			if err != nil {
				return req, apperror.NewValidation("invalid quantity").
					WithDetail("field", field).WithCause(err)
			}
			req.Quantities.Set(lineID, qty)
		}
	}

	return req, nil
}

func parseBoolField(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
