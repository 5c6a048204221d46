// Package stitching implements the document stitching engine: compatibility
// validation, quantity breakdown, annotation-line synthesis and the atomic
// close/generate workflow over a set of source documents.
package stitching

import (
	"strconv"
	"strings"
	"time"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/id"
	"docstitch/internal/core/types"
	"docstitch/internal/domain/trade"
	"docstitch/pkg/i18n"
)

// closePrefix marks a target status that closes the set instead of
// generating a downstream document.
const closePrefix = "close:"

// Action is the branch a stitch round takes after validation.
type Action int

const (
	ActionGenerate Action = iota
	ActionClose
)

func (a Action) String() string {
	if a == ActionClose {
		return "close"
	}
	return "generate"
}

// Ledger maps a line id to the quantity the operator requests to carry into
// this round. A missing entry reads as zero, and zero means "not part of this
// action", so an explicit zero request is indistinguishable from no request.
// That sentinel ambiguity is preserved deliberately for behavioral parity
// with the systems operators migrate from.
type Ledger map[id.ID]types.Quantity

// Requested returns the quantity requested for a line, zero if absent.
func (l Ledger) Requested(lineID id.ID) types.Quantity {
	return l[lineID]
}

// Set records a requested quantity.
func (l Ledger) Set(lineID id.ID, q types.Quantity) {
	l[lineID] = q
}

// Request is one parsed stitch submission.
type Request struct {
	Kind  trade.Kind
	Codes []string

	// Status is the raw target status field, optionally "close:"-prefixed.
	Status string

	// SeriesOverride replaces the prototype's series when non-empty.
	SeriesOverride string

	// DateOverride replaces the generated document's date when set.
	DateOverride *time.Time

	// ExtraLines enables annotation lines for all documents; ExtraLinesPer
	// overrides it per document code.
	ExtraLines    bool
	ExtraLinesPer map[string]bool

	// Quantities is the per-line carry ledger, consumed once by breakdown.
	Quantities Ledger

	// Translator localizes annotation lines and notices for this request.
	Translator *i18n.Translator
}

// ResolveCodes merges the three ways a code list reaches the operation:
// explicit codes, a comma-joined legacy field, and appended new codes.
// Blank entries are dropped; order is preserved, duplicates removed.
func ResolveCodes(explicit []string, legacy string, newCodes []string) []string {
	merged := make([]string, 0, len(explicit)+len(newCodes))
	if len(explicit) > 0 {
		merged = append(merged, explicit...)
	} else if legacy != "" {
		merged = append(merged, strings.Split(legacy, ",")...)
	}
	merged = append(merged, newCodes...)

	seen := make(map[string]struct{}, len(merged))
	codes := make([]string, 0, len(merged))
	for _, code := range merged {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// ExtraLinesFor reports whether annotation lines are requested for a document.
func (r *Request) ExtraLinesFor(documentCode string) bool {
	if v, ok := r.ExtraLinesPer[documentCode]; ok {
		return v
	}
	return r.ExtraLines
}

// Action parses the status field into the branch to take and the target
// workflow status id.
func (r *Request) Action() (Action, int, error) {
	raw := strings.TrimSpace(r.Status)
	action := ActionGenerate
	if strings.HasPrefix(raw, closePrefix) {
		action = ActionClose
		raw = strings.TrimPrefix(raw, closePrefix)
	}

	statusID, err := strconv.Atoi(raw)
	if err != nil {
		return action, 0, apperror.NewValidation("invalid target status").
			WithDetail("status", r.Status).WithCause(err)
	}
	return action, statusID, nil
}

func (r *Request) translator() *i18n.Translator {
	if r.Translator != nil {
		return r.Translator
	}
	return i18n.Default()
}
