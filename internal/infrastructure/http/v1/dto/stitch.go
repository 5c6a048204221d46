package dto

import (
	"docstitch/internal/domain/stitching"
	"docstitch/internal/domain/trade"
)

// CandidatesResponse is the review screen data for a stitch operation.
type CandidatesResponse struct {
	Documents     []*trade.Document      `json:"documents"`
	Rejected      []string               `json:"rejected,omitempty"`
	MoreDocuments []*trade.Document      `json:"moreDocuments,omitempty"`
	Statuses      []trade.WorkflowStatus `json:"statuses"`
}

// FromCandidateView maps the orchestrator's view to the response shape.
func FromCandidateView(view *stitching.CandidateView) CandidatesResponse {
	return CandidatesResponse{
		Documents:     view.Set.Documents(),
		Rejected:      view.Rejected,
		MoreDocuments: view.MoreDocuments,
		Statuses:      view.Statuses,
	}
}

// StitchOutcomeResponse reports what a committed stitch round did.
type StitchOutcomeResponse struct {
	Action  string            `json:"action"`
	Message string            `json:"message,omitempty"`
	Closed  []string          `json:"closed,omitempty"`
	Created []*trade.Document `json:"created,omitempty"`
}

// FromOutcome maps a stitch outcome to the response shape.
func FromOutcome(outcome *stitching.Outcome, message string) StitchOutcomeResponse {
	return StitchOutcomeResponse{
		Action:  outcome.Action.String(),
		Message: message,
		Closed:  outcome.Closed,
		Created: outcome.Created,
	}
}

// FormTokenResponse carries a freshly issued form token.
type FormTokenResponse struct {
	Token string `json:"token"`
}
