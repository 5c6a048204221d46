package trade

// WorkflowStatus is a named state in the status catalog, scoped to one
// document kind.
//
// Only statuses with a non-nil TargetKind may trigger generation of a
// downstream document; statuses without one may only close.
type WorkflowStatus struct {
	ID   int    `db:"id" json:"id"`
	Kind Kind   `db:"doc_kind" json:"docKind"`
	Name string `db:"name" json:"name"`

	Active    bool `db:"active" json:"active"`
	Generates bool `db:"generates" json:"generates"`

	// Default marks the status newly created documents of the kind start in.
	Default bool `db:"is_default" json:"default"`

	// TargetKind is the downstream document kind this status produces.
	TargetKind *Kind `db:"target_kind" json:"targetKind,omitempty"`
}

// CanGenerate reports whether this status may trigger document generation.
func (s *WorkflowStatus) CanGenerate() bool {
	return s.Generates && s.TargetKind != nil && s.TargetKind.IsValid()
}
