package status

import "fmt"

// SectionType represents the semantic type of a section header.
type SectionType int

const (
	// SectionGeneric is a static section header with no iteration.
	SectionGeneric SectionType = iota
	// SectionSession marks the start of one agent session.
	SectionSession
)

// Section carries structured information about a section header,
// so consumers don't have to parse labels.
//
// Iteration is > 0 for SectionSession and 0 for SectionGeneric.
type Section struct {
	Type      SectionType
	Iteration int
	Phase     Phase  // empty for generic sections
	Label     string // human-readable display text
}

// NewSessionSection creates a section for the session of the given iteration.
func NewSessionSection(iteration int, phase Phase) Section {
	return Section{
		Type:      SectionSession,
		Iteration: iteration,
		Phase:     phase,
		Label:     fmt.Sprintf("iteration %d: %s session", iteration, phase),
	}
}

// NewGenericSection creates a static section header with no iteration.
func NewGenericSection(label string) Section {
	return Section{Type: SectionGeneric, Label: label}
}
