// Package status defines shared execution-model types for aidd-c:
// the phase a session runs in, how it is chosen, and the section headers the loop prints.
package status

// Phase is the role a session plays in the project's lifecycle.
type Phase string

// Phase constants, also used as color keys by the progress logger.
const (
	PhaseInitializer Phase = "initializer" // fresh empty project, bootstrap the tracking files
	PhaseOnboarding  Phase = "onboarding"  // existing codebase without tracking files
	PhaseCoding      Phase = "coding"      // incremental work against the progress ledger
)

// Phases lists all phases in lifecycle order.
var Phases = []Phase{PhaseInitializer, PhaseOnboarding, PhaseCoding}

// String returns the phase name.
func (p Phase) String() string { return string(p) }

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseInitializer, PhaseOnboarding, PhaseCoding:
		return true
	}
	return false
}

// SelectPhase picks the phase for a session. prior progress always wins,
// otherwise a directory with real content is onboarded and an empty one initialized.
func SelectPhase(hasPriorProgress, hasExistingContent bool) Phase {
	switch {
	case hasPriorProgress:
		return PhaseCoding
	case hasExistingContent:
		return PhaseOnboarding
	default:
		return PhaseInitializer
	}
}

// Next returns the phase of the session following one run in p.
// initializer and onboarding happen once, everything after is coding.
func (Phase) Next() Phase {
	return PhaseCoding
}
