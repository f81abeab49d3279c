package loop

import (
	"fmt"

	"github.com/NomadicDaddy/aidd-c/pkg/session"
	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

// Stage is the position of the loop in its cycle.
type Stage int

// loop stages. a cycle is RunSession -> EvaluateOutcome -> Delay, SelectPhase runs once.
const (
	StageSelectPhase Stage = iota
	StageRunSession
	StageEvaluateOutcome
	StageDelay
	StageTerminated
)

var stageNames = [...]string{"select-phase", "run-session", "evaluate-outcome", "delay", "terminated"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Reason tells why the loop terminated.
type Reason int

// termination reasons.
const (
	ReasonNone              Reason = iota // not terminated
	ReasonMaxIterations                   // iteration limit reached, a normal stop
	ReasonFailureThreshold                // too many consecutive failed sessions
	ReasonExternalInterrupt               // context canceled from outside
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMaxIterations:
		return "max iterations reached"
	case ReasonFailureThreshold:
		return "consecutive failure threshold reached"
	case ReasonExternalInterrupt:
		return "interrupted"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Limits bound the loop. zero values disable the limit.
type Limits struct {
	MaxIterations    int // sessions to run, 0 is unbounded
	FailureThreshold int // consecutive failures that stop the loop, 0 never stops
}

// State is the loop's complete state. it is a value; Transition returns a new one.
type State struct {
	Stage               Stage
	Phase               status.Phase
	Iteration           int // incremented at the top of every cycle
	ConsecutiveFailures int
	Reason              Reason
	Last                session.Outcome // outcome being evaluated or last evaluated
}

// Terminated reports whether the loop reached its final stage.
func (s State) Terminated() bool { return s.Stage == StageTerminated }

// InputKind enumerates the events that drive the machine.
type InputKind int

// input kinds.
const (
	InputStart       InputKind = iota // select the phase and begin the first cycle
	InputSessionDone                  // a session finished with an outcome
	InputEvaluate                     // apply the pending outcome
	InputDelayDone                    // the pause between sessions elapsed
	InputInterrupt                    // external cancellation
)

// Input is one event fed to Transition.
type Input struct {
	Kind               InputKind
	HasPriorProgress   bool            // InputStart
	HasExistingContent bool            // InputStart
	Outcome            session.Outcome // InputSessionDone
}

// Start begins the loop with the project signals used for phase selection.
func Start(hasPriorProgress, hasExistingContent bool) Input {
	return Input{Kind: InputStart, HasPriorProgress: hasPriorProgress, HasExistingContent: hasExistingContent}
}

// SessionDone reports the outcome of the current session.
func SessionDone(o session.Outcome) Input { return Input{Kind: InputSessionDone, Outcome: o} }

// Evaluate applies the pending outcome.
func Evaluate() Input { return Input{Kind: InputEvaluate} }

// DelayDone reports that the pause between sessions is over.
func DelayDone() Input { return Input{Kind: InputDelayDone} }

// Interrupt stops the loop from any non-final stage.
func Interrupt() Input { return Input{Kind: InputInterrupt} }

// Transition computes the state following s on input in. it is pure: the caller performs
// the work each stage stands for (run a session, wait) and reports back with the next input.
// an input that does not apply to the current stage leaves the state unchanged.
func Transition(s State, in Input, lim Limits) State {
	if s.Stage == StageTerminated {
		return s
	}
	if in.Kind == InputInterrupt {
		return terminate(s, ReasonExternalInterrupt)
	}

	switch {
	case s.Stage == StageSelectPhase && in.Kind == InputStart:
		s.Phase = status.SelectPhase(in.HasPriorProgress, in.HasExistingContent)
		return topOfCycle(s, lim)

	case s.Stage == StageRunSession && in.Kind == InputSessionDone:
		s.Last = in.Outcome
		s.Stage = StageEvaluateOutcome
		return s

	case s.Stage == StageEvaluateOutcome && in.Kind == InputEvaluate:
		// initializer and onboarding are single attempts, even a failed one moves on to coding
		s.Phase = s.Phase.Next()
		if !s.Last.Failed() {
			s.ConsecutiveFailures = 0
			s.Stage = StageDelay
			return s
		}
		s.ConsecutiveFailures++
		if lim.FailureThreshold > 0 && s.ConsecutiveFailures >= lim.FailureThreshold {
			return terminate(s, ReasonFailureThreshold)
		}
		s.Stage = StageDelay
		return s

	case s.Stage == StageDelay && in.Kind == InputDelayDone:
		return topOfCycle(s, lim)
	}
	return s
}

// topOfCycle counts the iteration and decides whether another session may run.
func topOfCycle(s State, lim Limits) State {
	s.Iteration++
	if lim.MaxIterations > 0 && s.Iteration > lim.MaxIterations {
		return terminate(s, ReasonMaxIterations)
	}
	s.Stage = StageRunSession
	return s
}

func terminate(s State, reason Reason) State {
	s.Stage = StageTerminated
	s.Reason = reason
	return s
}
