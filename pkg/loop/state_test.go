package loop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NomadicDaddy/aidd-c/pkg/session"
	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

var (
	success = session.Continue("done")
	failed  = session.Failure(errors.New("transport broke"))
	stalled = session.IdleTimeout(3 * time.Minute)
)

// feed runs one full cycle per outcome starting from s and returns the states after each evaluation.
func feed(t *testing.T, s State, lim Limits, outcomes ...session.Outcome) []State {
	t.Helper()
	var states []State
	for _, o := range outcomes {
		require.Equal(t, StageRunSession, s.Stage, "session expected at iteration %d", s.Iteration)
		s = Transition(s, SessionDone(o), lim)
		require.Equal(t, StageEvaluateOutcome, s.Stage)
		s = Transition(s, Evaluate(), lim)
		states = append(states, s)
		if s.Terminated() {
			return states
		}
		require.Equal(t, StageDelay, s.Stage)
		s = Transition(s, DelayDone(), lim)
		if s.Terminated() {
			states = append(states, s)
			return states
		}
	}
	return states
}

func started(lim Limits, progress, content bool) State {
	return Transition(State{}, Start(progress, content), lim)
}

func TestTransition_Start(t *testing.T) {
	tests := []struct {
		progress, content bool
		want              status.Phase
	}{
		{false, false, status.PhaseInitializer},
		{false, true, status.PhaseOnboarding},
		{true, true, status.PhaseCoding},
		{true, false, status.PhaseCoding},
	}
	for _, tc := range tests {
		s := started(Limits{}, tc.progress, tc.content)
		assert.Equal(t, tc.want, s.Phase)
		assert.Equal(t, StageRunSession, s.Stage)
		assert.Equal(t, 1, s.Iteration)
		assert.Zero(t, s.ConsecutiveFailures)
	}
}

func TestTransition_FailureCounterTrace(t *testing.T) {
	states := feed(t, started(Limits{}, true, false), Limits{}, success, failed, failed, success, failed)
	require.Len(t, states, 5)

	trace := make([]int, 0, len(states))
	for _, s := range states {
		trace = append(trace, s.ConsecutiveFailures)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1}, trace)
}

func TestTransition_FailureThreshold(t *testing.T) {
	lim := Limits{FailureThreshold: 3}

	t.Run("three in a row terminates on the third", func(t *testing.T) {
		states := feed(t, started(lim, true, false), lim, failed, stalled, failed, success)
		require.Len(t, states, 3)
		last := states[2]
		assert.True(t, last.Terminated())
		assert.Equal(t, ReasonFailureThreshold, last.Reason)
		assert.Equal(t, 3, last.ConsecutiveFailures)
		assert.Equal(t, 3, last.Iteration)
		assert.False(t, states[1].Terminated())
	})

	t.Run("continue in between resets", func(t *testing.T) {
		states := feed(t, started(lim, true, false), lim, failed, failed, success, failed, failed, success)
		require.Len(t, states, 6)
		for _, s := range states {
			assert.False(t, s.Terminated())
		}
	})

	t.Run("threshold of one", func(t *testing.T) {
		one := Limits{FailureThreshold: 1}
		states := feed(t, started(one, true, false), one, stalled)
		require.Len(t, states, 1)
		assert.Equal(t, ReasonFailureThreshold, states[0].Reason)
	})
}

func TestTransition_NoThresholdNeverStops(t *testing.T) {
	outcomes := make([]session.Outcome, 100)
	for i := range outcomes {
		outcomes[i] = failed
	}
	states := feed(t, started(Limits{}, true, false), Limits{}, outcomes...)
	require.Len(t, states, 100)
	last := states[99]
	assert.False(t, last.Terminated())
	assert.Equal(t, 100, last.ConsecutiveFailures)
}

func TestTransition_MaxIterations(t *testing.T) {
	lim := Limits{MaxIterations: 5}
	s := started(lim, true, false)
	sessions := 0
	for !s.Terminated() {
		require.Equal(t, StageRunSession, s.Stage)
		sessions++
		require.LessOrEqual(t, s.Iteration, 5)
		s = Transition(s, SessionDone(success), lim)
		s = Transition(s, Evaluate(), lim)
		s = Transition(s, DelayDone(), lim)
	}
	assert.Equal(t, 5, sessions)
	assert.Equal(t, ReasonMaxIterations, s.Reason)
	assert.Equal(t, 6, s.Iteration)
}

func TestTransition_PhaseAdvancesRegardlessOfOutcome(t *testing.T) {
	for _, o := range []session.Outcome{success, failed, stalled} {
		for _, start := range []struct{ progress, content bool }{{false, false}, {false, true}} {
			s := started(Limits{}, start.progress, start.content)
			require.NotEqual(t, status.PhaseCoding, s.Phase)
			states := feed(t, s, Limits{}, o)
			assert.Equal(t, status.PhaseCoding, states[0].Phase, "outcome %s", o.Kind)
		}
	}

	states := feed(t, started(Limits{}, true, false), Limits{}, success, failed)
	for _, s := range states {
		assert.Equal(t, status.PhaseCoding, s.Phase)
	}
}

func TestTransition_Interrupt(t *testing.T) {
	lim := Limits{FailureThreshold: 2}
	running := started(lim, true, false)
	s := Transition(running, Interrupt(), lim)
	assert.True(t, s.Terminated())
	assert.Equal(t, ReasonExternalInterrupt, s.Reason)
	assert.Zero(t, s.ConsecutiveFailures)

	delaying := Transition(Transition(running, SessionDone(failed), lim), Evaluate(), lim)
	require.Equal(t, StageDelay, delaying.Stage)
	s = Transition(delaying, Interrupt(), lim)
	assert.Equal(t, ReasonExternalInterrupt, s.Reason)
	assert.Equal(t, 1, s.ConsecutiveFailures, "interrupt does not touch the counter")
}

func TestTransition_TerminatedIsFinal(t *testing.T) {
	s := Transition(started(Limits{}, true, false), Interrupt(), Limits{})
	for _, in := range []Input{Start(false, false), SessionDone(failed), Evaluate(), DelayDone(), Interrupt()} {
		assert.Equal(t, s, Transition(s, in, Limits{}))
	}
}

func TestTransition_IgnoresOutOfStageInput(t *testing.T) {
	s := started(Limits{}, true, false)
	assert.Equal(t, s, Transition(s, DelayDone(), Limits{}))
	assert.Equal(t, s, Transition(s, Evaluate(), Limits{}))
	assert.Equal(t, s, Transition(s, Start(false, false), Limits{}))

	evaluating := Transition(s, SessionDone(failed), Limits{})
	assert.Equal(t, evaluating, Transition(evaluating, SessionDone(success), Limits{}))
	assert.Equal(t, 0, evaluating.ConsecutiveFailures, "counter only changes on evaluation")
}

func TestStageAndReasonStrings(t *testing.T) {
	assert.Equal(t, "run-session", StageRunSession.String())
	assert.Equal(t, "terminated", StageTerminated.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
	assert.Equal(t, "max iterations reached", ReasonMaxIterations.String())
	assert.Equal(t, "interrupted", ReasonExternalInterrupt.String())
	assert.Equal(t, "reason(9)", Reason(9).String())
}
