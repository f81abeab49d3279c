// Package loop drives autonomous agent sessions until an iteration limit, a run of
// consecutive failures or an external interrupt stops it. the sequencing lives in the
// pure Transition function; Loop performs the work each stage stands for.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NomadicDaddy/aidd-c/pkg/agent"
	"github.com/NomadicDaddy/aidd-c/pkg/session"
	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

// DefaultDelay is the pause between sessions.
const DefaultDelay = 3 * time.Second

//go:generate moq -out mocks/session_runner.go -pkg mocks -skip-ensure -fmt goimports . SessionRunner
// SessionRunner runs one session on an open connection.
type SessionRunner interface {
	Run(ctx context.Context, conn agent.Conn, prompt string) session.Outcome
}

//go:generate moq -out mocks/logger.go -pkg mocks -skip-ensure -fmt goimports . Logger

// Logger provides logging functionality.
type Logger interface {
	SetPhase(phase status.Phase)
	Print(format string, args ...any)
	PrintSection(section status.Section)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the immutable loop settings.
type Config struct {
	Prompts map[status.Phase]string // prompt per phase, all phases required
	Models  map[status.Phase]string // model per phase, empty uses the agent default
	Limits  Limits
	Delay   time.Duration // pause between sessions, 0 for none
}

// Report summarizes a finished run.
type Report struct {
	Reason              Reason
	Iteration           int // value of the iteration counter at termination
	ConsecutiveFailures int
	Phase               status.Phase // phase the next session would have used
	Sessions            int          // sessions started, including an interrupted one
	Failures            int          // failed sessions over the whole run
	Last                session.Outcome
}

// Loop runs sessions against fresh agent connections.
type Loop struct {
	cfg    Config
	dialer agent.Dialer
	runner SessionRunner
	log    Logger

	onEvaluated func(State)
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a loop. every phase needs a prompt because the starting phase is
// only known once the project is probed.
func New(cfg Config, dialer agent.Dialer, runner SessionRunner, log Logger) (*Loop, error) {
	for _, p := range status.Phases {
		if cfg.Prompts[p] == "" {
			return nil, fmt.Errorf("missing %s prompt", p)
		}
	}
	for p := range cfg.Prompts {
		if !p.Valid() {
			return nil, fmt.Errorf("prompt for unknown phase %q", p)
		}
	}
	for p := range cfg.Models {
		if !p.Valid() {
			return nil, fmt.Errorf("model for unknown phase %q", p)
		}
	}
	if dialer == nil || runner == nil || log == nil {
		return nil, errors.New("dialer, session runner and logger are required")
	}
	return &Loop{cfg: cfg, dialer: dialer, runner: runner, log: log, sleep: sleepCtx}, nil
}

// OnEvaluated registers a callback invoked after each outcome is applied,
// with the state the loop moves on from. used to show progress between sessions.
func (l *Loop) OnEvaluated(fn func(State)) {
	l.onEvaluated = fn
}

// Run drives the loop until it terminates. hasPriorProgress and hasExistingContent
// select the starting phase. cancellation of ctx ends the loop with ReasonExternalInterrupt.
func (l *Loop) Run(ctx context.Context, hasPriorProgress, hasExistingContent bool) Report {
	var rep Report
	s := l.step(State{}, Start(hasPriorProgress, hasExistingContent))
	l.log.Print("starting in %s phase", s.Phase)

	for !s.Terminated() {
		switch s.Stage {
		case StageRunSession:
			if ctx.Err() != nil {
				s = l.step(s, Interrupt())
				continue
			}
			l.log.SetPhase(s.Phase)
			l.log.PrintSection(status.NewSessionSection(s.Iteration, s.Phase))
			rep.Sessions++
			out := l.runSession(ctx, s.Phase)
			if ctx.Err() != nil {
				s = l.step(s, Interrupt())
				continue
			}
			s = l.step(s, SessionDone(out))

		case StageEvaluateOutcome:
			if s.Last.Failed() {
				rep.Failures++
			}
			s = l.step(s, Evaluate())
			l.logOutcome(s)
			if l.onEvaluated != nil {
				l.onEvaluated(s)
			}

		case StageDelay:
			if err := l.sleep(ctx, l.cfg.Delay); err != nil {
				s = l.step(s, Interrupt())
				continue
			}
			s = l.step(s, DelayDone())

		default:
			// SelectPhase is left by Start; anything else is a programming error
			panic(fmt.Sprintf("loop: unexpected stage %s", s.Stage))
		}
	}

	l.logTermination(s)
	rep.Reason = s.Reason
	rep.Iteration = s.Iteration
	rep.ConsecutiveFailures = s.ConsecutiveFailures
	rep.Phase = s.Phase
	rep.Last = s.Last
	return rep
}

func (l *Loop) step(s State, in Input) State {
	return Transition(s, in, l.cfg.Limits)
}

// runSession dials a fresh connection for the phase and always closes it before returning.
func (l *Loop) runSession(ctx context.Context, phase status.Phase) session.Outcome {
	conn, err := l.dialer.Dial(ctx, l.cfg.Models[phase])
	if err != nil {
		return session.Failure(fmt.Errorf("connect to agent: %w", err))
	}
	defer func() {
		if err := conn.Close(); err != nil {
			l.log.Warn("close agent connection: %v", err)
		}
	}()
	return l.runner.Run(ctx, conn, l.cfg.Prompts[phase])
}

// logOutcome reports the outcome just applied to s.
func (l *Loop) logOutcome(s State) {
	failures := fmt.Sprintf("%d", s.ConsecutiveFailures)
	if l.cfg.Limits.FailureThreshold > 0 {
		failures += fmt.Sprintf("/%d", l.cfg.Limits.FailureThreshold)
	}

	switch s.Last.Kind {
	case session.OutcomeContinue:
		if !s.Terminated() {
			l.log.Print("agent will auto-continue in %s", l.cfg.Delay)
		}
		return
	case session.OutcomeIdleTimeout:
		l.log.Warn("session aborted: %s", s.Last.Message())
		l.log.Print("this usually means the agent got stuck or is waiting for something")
	default:
		l.log.Error("session failed: %s", s.Last.Message())
		var patternErr *agent.PatternMatchError
		if errors.As(s.Last.Err, &patternErr) && patternErr.HelpCmd != "" {
			l.log.Print("run '%s' for more information", patternErr.HelpCmd)
		}
	}
	l.log.Print("consecutive failures: %s", failures)
	if !s.Terminated() {
		l.log.Print("will retry with a fresh session...")
	}
}

func (l *Loop) logTermination(s State) {
	switch s.Reason {
	case ReasonMaxIterations:
		l.log.Print("reached max iterations (%d)", l.cfg.Limits.MaxIterations)
		l.log.Print("to continue, run again without --max-iterations")
	case ReasonFailureThreshold:
		l.log.Error("aborting: %d consecutive failures reached threshold (%d)",
			s.ConsecutiveFailures, l.cfg.Limits.FailureThreshold)
		l.log.Print("to continue, run again or increase --quit-on-abort")
	case ReasonExternalInterrupt:
		l.log.Warn("interrupted at iteration %d", s.Iteration)
	}
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
