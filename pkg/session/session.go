// Package session runs a single prompt/response exchange with a coding agent and
// reduces it to one Outcome. it never retries and never touches project state.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NomadicDaddy/aidd-c/pkg/agent"
	"github.com/NomadicDaddy/aidd-c/pkg/stream"
)

const (
	maxInputSummary  = 200 // tool input shown to the user
	maxResultSummary = 500 // tool result shown to the user
)

// Display receives session events in arrival order as they happen.
type Display interface {
	Text(text string)
	ToolUse(name, input string)
	ToolResult(status agent.ToolStatus, content string)
}

// OutcomeKind enumerates how a session ended.
type OutcomeKind int

// outcome kinds.
const (
	OutcomeContinue    OutcomeKind = iota // stream ended normally
	OutcomeIdleTimeout                    // no event within the idle window
	OutcomeError                          // any other failure
)

// String returns the outcome kind name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "continue"
	case OutcomeIdleTimeout:
		return "idle timeout"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of one session. only the fields of its Kind are set:
// Text for continue, Idle for idle timeout, Err for error.
type Outcome struct {
	Kind OutcomeKind
	Text string        // full response text
	Idle time.Duration // configured idle window that expired
	Err  error         // failure cause
}

// Continue creates a successful outcome.
func Continue(text string) Outcome { return Outcome{Kind: OutcomeContinue, Text: text} }

// IdleTimeout creates an idle timeout outcome.
func IdleTimeout(idle time.Duration) Outcome { return Outcome{Kind: OutcomeIdleTimeout, Idle: idle} }

// Failure creates an error outcome.
func Failure(err error) Outcome { return Outcome{Kind: OutcomeError, Err: err} }

// Failed reports whether the outcome counts as a failed session.
func (o Outcome) Failed() bool { return o.Kind != OutcomeContinue }

// Message describes the failure, empty for a successful outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeIdleTimeout:
		return (&stream.IdleTimeoutError{Idle: o.Idle}).Error()
	case OutcomeError:
		if o.Err == nil {
			return "unknown error"
		}
		return o.Err.Error()
	default:
		return ""
	}
}

// Runner executes sessions. the zero value runs without an idle timeout and discards events.
type Runner struct {
	Display     Display       // nil discards events
	IdleTimeout time.Duration // 0 disables the guard
}

// Run submits prompt on conn and consumes the response until it ends. it always returns
// exactly one outcome; the caller owns conn and must close it.
func (r *Runner) Run(ctx context.Context, conn agent.Conn, prompt string) Outcome {
	if err := conn.Submit(ctx, prompt); err != nil {
		return Failure(fmt.Errorf("submit prompt: %w", err))
	}

	display := r.Display
	if display == nil {
		display = nopDisplay{}
	}

	src := stream.WithIdleTimeout[agent.Event](stream.SourceFunc[agent.Event](conn.Next), r.IdleTimeout)
	var text strings.Builder
	for ev, err := range stream.All(ctx, src) {
		if err != nil {
			var timeout *stream.IdleTimeoutError
			if errors.As(err, &timeout) {
				return IdleTimeout(timeout.Idle)
			}
			return Failure(fmt.Errorf("read response: %w", err))
		}
		switch ev.Kind {
		case agent.EventText:
			text.WriteString(ev.Text)
			display.Text(ev.Text)
		case agent.EventToolUse:
			display.ToolUse(ev.Tool, Truncate(ev.Input, maxInputSummary))
		case agent.EventToolResult:
			display.ToolResult(ev.Status, Truncate(ev.Content, maxResultSummary))
		}
	}
	return Continue(text.String())
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

type nopDisplay struct{}

func (nopDisplay) Text(string)                         {}
func (nopDisplay) ToolUse(string, string)              {}
func (nopDisplay) ToolResult(agent.ToolStatus, string) {}
