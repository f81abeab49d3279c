// Package agent defines the connection to an external coding agent and provides
// a claude CLI backed implementation that decodes its stream-json output into events.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Conn is a single-use connection to a coding agent.
// Submit sends the prompt; Next then yields the response events in arrival order and
// returns io.EOF after the last one. Close releases the connection and must be called
// on every path, including after a failed Submit.
// Only events returned by Next count as activity for an idle timeout: output lines that
// decode to no events are consumed inside the same Next call and do not reset it.
type Conn interface {
	Submit(ctx context.Context, prompt string) error
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Dialer opens a fresh connection configured for the given model.
type Dialer interface {
	Dial(ctx context.Context, model string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, model string) (Conn, error)

// Dial calls f(ctx, model).
func (f DialerFunc) Dial(ctx context.Context, model string) (Conn, error) {
	return f(ctx, model)
}

var (
	// ErrNotSubmitted is returned by Next when no prompt was submitted yet.
	ErrNotSubmitted = errors.New("prompt not submitted")
	// ErrAlreadySubmitted is returned by Submit on a connection that already has a prompt.
	ErrAlreadySubmitted = errors.New("prompt already submitted")
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("connection closed")
)

// PatternMatchError is returned when agent output contains a configured error pattern,
// typically a rate limit or API error message printed instead of a real response.
type PatternMatchError struct {
	Pattern string // the matched pattern
	HelpCmd string // command the user can run for more information
}

func (e *PatternMatchError) Error() string {
	return fmt.Sprintf("detected error pattern %q in agent output", e.Pattern)
}

// ResultError is returned when the agent reports a failed run in its final result event.
type ResultError struct {
	Subtype string
	Message string
}

func (e *ResultError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no details"
	}
	if e.Subtype != "" {
		return fmt.Sprintf("agent reported error (%s): %s", e.Subtype, msg)
	}
	return "agent reported error: " + msg
}

// matchErrorPattern returns the first pattern found in text, case-insensitive, or empty string.
func matchErrorPattern(text string, patterns []string) string {
	if text == "" || len(patterns) == 0 {
		return ""
	}
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}
