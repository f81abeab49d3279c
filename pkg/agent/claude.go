package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxLineSize bounds a single stream-json line; tool results with file contents can be large.
const maxLineSize = 16 * 1024 * 1024

//go:generate moq -out mocks/command_runner.go -pkg mocks -skip-ensure -fmt goimports . CommandRunner

// CommandRunner starts a command and returns its combined output and a wait function.
// wait must be safe to call more than once.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout io.Reader, wait func() error, err error)
}

// ClaudeDialer opens connections backed by the claude CLI in stream-json mode.
type ClaudeDialer struct {
	Command       string   // claude binary, defaults to "claude"
	Args          []string // base arguments, defaults to DefaultClaudeArgs
	Dir           string   // working directory of the agent (the project)
	ErrorPatterns []string // output substrings that fail the session
	Debug         bool     // report undecodable lines through DebugHandler
	DebugHandler  func(format string, args ...any)
	runner        CommandRunner // for testing, nil uses the process group runner
}

// DefaultClaudeArgs are the arguments used when ClaudeDialer.Args is empty.
var DefaultClaudeArgs = []string{"--dangerously-skip-permissions", "--output-format", "stream-json", "--verbose"}

// SetRunner replaces the command runner, used by tests.
func (d *ClaudeDialer) SetRunner(r CommandRunner) {
	d.runner = r
}

// Dial prepares a new connection. the process is started on Submit,
// each connection gets its own session id so no conversation state leaks between iterations.
func (d *ClaudeDialer) Dial(ctx context.Context, model string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	command := d.Command
	if command == "" {
		command = "claude"
	}
	args := d.Args
	if len(args) == 0 {
		args = DefaultClaudeArgs
	}
	runner := d.runner
	if runner == nil {
		runner = &groupRunner{}
	}

	return &claudeConn{
		dialer:    d,
		command:   command,
		args:      append([]string(nil), args...),
		model:     model,
		sessionID: uuid.NewString(),
		runner:    runner,
	}, nil
}

// claudeConn runs one claude process for one prompt.
type claudeConn struct {
	dialer    *ClaudeDialer
	command   string
	args      []string
	model     string
	sessionID string
	runner    CommandRunner

	mu      sync.Mutex
	cancel  context.CancelFunc
	wait    func() error
	scanner *bufio.Scanner
	pending []Event
	closed  bool
	procCtx context.Context
}

// SessionID returns the id passed to claude with --session-id.
func (c *claudeConn) SessionID() string {
	return c.sessionID
}

// Submit starts the claude process with the prompt.
func (c *claudeConn) Submit(ctx context.Context, prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.scanner != nil {
		return ErrAlreadySubmitted
	}

	args := append([]string(nil), c.args...)
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	args = append(args, "--session-id", c.sessionID, "-p", prompt)

	procCtx, cancel := context.WithCancel(ctx)
	stdout, wait, err := c.runner.Run(procCtx, c.dialer.Dir, c.command, args...)
	if err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", c.command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	c.procCtx = procCtx
	c.cancel = cancel
	c.wait = wait
	c.scanner = scanner
	return nil
}

// Next returns the next decoded event. it blocks on the process output;
// Close unblocks a pending Next by terminating the process.
func (c *claudeConn) Next(ctx context.Context) (Event, error) {
	if c.scanner == nil {
		return Event{}, ErrNotSubmitted
	}
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		if len(c.pending) > 0 {
			ev := c.pending[0]
			c.pending = c.pending[1:]
			return ev, nil
		}
		if !c.scanner.Scan() {
			return Event{}, c.finish(ctx)
		}

		events, err := decodeLine(c.scanner.Bytes())
		if err != nil {
			return Event{}, err
		}
		for _, ev := range events {
			if ev.Kind != EventText {
				continue
			}
			if p := matchErrorPattern(ev.Text, c.dialer.ErrorPatterns); p != "" {
				return Event{}, &PatternMatchError{Pattern: p, HelpCmd: c.command + " /usage"}
			}
		}
		if len(events) == 0 && c.dialer.Debug && c.dialer.DebugHandler != nil {
			c.dialer.DebugHandler("[debug] skipped line: %s", truncate(c.scanner.Text(), 200))
		}
		c.pending = append(c.pending, events...)
	}
}

// finish resolves the end of output into io.EOF or the failure that caused it.
func (c *claudeConn) finish(ctx context.Context) error {
	scanErr := c.scanner.Err()
	waitErr := c.wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.procCtx.Err() != nil {
		return ErrClosed
	}
	if scanErr != nil {
		return fmt.Errorf("stream read: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("%s exited with error: %w", c.command, waitErr)
	}
	return io.EOF
}

// Close terminates the process, if any, and waits for it.
func (c *claudeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	_ = c.wait() // exit status after a forced stop is not actionable
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseArgs splits a configured argument string into CLI arguments.
func ParseArgs(s string) []string {
	return strings.Fields(s)
}
