package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NomadicDaddy/aidd-c/pkg/agent/mocks"
)

// cannedRunner returns a runner mock producing output and then exiting with waitErr.
func cannedRunner(output string, waitErr error) *mocks.CommandRunnerMock {
	return &mocks.CommandRunnerMock{
		RunFunc: func(context.Context, string, string, ...string) (io.Reader, func() error, error) {
			return strings.NewReader(output), func() error { return waitErr }, nil
		},
	}
}

// blockingRunner keeps the output open until the process context is canceled.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, _, _ string, _ ...string) (io.Reader, func() error, error) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = pw.CloseWithError(io.EOF)
		close(done)
	}()
	var once sync.Once
	return pr, func() error {
		once.Do(func() { <-done })
		return errors.New("signal: terminated")
	}, nil
}

func dial(t *testing.T, d *ClaudeDialer, model string) Conn {
	t.Helper()
	conn, err := d.Dial(context.Background(), model)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func drain(t *testing.T, conn Conn) ([]Event, error) {
	t.Helper()
	var events []Event
	for {
		ev, err := conn.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestClaudeDialer_Submit_Args(t *testing.T) {
	runner := cannedRunner("", nil)
	d := &ClaudeDialer{Command: "/usr/bin/claude", Dir: "/tmp/project"}
	d.SetRunner(runner)

	conn := dial(t, d, "claude-haiku")
	require.NoError(t, conn.Submit(context.Background(), "do the thing"))

	require.Len(t, runner.RunCalls(), 1)
	call := runner.RunCalls()[0]
	assert.Equal(t, "/usr/bin/claude", call.Name)
	assert.Equal(t, "/tmp/project", call.Dir)
	require.GreaterOrEqual(t, len(call.Args), 8)
	assert.Equal(t, DefaultClaudeArgs, call.Args[:4])
	assert.Equal(t, []string{"--model", "claude-haiku"}, call.Args[4:6])
	assert.Equal(t, "--session-id", call.Args[6])
	assert.Equal(t, conn.(*claudeConn).SessionID(), call.Args[7])
	assert.Equal(t, []string{"-p", "do the thing"}, call.Args[8:])
}

func TestClaudeDialer_FreshSessionPerConn(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(cannedRunner("", nil))
	a := dial(t, d, "m").(*claudeConn)
	b := dial(t, d, "m").(*claudeConn)
	assert.NotEqual(t, a.SessionID(), b.SessionID())
	assert.Equal(t, "claude", a.command)
}

func TestClaudeDialer_Dial_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&ClaudeDialer{}).Dial(ctx, "m")
	require.ErrorIs(t, err, context.Canceled)
}

func TestClaudeConn_Stream(t *testing.T) {
	output := strings.Join([]string{
		`{"type":"system","subtype":"init"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Reading files. "},{"type":"tool_use","name":"Read","input":{"file_path": "main.go"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","content":"package main","is_error":false}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Done."}]}}`,
		`{"type":"result","subtype":"success","is_error":false,"result":"Done."}`,
	}, "\n")
	d := &ClaudeDialer{}
	d.SetRunner(cannedRunner(output, nil))

	conn := dial(t, d, "m")
	require.NoError(t, conn.Submit(context.Background(), "p"))
	events, err := drain(t, conn)
	require.NoError(t, err)

	assert.Equal(t, []Event{
		TextFragment("Reading files. "),
		ToolInvocation("Read", `{"file_path":"main.go"}`),
		ToolResult(ToolOK, "package main"),
		TextFragment("Done."),
	}, events)
}

func TestClaudeConn_NextBeforeSubmit(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(cannedRunner("", nil))
	conn := dial(t, d, "m")
	_, err := conn.Next(context.Background())
	require.ErrorIs(t, err, ErrNotSubmitted)
}

func TestClaudeConn_SubmitTwice(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(cannedRunner("", nil))
	conn := dial(t, d, "m")
	require.NoError(t, conn.Submit(context.Background(), "p"))
	require.ErrorIs(t, conn.Submit(context.Background(), "p"), ErrAlreadySubmitted)
}

func TestClaudeConn_SubmitAfterClose(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(cannedRunner("", nil))
	conn := dial(t, d, "m")
	require.NoError(t, conn.Close())
	require.ErrorIs(t, conn.Submit(context.Background(), "p"), ErrClosed)
	require.NoError(t, conn.Close(), "close is idempotent")
}

func TestClaudeConn_StartError(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(&mocks.CommandRunnerMock{
		RunFunc: func(context.Context, string, string, ...string) (io.Reader, func() error, error) {
			return nil, nil, errors.New("executable file not found")
		},
	})
	conn := dial(t, d, "m")
	err := conn.Submit(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestClaudeConn_ExitError(t *testing.T) {
	t.Run("no output fails", func(t *testing.T) {
		d := &ClaudeDialer{}
		d.SetRunner(cannedRunner("", errors.New("exit status 1")))
		conn := dial(t, d, "m")
		require.NoError(t, conn.Submit(context.Background(), "p"))
		_, err := drain(t, conn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "claude exited with error")
	})

	t.Run("output before exit status still fails", func(t *testing.T) {
		d := &ClaudeDialer{}
		d.SetRunner(cannedRunner(`{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}`,
			errors.New("exit status 1")))
		conn := dial(t, d, "m")
		require.NoError(t, conn.Submit(context.Background(), "p"))
		events, err := drain(t, conn)
		assert.Equal(t, []Event{TextFragment("partial")}, events)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "claude exited with error: exit status 1")
	})
}

func TestClaudeConn_ErrorPattern(t *testing.T) {
	d := &ClaudeDialer{ErrorPatterns: []string{"You've hit your limit"}}
	d.SetRunner(cannedRunner(strings.Join([]string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"working"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"you've HIT your limit, resets 5pm"}]}}`,
	}, "\n"), nil))

	conn := dial(t, d, "m")
	require.NoError(t, conn.Submit(context.Background(), "p"))
	events, err := drain(t, conn)
	assert.Equal(t, []Event{TextFragment("working")}, events)

	var patternErr *PatternMatchError
	require.ErrorAs(t, err, &patternErr)
	assert.Equal(t, "You've hit your limit", patternErr.Pattern)
	assert.Equal(t, "claude /usage", patternErr.HelpCmd)
}

func TestClaudeConn_ResultError(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(cannedRunner(`{"type":"result","subtype":"error_max_turns","is_error":true,"result":"max turns reached"}`, nil))
	conn := dial(t, d, "m")
	require.NoError(t, conn.Submit(context.Background(), "p"))
	_, err := drain(t, conn)

	var resErr *ResultError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "error_max_turns", resErr.Subtype)
	assert.Equal(t, "agent reported error (error_max_turns): max turns reached", err.Error())
}

func TestClaudeConn_CloseUnblocksNext(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(blockingRunner{})
	conn, err := d.Dial(context.Background(), "m")
	require.NoError(t, err)
	require.NoError(t, conn.Submit(context.Background(), "p"))

	errCh := make(chan error, 1)
	go func() {
		_, nextErr := conn.Next(context.Background())
		errCh <- nextErr
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case nextErr := <-errCh:
		require.ErrorIs(t, nextErr, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("next was not unblocked by close")
	}
}

func TestClaudeConn_ParentCanceled(t *testing.T) {
	d := &ClaudeDialer{}
	d.SetRunner(blockingRunner{})
	conn := dial(t, d, "m")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, conn.Submit(ctx, "p"))
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := conn.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []Event
		wantErr bool
	}{
		{name: "empty", line: "   ", want: nil},
		{name: "non json passes through", line: "Error: not logged in", want: []Event{TextFragment("Error: not logged in\n")}},
		{name: "system event ignored", line: `{"type":"system","subtype":"init","model":"x"}`, want: nil},
		{name: "text delta", line: `{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}`,
			want: []Event{TextFragment("hi")}},
		{name: "input json delta ignored", line: `{"type":"content_block_delta","delta":{"type":"input_json_delta"}}`, want: nil},
		{name: "tool use without input", line: `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash"}]}}`,
			want: []Event{ToolInvocation("Bash", "")}},
		{name: "tool result error", line: `{"type":"user","message":{"content":[{"type":"tool_result","content":"exit 2","is_error":true}]}}`,
			want: []Event{ToolResult(ToolError, "exit 2")}},
		{name: "tool result blocked", line: `{"type":"user","message":{"content":[{"type":"tool_result","content":"Command Blocked by hook","is_error":true}]}}`,
			want: []Event{ToolResult(ToolBlocked, "Command Blocked by hook")}},
		{name: "tool result with block list", line: `{"type":"user","message":{"content":[{"type":"tool_result","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]}}`,
			want: []Event{ToolResult(ToolOK, "a\nb")}},
		{name: "user string content ignored", line: `{"type":"user","message":{"content":"hello"}}`, want: nil},
		{name: "successful result ignored", line: `{"type":"result","subtype":"success","is_error":false,"result":"all good"}`, want: nil},
		{name: "failed result", line: `{"type":"result","subtype":"error_during_execution","is_error":true}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeLine([]byte(tc.line))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchErrorPattern(t *testing.T) {
	patterns := []string{"", "API Error:", "rate limit"}
	assert.Equal(t, "API Error:", matchErrorPattern("got API Error: 529 overloaded", patterns))
	assert.Equal(t, "rate limit", matchErrorPattern("Rate Limit exceeded", patterns))
	assert.Empty(t, matchErrorPattern("all fine", patterns))
	assert.Empty(t, matchErrorPattern("API Error:", nil))
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"--verbose", "--output-format", "stream-json"}, ParseArgs("  --verbose --output-format   stream-json "))
	assert.Empty(t, ParseArgs(""))
}
