package progress

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NomadicDaddy/aidd-c/pkg/agent"
	"github.com/NomadicDaddy/aidd-c/pkg/config"
	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	l, err := NewLogger(Config{Dir: t.TempDir(), ProjectDir: "/work/app", Branch: "main",
		Phase: status.PhaseCoding, NoColor: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	var buf bytes.Buffer
	l.stdout = &buf
	return l, &buf
}

func fileContent(t *testing.T, l *Logger) string {
	t.Helper()
	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	return string(data)
}

func TestNewLogger_Header(t *testing.T) {
	l, _ := newTestLogger(t)
	assert.Equal(t, LogFile, l.Path()[len(l.Path())-len(LogFile):])

	content := fileContent(t, l)
	assert.Contains(t, content, "# aidd-c session log")
	assert.Contains(t, content, "Project: /work/app")
	assert.Contains(t, content, "Branch: main")
	assert.Contains(t, content, "Phase: coding")
}

func TestNewLogger_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for range 2 {
		l, err := NewLogger(Config{Dir: dir, NoColor: true})
		require.NoError(t, err)
		l.stdout = &bytes.Buffer{}
		l.Print("run")
		require.NoError(t, l.Close())
	}
	data, err := os.ReadFile(dir + "/" + LogFile)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "# aidd-c session log"))
	assert.Equal(t, 2, strings.Count(string(data), "Completed:"))
	assert.Contains(t, string(data), "Branch: -")
}

func TestLogger_PrintLevels(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Print("message %d", 42)
	l.Warn("careful %s", "now")
	l.Error("broken")

	for _, out := range []string{buf.String(), fileContent(t, l)} {
		assert.Contains(t, out, "] message 42\n")
		assert.Contains(t, out, "] WARN: careful now\n")
		assert.Contains(t, out, "] ERROR: broken\n")
	}
}

func TestLogger_PrintSection(t *testing.T) {
	l, buf := newTestLogger(t)
	l.PrintSection(status.NewSessionSection(2, status.PhaseCoding))
	assert.Contains(t, buf.String(), "--- iteration 2: coding session ---")
	assert.Contains(t, fileContent(t, l), "--- iteration 2: coding session ---")
}

func TestLogger_SessionDisplay(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Text("Let me look")
	l.Text(" at the files.")
	l.ToolUse("Read", `{"file_path":"main.go"}`)
	l.ToolResult(agent.ToolOK, "package main")
	l.ToolUse("Bash", "")
	l.ToolResult(agent.ToolBlocked, "rm -rf blocked by hook")
	l.ToolResult(agent.ToolError, "exit status 1")
	l.Text("Done.\n")
	l.Print("after")

	want := "Let me look at the files.\n" +
		"[Tool: Read]\n   Input: {\"file_path\":\"main.go\"}\n   [Done]\n" +
		"[Tool: Bash]\n" +
		"   [BLOCKED] rm -rf blocked by hook\n" +
		"   [Error] exit status 1\n" +
		"Done.\n"
	assert.True(t, strings.HasPrefix(buf.String(), want), "got %q", buf.String())
	assert.NotContains(t, buf.String(), "package main", "ok results are not shown")
	assert.Contains(t, fileContent(t, l), want)
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	l, buf := newTestLogger(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Text(fmt.Sprintf("fragment %d", i))
			l.Print("message %d", i)
			l.ToolUse("Bash", "")
			l.Warn("warning %d", i)
		}()
	}
	wg.Wait()

	out := buf.String()
	for i := range 20 {
		assert.Contains(t, out, fmt.Sprintf("] message %d\n", i))
		assert.Contains(t, out, fmt.Sprintf("] WARN: warning %d\n", i))
	}
	assert.Equal(t, 20, strings.Count(out, "[Tool: Bash]\n"))
	assert.Equal(t, 20, strings.Count(fileContent(t, l), "[Tool: Bash]\n"))
}

func TestLogger_PrintAligned(t *testing.T) {
	t.Setenv("COLUMNS", "60")
	l, buf := newTestLogger(t)
	l.PrintAligned("first line\nsecond line\n\n")
	l.PrintAligned("")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "] first line")
	assert.Equal(t, indent+"second line", lines[1])
}

func TestLogger_SetPhase(t *testing.T) {
	l, _ := newTestLogger(t)
	l.SetPhase(status.PhaseInitializer)
	assert.Equal(t, status.PhaseInitializer, l.phase)
	assert.Same(t, l.colors.phases[status.PhaseInitializer], l.phaseColor())

	l.SetPhase("unknown")
	assert.Same(t, l.colors.info, l.phaseColor())
}

func TestLogger_CloseIdempotent(t *testing.T) {
	l, _ := newTestLogger(t)
	path := l.Path()
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Empty(t, l.Path())
	assert.FileExists(t, path)
	l.Print("after close goes to stdout only")
}

func TestLogger_Elapsed(t *testing.T) {
	l, _ := newTestLogger(t)
	assert.NotEmpty(t, l.Elapsed())
	assert.Positive(t, l.Duration())
}

func TestRgbOr(t *testing.T) {
	assert.NotNil(t, rgbOr("1,2,3", 0))
	set := newColorSet(config.ColorConfig{Coding: "0,255,0", Warn: "bad"})
	assert.NotNil(t, set.phases[status.PhaseCoding])
	assert.NotNil(t, set.warn)
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{text: "short", width: 20, want: "short"},
		{text: "one two three four", width: 9, want: "one two\nthree\nfour"},
		{text: "anything", width: 0, want: "anything"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, wrapText(tc.text, tc.width))
	}
}

func TestTerminalWidth(t *testing.T) {
	t.Setenv("COLUMNS", "120")
	assert.Equal(t, 100, terminalWidth())
	t.Setenv("COLUMNS", "30")
	assert.Equal(t, 40, terminalWidth())
}
