// Package progress provides timestamped logging to a session log file and stdout with
// phase colors, and renders agent session events for the user.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/NomadicDaddy/aidd-c/pkg/agent"
	"github.com/NomadicDaddy/aidd-c/pkg/config"
	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

// LogFile is the name of the session log inside the tracking directory.
const LogFile = "aidd-progress.txt"

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// indent aligns continuation lines with text after "[YY-MM-DD HH:MM:SS] ".
const indent = "                    "

// Logger writes timestamped output to both the log file and stdout.
// it is safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	stdout    io.Writer
	startTime time.Time
	phase     status.Phase
	colors    colorSet
	midLine   bool // last streamed text did not end with a newline
}

// Config holds logger configuration.
type Config struct {
	Dir        string // directory of the log file, usually the tracking directory
	ProjectDir string
	Branch     string
	Phase      status.Phase
	Colors     config.ColorConfig
	NoColor    bool // disable color output (sets color.NoColor globally)
}

// colorSet holds the resolved colors.
type colorSet struct {
	phases    map[status.Phase]*color.Color
	warn      *color.Color
	err       *color.Color
	timestamp *color.Color
	info      *color.Color
}

// NewLogger creates a logger appending to the log file in cfg.Dir and writing to stdout.
// the file is appended to so the history of resumed runs is kept.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.NoColor {
		color.NoColor = true
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(cfg.Dir, LogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path from tracking dir
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{
		file:      f,
		stdout:    os.Stdout,
		startTime: time.Now(),
		phase:     cfg.Phase,
		colors:    newColorSet(cfg.Colors),
	}

	l.writeFile("# aidd-c session log\n")
	l.writeFile("Project: %s\n", cfg.ProjectDir)
	l.writeFile("Branch: %s\n", orDash(cfg.Branch))
	l.writeFile("Phase: %s\n", orDash(string(cfg.Phase)))
	l.writeFile("Started: %s\n", l.startTime.Format("2006-01-02 15:04:05"))
	l.writeFile("%s\n\n", strings.Repeat("-", 60))

	return l, nil
}

// newColorSet resolves "r,g,b" config strings, falling back to basic terminal colors.
func newColorSet(c config.ColorConfig) colorSet {
	fallbacks := map[status.Phase]color.Attribute{
		status.PhaseInitializer: color.FgCyan,
		status.PhaseOnboarding:  color.FgMagenta,
		status.PhaseCoding:      color.FgGreen,
	}
	phases := make(map[status.Phase]*color.Color, len(status.Phases))
	for _, p := range status.Phases {
		phases[p] = rgbOr(c.ForPhase(p), fallbacks[p])
	}
	return colorSet{
		phases:    phases,
		warn:      rgbOr(c.Warn, color.FgYellow),
		err:       rgbOr(c.Error, color.FgRed),
		timestamp: rgbOr(c.Timestamp, color.FgWhite),
		info:      rgbOr(c.Info, color.FgWhite),
	}
}

// rgbOr parses "r,g,b" into a 24-bit color or returns the fallback attribute.
func rgbOr(rgb string, fallback color.Attribute) *color.Color {
	parts := strings.Split(rgb, ",")
	if len(parts) != 3 {
		return color.New(fallback)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return color.New(fallback)
		}
		vals[i] = v
	}
	return color.RGB(vals[0], vals[1], vals[2])
}

// Path returns the log file path.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// SetPhase sets the current phase for color coding.
func (l *Logger) SetPhase(phase status.Phase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = phase
}

func (l *Logger) phaseColor() *color.Color {
	if c, ok := l.colors.phases[l.phase]; ok {
		return c
	}
	return l.colors.info
}

// Print writes a timestamped message to both file and stdout.
func (l *Logger) Print(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endLine()
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)
	l.writeFile("[%s] %s\n", timestamp, msg)
	l.writeStdout("%s %s\n", l.colors.timestamp.Sprintf("[%s]", timestamp), l.phaseColor().Sprint(msg))
}

// PrintRaw writes without timestamp.
func (l *Logger) PrintRaw(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeRaw(fmt.Sprintf(format, args...))
}

func (l *Logger) writeRaw(msg string) {
	l.writeFile("%s", msg)
	l.writeStdout("%s", msg)
	if msg != "" {
		l.midLine = !strings.HasSuffix(msg, "\n")
	}
}

// PrintSection writes a section header, e.g. "--- iteration 2: coding session ---".
func (l *Logger) PrintSection(section status.Section) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endLine()
	header := fmt.Sprintf("\n--- %s ---\n", section.Label)
	l.writeFile("%s", header)
	l.writeStdout("%s", l.phaseColor().Sprint(header))
}

// PrintAligned writes text with timestamp, handling multi-line content properly.
// the first line is timestamped, continuation lines are indented and long lines wrapped.
func (l *Logger) PrintAligned(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endLine()

	timestamp := time.Now().Format(timestampFormat)
	tsPrefix := l.colors.timestamp.Sprintf("[%s]", timestamp)
	width := terminalWidth()

	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		for wrapped := range strings.SplitSeq(wrapText(line, width), "\n") {
			lines = append(lines, wrapped)
		}
	}
	for i, line := range lines {
		switch {
		case line == "":
			l.writeFile("\n")
			l.writeStdout("\n")
		case i == 0:
			l.writeFile("[%s] %s\n", timestamp, line)
			l.writeStdout("%s %s\n", tsPrefix, l.phaseColor().Sprint(line))
		default:
			l.writeFile("%s%s\n", indent, line)
			l.writeStdout("%s%s\n", indent, l.phaseColor().Sprint(line))
		}
	}
}

// Error writes an error message.
func (l *Logger) Error(format string, args ...any) {
	l.printLevel("ERROR", l.colors.err, format, args...)
}

// Warn writes a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.printLevel("WARN", l.colors.warn, format, args...)
}

func (l *Logger) printLevel(level string, c *color.Color, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endLine()
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)
	l.writeFile("[%s] %s: %s\n", timestamp, level, msg)
	l.writeStdout("%s %s\n", l.colors.timestamp.Sprintf("[%s]", timestamp), c.Sprintf("%s: %s", level, msg))
}

// Text streams a fragment of agent response text as is.
func (l *Logger) Text(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeRaw(text)
}

// ToolUse shows a tool invocation with its (already shortened) input.
func (l *Logger) ToolUse(name, input string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endLine()
	l.writeFile("[Tool: %s]\n", name)
	l.writeStdout("%s\n", l.colors.info.Sprintf("[Tool: %s]", name))
	if input != "" {
		l.writeFile("   Input: %s\n", input)
		l.writeStdout("   Input: %s\n", input)
	}
}

// ToolResult shows the classification of a tool result. content is only shown for
// blocked and failed calls.
func (l *Logger) ToolResult(st agent.ToolStatus, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endLine()
	switch st {
	case agent.ToolBlocked:
		l.writeFile("   [BLOCKED] %s\n", content)
		l.writeStdout("   %s\n", l.colors.warn.Sprintf("[BLOCKED] %s", content))
	case agent.ToolError:
		l.writeFile("   [Error] %s\n", content)
		l.writeStdout("   %s\n", l.colors.err.Sprintf("[Error] %s", content))
	default:
		l.writeFile("   [Done]\n")
		l.writeStdout("   %s\n", l.colors.info.Sprint("[Done]"))
	}
}

// Elapsed returns formatted elapsed time since start.
func (l *Logger) Elapsed() string {
	return humanize.RelTime(l.startTime, time.Now(), "", "")
}

// Duration returns the time since the logger was created.
func (l *Logger) Duration() time.Duration {
	return time.Since(l.startTime)
}

// Close writes the footer and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.endLine()
	l.writeFile("\n%s\n", strings.Repeat("-", 60))
	l.writeFile("Completed: %s (%s)\n\n", time.Now().Format("2006-01-02 15:04:05"), l.Elapsed())

	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// endLine terminates streamed text that did not end with a newline.
func (l *Logger) endLine() {
	if l.midLine {
		l.midLine = false
		l.writeFile("\n")
		l.writeStdout("\n")
	}
}

func (l *Logger) writeFile(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	fmt.Fprintf(l.stdout, format, args...)
}

// terminalWidth returns the content width (terminal width minus the timestamp prefix),
// from COLUMNS or the terminal, 60 if both fail.
func terminalWidth() int {
	const minWidth = 40
	w := 0
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if v, err := strconv.Atoi(cols); err == nil && v > 0 {
			w = v
		}
	}
	if w == 0 {
		if v, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && v > 0 {
			w = v
		}
	}
	if w == 0 {
		w = 80
	}
	return max(w-len(indent), minWidth)
}

// wrapText wraps text to width, breaking on word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		switch {
		case i == 0:
			lineLen = len(word)
		case lineLen+1+len(word) <= width:
			result.WriteString(" ")
			lineLen += 1 + len(word)
		default:
			result.WriteString("\n")
			lineLen = len(word)
		}
		result.WriteString(word)
	}
	return result.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
