// Package render formats run summaries as markdown and renders them for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// defaultWrap is the word wrap width used when none is given.
const defaultWrap = 80

// Markdown renders markdown content for terminal display with auto-detected style.
// with noColor the content is returned unchanged. wrap <= 0 uses 80 columns.
func Markdown(content string, noColor bool, wrap int) (string, error) {
	if noColor {
		return content, nil
	}
	if wrap <= 0 {
		wrap = defaultWrap
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return result, nil
}

// Row is one key/value line of a summary table.
type Row struct {
	Key   string
	Value string
}

// Table builds a two-column markdown table. rows with an empty value are skipped,
// pipes in values are escaped.
func Table(rows ...Row) string {
	var sb strings.Builder
	sb.WriteString("| | |\n|---|---|\n")
	n := 0
	for _, r := range rows {
		if r.Value == "" {
			continue
		}
		fmt.Fprintf(&sb, "| **%s** | %s |\n", r.Key, strings.ReplaceAll(r.Value, "|", `\|`))
		n++
	}
	if n == 0 {
		return ""
	}
	return sb.String()
}

// Document joins a heading and markdown sections separated by blank lines.
func Document(heading string, sections ...string) string {
	parts := []string{"## " + heading}
	for _, s := range sections {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}
