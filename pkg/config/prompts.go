package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

// Prompt is a loaded prompt template. Model is set when the file's frontmatter names one.
type Prompt struct {
	Body  string
	Model string
}

// Prompts holds the prompt of every phase.
// Each prompt can be customized by placing <phase>.txt in a prompts directory.
type Prompts struct {
	Initializer Prompt
	Onboarding  Prompt
	Coding      Prompt
}

// ForPhase returns the prompt for p.
func (p Prompts) ForPhase(phase status.Phase) Prompt {
	switch phase {
	case status.PhaseInitializer:
		return p.Initializer
	case status.PhaseOnboarding:
		return p.Onboarding
	default:
		return p.Coding
	}
}

// promptLoader loads prompts with embedded filesystem fallback.
type promptLoader struct {
	embedFS embed.FS
}

func newPromptLoader(embedFS embed.FS) *promptLoader {
	return &promptLoader{embedFS: embedFS}
}

// Load loads all phase prompts with fallback chain: local → global → embedded.
// localDir can be empty to skip local lookup.
func (p *promptLoader) Load(localDir, globalDir string) (Prompts, error) {
	var prompts Prompts
	targets := []struct {
		phase status.Phase
		field *Prompt
	}{
		{status.PhaseInitializer, &prompts.Initializer},
		{status.PhaseOnboarding, &prompts.Onboarding},
		{status.PhaseCoding, &prompts.Coding},
	}
	for _, t := range targets {
		prompt, err := p.load(localDir, globalDir, t.phase.String()+".txt")
		if err != nil {
			return Prompts{}, fmt.Errorf("load %s prompt: %w", t.phase, err)
		}
		if prompt.Body == "" {
			return Prompts{}, fmt.Errorf("%s prompt is empty", t.phase)
		}
		*t.field = prompt
	}
	return prompts, nil
}

// load returns the first non-empty prompt found locally, globally, then embedded.
func (p *promptLoader) load(localDir, globalDir, filename string) (Prompt, error) {
	var candidates []string
	if localDir != "" {
		candidates = append(candidates, filepath.Join(localDir, filename))
	}
	if globalDir != "" {
		candidates = append(candidates, filepath.Join(globalDir, filename))
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Prompt{}, fmt.Errorf("read prompt file %s: %w", path, err)
		}
		if prompt, err := parsePrompt(data); err != nil || prompt.Body != "" {
			if err != nil {
				return Prompt{}, fmt.Errorf("prompt file %s: %w", path, err)
			}
			return prompt, nil
		}
	}

	data, err := p.embedFS.ReadFile("defaults/prompts/" + filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Prompt{}, nil
		}
		return Prompt{}, fmt.Errorf("read embedded prompt %s: %w", filename, err)
	}
	return parsePrompt(data)
}

// parsePrompt strips comment lines and splits off the frontmatter.
func parsePrompt(data []byte) (Prompt, error) {
	content := strings.TrimSpace(stripComments(string(data)))
	fm, body, err := parseFrontmatter(content)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Body: strings.TrimSpace(body), Model: fm.Model}, nil
}

// stripComments removes lines starting with # (comment lines) from content.
// empty lines are preserved, inline comments are not supported.
// handles both Unix (LF) and Windows (CRLF) line endings.
func stripComments(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := make([]string, 0, strings.Count(content, "\n")+1)
	for line := range strings.SplitSeq(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
