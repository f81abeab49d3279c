package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter is the optional YAML header of a prompt file.
type frontmatter struct {
	Model string `yaml:"model"`
}

// parseFrontmatter splits an optional "---" delimited YAML header from the prompt body.
// content without a complete header is returned unchanged as the body.
func parseFrontmatter(content string) (frontmatter, string, error) {
	if !strings.HasPrefix(content, "---\n") {
		return frontmatter{}, content, nil
	}
	end := strings.Index(content[4:], "\n---")
	if end == -1 {
		return frontmatter{}, content, nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(content[4:4+end]), &fm); err != nil {
		return frontmatter{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	fm.Model = strings.TrimSpace(fm.Model)
	return fm, strings.TrimSpace(content[4+end+4:]), nil
}
