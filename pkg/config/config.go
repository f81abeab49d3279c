// Package config loads aidd-c settings, colors and phase prompts.
// every file follows the same fallback chain: <project>/.aidd → ~/.config/aidd-c → embedded defaults.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

//go:embed defaults/config defaults/prompts/*.txt
var defaultsFS embed.FS

// Config is the fully resolved configuration.
type Config struct {
	Values
	Colors  ColorConfig
	Prompts Prompts

	GlobalDir string // global config directory
	LocalDir  string // project config directory, empty when not used
}

// DefaultGlobalDir returns ~/.config/aidd-c.
func DefaultGlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "aidd-c"), nil
}

// Load resolves configuration from localDir (may be empty) and globalDir.
// each directory may hold a "config" file and a "prompts" directory.
func Load(localDir, globalDir string) (*Config, error) {
	localConfig, localPrompts := "", ""
	if localDir != "" {
		localConfig = filepath.Join(localDir, "config")
		localPrompts = filepath.Join(localDir, "prompts")
	}
	globalConfig, globalPrompts := "", ""
	if globalDir != "" {
		globalConfig = filepath.Join(globalDir, "config")
		globalPrompts = filepath.Join(globalDir, "prompts")
	}

	values, err := newValuesLoader(defaultsFS).Load(localConfig, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	colors, err := newColorLoader(defaultsFS).Load(localConfig, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("load colors: %w", err)
	}
	prompts, err := newPromptLoader(defaultsFS).Load(localPrompts, globalPrompts)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	return &Config{Values: values, Colors: colors, Prompts: prompts, GlobalDir: globalDir, LocalDir: localDir}, nil
}

// Install writes the default config and prompts into dir if they are not there yet.
func Install(dir string) error {
	return newDefaultsInstaller(defaultsFS).Install(dir)
}

// ModelFor resolves the model of a phase: prompt frontmatter, then the phase model
// (init_model for initializer and onboarding, code_model for coding), then model.
func (c *Config) ModelFor(phase status.Phase) string {
	if m := c.Prompts.ForPhase(phase).Model; m != "" {
		return m
	}
	phaseModel := c.CodeModel
	if phase != status.PhaseCoding {
		phaseModel = c.InitModel
	}
	if phaseModel != "" {
		return phaseModel
	}
	return c.Model
}

// IdleTimeout returns the per-item idle timeout, 0 when disabled.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// IterationDelay returns the pause between sessions.
func (c *Config) IterationDelay() time.Duration {
	return time.Duration(c.IterationDelayMs) * time.Millisecond
}
