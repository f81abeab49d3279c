package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultsInstaller writes the embedded defaults into a config directory.
type defaultsInstaller struct {
	embedFS embed.FS
}

func newDefaultsInstaller(embedFS embed.FS) *defaultsInstaller {
	return &defaultsInstaller{embedFS: embedFS}
}

// Install creates the config directory and installs default files if they don't exist.
// the config file is created if missing; prompts are only installed when the prompts
// directory has no .txt files, so users can manage the full set themselves.
func (d *defaultsInstaller) Install(configDir string) error {
	promptsDir := filepath.Join(configDir, "prompts")
	if err := os.MkdirAll(promptsDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config")
	_, statErr := os.Stat(configPath)
	if statErr != nil && !os.IsNotExist(statErr) {
		return fmt.Errorf("check config file: %w", statErr)
	}
	if os.IsNotExist(statErr) {
		data, err := d.embedFS.ReadFile("defaults/config")
		if err != nil {
			return fmt.Errorf("read embedded config: %w", err)
		}
		if err := os.WriteFile(configPath, commentOut(data), 0o600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
	}

	if err := d.installPrompts(promptsDir); err != nil {
		return fmt.Errorf("install default prompts: %w", err)
	}
	return nil
}

// installPrompts copies embedded prompts unless destDir already has .txt files. never overwrites.
func (d *defaultsInstaller) installPrompts(destDir string) error {
	existing, err := os.ReadDir(destDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read prompts dir: %w", err)
	}
	for _, entry := range existing {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".txt") {
			return nil
		}
	}

	entries, err := d.embedFS.ReadDir("defaults/prompts")
	if err != nil {
		return fmt.Errorf("read embedded prompts dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := d.embedFS.ReadFile("defaults/prompts/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read embedded prompt %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(destDir, entry.Name()), data, 0o600); err != nil {
			return fmt.Errorf("write prompt file %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// commentOut turns every setting line into a comment.
func commentOut(data []byte) []byte {
	var sb strings.Builder
	for line := range strings.SplitSeq(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			sb.WriteString("# ")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return []byte(strings.TrimSuffix(sb.String(), "\n"))
}
