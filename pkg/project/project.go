// Package project inspects and prepares the project directory the agent works in:
// the tracking directory, the progress ledger and the copied application spec.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MetadataDirNames lists tracking directory names in lookup order. the first is created by default.
var MetadataDirNames = []string{".aidd", ".autok", ".automaker"}

// ignoredEntries are never taken as evidence of an existing codebase.
var ignoredEntries = map[string]bool{
	".aidd": true, ".autok": true, ".automaker": true, ".git": true, ".DS_Store": true,
	"__pycache__": true, "node_modules": true, ".vscode": true, ".idea": true,
}

// FindMetadataDir returns the first existing tracking directory inside projectDir.
func FindMetadataDir(projectDir string) (string, bool) {
	for _, name := range MetadataDirNames {
		p := filepath.Join(projectDir, name)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// MetadataDir returns the tracking directory to use for projectDir, existing or not.
func MetadataDir(projectDir string) string {
	if p, ok := FindMetadataDir(projectDir); ok {
		return p
	}
	return filepath.Join(projectDir, MetadataDirNames[0])
}

// EnsureMetadataDir returns the existing tracking directory or creates the default one.
func EnsureMetadataDir(projectDir string) (string, error) {
	p := MetadataDir(projectDir)
	if err := os.MkdirAll(p, 0o750); err != nil {
		return "", fmt.Errorf("create metadata dir: %w", err)
	}
	return p, nil
}

// HasExistingContent reports whether dir contains anything besides tracking files,
// hidden entries and common tool artifacts. a missing or unreadable directory has no content.
func HasExistingContent(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name()
		if ignoredEntries[name] || strings.HasPrefix(name, ".") {
			continue
		}
		return true
	}
	return false
}

// HasPriorProgress reports whether the progress ledger exists in the tracking directory.
func HasPriorProgress(metadataDir string) bool {
	_, err := os.Stat(filepath.Join(metadataDir, FeatureListFile))
	return err == nil
}

// Probe gathers both phase selection inputs for projectDir.
func Probe(projectDir string) (hasPriorProgress, hasExistingContent bool) {
	return HasPriorProgress(MetadataDir(projectDir)), HasExistingContent(projectDir)
}

// isNotExist reports whether err is a missing file error.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
