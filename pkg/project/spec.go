package project

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

// SpecFile is the application spec the initializer reads from the tracking directory.
const SpecFile = "spec.txt"

//go:embed defaults/app_spec.txt
var defaultsFS embed.FS

// DefaultSpec returns the embedded application spec used when none is given.
func DefaultSpec() ([]byte, error) {
	data, err := defaultsFS.ReadFile("defaults/app_spec.txt")
	if err != nil {
		return nil, fmt.Errorf("read embedded spec: %w", err)
	}
	return data, nil
}

// CopySpec places the application spec into metadataDir unless one is already there.
// an empty src copies the embedded default. returns true when the file was written.
func CopySpec(metadataDir, src string) (bool, error) {
	dst := filepath.Join(metadataDir, SpecFile)
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}

	var data []byte
	var err error
	if src == "" {
		data, err = DefaultSpec()
	} else {
		data, err = os.ReadFile(src) //nolint:gosec // user-provided spec path
	}
	if err != nil {
		return false, fmt.Errorf("read spec: %w", err)
	}

	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return false, fmt.Errorf("write spec: %w", err)
	}
	return true, nil
}
