package config

import (
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

// ColorConfig holds output colors as "r,g,b" strings, ready for the progress logger.
type ColorConfig struct {
	Initializer string
	Onboarding  string
	Coding      string
	Warn        string
	Error       string
	Timestamp   string
	Info        string
}

// ForPhase returns the color of the given phase, Info for an unknown one.
func (c ColorConfig) ForPhase(p status.Phase) string {
	switch p {
	case status.PhaseInitializer:
		return c.Initializer
	case status.PhaseOnboarding:
		return c.Onboarding
	case status.PhaseCoding:
		return c.Coding
	default:
		return c.Info
	}
}

// colorLoader loads colors with embedded filesystem fallback.
type colorLoader struct {
	embedFS embed.FS
}

func newColorLoader(embedFS embed.FS) *colorLoader {
	return &colorLoader{embedFS: embedFS}
}

// Load loads colors from config files with fallback chain: local → global → embedded.
func (cl *colorLoader) Load(localConfigPath, globalConfigPath string) (ColorConfig, error) {
	data, err := cl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return ColorConfig{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	result, err := parseColors(data)
	if err != nil {
		return ColorConfig{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	for _, src := range []struct{ name, path string }{{"global", globalConfigPath}, {"local", localConfigPath}} {
		data, err := readConfigFile(src.path)
		if err != nil {
			return ColorConfig{}, fmt.Errorf("parse %s config: %w", src.name, err)
		}
		if data == nil {
			continue
		}
		colors, err := parseColors(data)
		if err != nil {
			return ColorConfig{}, fmt.Errorf("parse %s config: %w", src.name, err)
		}
		result.mergeFrom(&colors)
	}
	return result, nil
}

// parseColors parses hex color keys from INI data.
func parseColors(data []byte) (ColorConfig, error) {
	section, err := loadINI(data)
	if err != nil {
		return ColorConfig{}, err
	}

	var colors ColorConfig
	colorKeys := []struct {
		key   string
		field *string
	}{
		{"color_initializer", &colors.Initializer},
		{"color_onboarding", &colors.Onboarding},
		{"color_coding", &colors.Coding},
		{"color_warn", &colors.Warn},
		{"color_error", &colors.Error},
		{"color_timestamp", &colors.Timestamp},
		{"color_info", &colors.Info},
	}

	for _, ck := range colorKeys {
		key, err := section.GetKey(ck.key)
		if err != nil {
			continue
		}
		hex := strings.TrimSpace(key.String())
		if hex == "" {
			continue
		}
		r, g, b, err := parseHexColor(hex)
		if err != nil {
			return ColorConfig{}, fmt.Errorf("invalid %s: %w", ck.key, err)
		}
		*ck.field = fmt.Sprintf("%d,%d,%d", r, g, b)
	}
	return colors, nil
}

// parseHexColor parses a hex color string (e.g., "#ff0000") into RGB components.
func parseHexColor(hex string) (r, g, b int, err error) {
	if hex == "" || hex[0] != '#' {
		return 0, 0, 0, errors.New("hex color must start with #")
	}
	if len(hex) != 7 {
		return 0, 0, 0, errors.New("hex color must be 7 characters (e.g., #ff0000)")
	}
	val, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return int(val >> 16 & 0xFF), int(val >> 8 & 0xFF), int(val & 0xFF), nil
}

// mergeFrom merges non-empty color values from src into dst.
func (dst *ColorConfig) mergeFrom(src *ColorConfig) {
	mergeString(&dst.Initializer, src.Initializer)
	mergeString(&dst.Onboarding, src.Onboarding)
	mergeString(&dst.Coding, src.Coding)
	mergeString(&dst.Warn, src.Warn)
	mergeString(&dst.Error, src.Error)
	mergeString(&dst.Timestamp, src.Timestamp)
	mergeString(&dst.Info, src.Info)
}
