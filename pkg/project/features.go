package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// FeatureListFile is the progress ledger maintained by the agent in the tracking directory.
const FeatureListFile = "feature_list.json"

const unknown = "unknown"

// display orders used by Summary; values outside these lists are not shown.
var (
	statusOrder   = []string{"open", "in_progress", "resolved", "deferred"}
	priorityOrder = []string{"critical", "high", "medium", "low"}
	areaOrder     = []string{"database", "backend", "frontend", "testing", "security", "devex", "docs"}
)

// Feature is one ledger entry. the agent owns the file, only the fields used for
// reporting are decoded.
type Feature struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Area        string   `json:"area"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Steps       []string `json:"steps"`
	Passes      bool     `json:"passes"`
}

// Count is a passing/total pair.
type Count struct {
	Passing int
	Total   int
}

// Percent returns the passing share in percent, 0 for an empty count.
func (c Count) Percent() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Passing) * 100 / float64(c.Total)
}

// Stats summarizes the ledger.
type Stats struct {
	Count
	ByArea     map[string]Count
	ByPriority map[string]Count
	ByStatus   map[string]int
	ByCategory map[string]int
}

// LoadFeatures reads the ledger from metadataDir. a missing file returns an error
// matching fs.ErrNotExist.
func LoadFeatures(metadataDir string) ([]Feature, error) {
	data, err := os.ReadFile(filepath.Join(metadataDir, FeatureListFile)) //nolint:gosec // path built from tracking dir
	if err != nil {
		return nil, fmt.Errorf("read feature list: %w", err)
	}
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("parse feature list: %w", err)
	}
	return features, nil
}

// CountPassing returns passing and total features. a missing or invalid ledger counts as 0/0.
func CountPassing(metadataDir string) (passing, total int) {
	features, err := LoadFeatures(metadataDir)
	if err != nil {
		return 0, 0
	}
	s := Breakdown(features)
	return s.Passing, s.Total
}

// Breakdown computes ledger statistics. empty fields are reported as "unknown".
func Breakdown(features []Feature) Stats {
	s := Stats{
		ByArea:     map[string]Count{},
		ByPriority: map[string]Count{},
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
	}
	for _, f := range features {
		s.Total++
		area, prio := orUnknown(f.Area), orUnknown(f.Priority)
		a, p := s.ByArea[area], s.ByPriority[prio]
		a.Total++
		p.Total++
		if f.Passes {
			s.Passing++
			a.Passing++
			p.Passing++
		}
		s.ByArea[area], s.ByPriority[prio] = a, p
		s.ByStatus[orUnknown(f.Status)]++
		s.ByCategory[orUnknown(f.Category)]++
	}
	return s
}

// Summary renders the ledger progress as markdown. status and priority lines are shown
// when every feature carries the field, the area table only when verbose.
func Summary(metadataDir string, verbose bool) string {
	features, err := LoadFeatures(metadataDir)
	if err != nil || len(features) == 0 {
		if err != nil && !isNotExist(err) {
			return fmt.Sprintf("**Progress:** %s is unreadable: %v\n", FeatureListFile, err)
		}
		return fmt.Sprintf("**Progress:** %s not yet created\n", FeatureListFile)
	}
	s := Breakdown(features)

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Progress:** %s/%s tests passing (%.1f%%)\n",
		humanize.Comma(int64(s.Passing)), humanize.Comma(int64(s.Total)), s.Percent())

	if _, ok := s.ByStatus[unknown]; !ok {
		var parts []string
		for _, st := range statusOrder {
			if n, ok := s.ByStatus[st]; ok {
				parts = append(parts, fmt.Sprintf("%d %s", n, st))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&sb, "\n**Status:** %s\n", strings.Join(parts, ", "))
		}
	}

	if _, ok := s.ByPriority[unknown]; !ok {
		var parts []string
		for _, pr := range priorityOrder {
			if c, ok := s.ByPriority[pr]; ok {
				parts = append(parts, fmt.Sprintf("%d/%d %s", c.Passing, c.Total, pr))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&sb, "\n**By priority:** %s\n", strings.Join(parts, ", "))
		}
	}

	if _, ok := s.ByArea[unknown]; verbose && !ok {
		sb.WriteString("\n| area | passing | total | % |\n|---|---:|---:|---:|\n")
		for _, area := range areaOrder {
			if c, ok := s.ByArea[area]; ok {
				fmt.Fprintf(&sb, "| %s | %d | %d | %.1f |\n", area, c.Passing, c.Total, c.Percent())
			}
		}
	}

	if verbose {
		var parts []string
		for _, name := range s.Categories() {
			parts = append(parts, fmt.Sprintf("%s (%d)", name, s.ByCategory[name]))
		}
		fmt.Fprintf(&sb, "\n**Categories:** %s\n", strings.Join(parts, ", "))
	}
	return sb.String()
}

// Categories returns the ledger's category names sorted by descending count.
func (s Stats) Categories() []string {
	names := make([]string, 0, len(s.ByCategory))
	for name := range s.ByCategory {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if d := s.ByCategory[b] - s.ByCategory[a]; d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return names
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
