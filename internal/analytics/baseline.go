package analytics

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

// DefaultBaseline applies to locations without a configured history.
var DefaultBaseline = models.Baseline{Mean: 2, StdDev: 1}

// BaselineProvider supplies the historical weekly case baseline for a
// location. Implementations must be safe for concurrent use.
type BaselineProvider interface {
	Baseline(loc models.Location) models.Baseline
}

// StaticBaselines looks up a fixed table, most specific match first:
// district and village, then district alone, then Default.
type StaticBaselines struct {
	Default   models.Baseline
	locations map[string]models.Baseline
}

func NewStaticBaselines(def models.Baseline) *StaticBaselines {
	return &StaticBaselines{
		Default:   def,
		locations: make(map[string]models.Baseline),
	}
}

// Set registers a baseline. An empty village applies to the whole district.
func (s *StaticBaselines) Set(district, village string, b models.Baseline) {
	s.locations[baselineKey(district, village)] = b
}

func (s *StaticBaselines) Baseline(loc models.Location) models.Baseline {
	if s == nil {
		return DefaultBaseline
	}
	if loc.Village != "" {
		if b, ok := s.locations[baselineKey(loc.District, loc.Village)]; ok {
			return b
		}
	}
	if b, ok := s.locations[baselineKey(loc.District, "")]; ok {
		return b
	}
	return s.Default
}

func baselineKey(district, village string) string {
	return strings.ToLower(strings.TrimSpace(district)) + "/" + strings.ToLower(strings.TrimSpace(village))
}

type baselineFile struct {
	Default   *models.Baseline `yaml:"default"`
	Locations []struct {
		District string  `yaml:"district"`
		Village  string  `yaml:"village"`
		Mean     float64 `yaml:"mean"`
		StdDev   float64 `yaml:"stdDev"`
	} `yaml:"locations"`
}

// LoadBaselines reads a YAML baseline table. An empty path yields the
// defaults only.
func LoadBaselines(path string) (*StaticBaselines, error) {
	s := NewStaticBaselines(DefaultBaseline)
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading baselines file: %w", err)
	}

	var f baselineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing baselines file: %w", err)
	}

	if f.Default != nil {
		if f.Default.StdDev <= 0 {
			return nil, fmt.Errorf("default baseline stdDev must be positive, got %v", f.Default.StdDev)
		}
		s.Default = *f.Default
	}
	for i, loc := range f.Locations {
		if loc.District == "" {
			return nil, fmt.Errorf("baseline %d: district is required", i)
		}
		if loc.StdDev <= 0 {
			return nil, fmt.Errorf("baseline %d (%s): stdDev must be positive, got %v", i, loc.District, loc.StdDev)
		}
		s.Set(loc.District, loc.Village, models.Baseline{Mean: loc.Mean, StdDev: loc.StdDev})
	}
	return s, nil
}
