package validator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DiseaseDefinition is a simplified epidemiological case definition: a report
// matches when every keyword appears in its symptoms and severity is at least
// MinSeverity.
type DiseaseDefinition struct {
	Disease     string   `yaml:"disease"`
	Keywords    []string `yaml:"keywords"`
	MinSeverity int      `yaml:"minSeverity"`
}

var DefaultDiseaseDefinitions = []DiseaseDefinition{
	{Disease: "Cholera", Keywords: []string{"diarrhea", "vomiting"}, MinSeverity: 3},
	{Disease: "Typhoid", Keywords: []string{"fever", "abdominal"}, MinSeverity: 2},
	{Disease: "Acute Diarrhea", Keywords: []string{"diarrhea"}, MinSeverity: 1},
	{Disease: "Hepatitis A", Keywords: []string{"fever", "jaundice"}, MinSeverity: 2},
	{Disease: "Dysentery", Keywords: []string{"diarrhea", "blood"}, MinSeverity: 2},
}

type diseaseFile struct {
	Definitions []DiseaseDefinition `yaml:"definitions"`
}

// LoadDiseaseDefinitions reads a YAML table of case definitions. An empty
// path yields the built-in table.
func LoadDiseaseDefinitions(path string) ([]DiseaseDefinition, error) {
	if path == "" {
		return DefaultDiseaseDefinitions, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading disease definitions: %w", err)
	}

	var f diseaseFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("error decoding disease definitions: %w", err)
	}
	if len(f.Definitions) == 0 {
		return nil, fmt.Errorf("disease definitions file %s has no definitions", path)
	}

	for i, d := range f.Definitions {
		if d.Disease == "" || len(d.Keywords) == 0 {
			return nil, fmt.Errorf("definition %d needs a disease name and at least one keyword", i)
		}
		for j, k := range d.Keywords {
			f.Definitions[i].Keywords[j] = strings.ToLower(strings.TrimSpace(k))
		}
	}

	return f.Definitions, nil
}

// MatchDiseases returns the diseases whose case definition the symptoms and
// severity satisfy, in table order.
func MatchDiseases(defs []DiseaseDefinition, symptoms []string, severity int) []string {
	lowered := make([]string, len(symptoms))
	for i, s := range symptoms {
		lowered[i] = strings.ToLower(s)
	}

	var matched []string
	for _, d := range defs {
		if severity < d.MinSeverity {
			continue
		}
		if allKeywordsPresent(d.Keywords, lowered) {
			matched = append(matched, d.Disease)
		}
	}
	return matched
}

func allKeywordsPresent(keywords, symptoms []string) bool {
	for _, k := range keywords {
		found := false
		for _, s := range symptoms {
			if strings.Contains(s, strings.ToLower(k)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
