package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const (
	minSeverity = 1
	maxSeverity = 5

	whoPHMin          = 6.5
	whoPHMax          = 8.5
	maxTurbidityNTU   = 5.0
	minPlausibleTempC = -10.0
	maxPlausibleTempC = 60.0
)

type Validator struct {
	diseases []DiseaseDefinition
	now      func() time.Time
}

func New(diseases []DiseaseDefinition) *Validator {
	if len(diseases) == 0 {
		diseases = DefaultDiseaseDefinitions
	}
	return &Validator{
		diseases: diseases,
		now:      time.Now,
	}
}

// WithClock overrides the time source used for the future-timestamp check.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate dispatches on the report kind. On success the result carries a
// standardized copy of r; r itself is never modified.
func (v *Validator) Validate(r *models.Report) models.ValidationResult {
	switch r.Kind {
	case models.KindHealth:
		return v.ValidateHealth(r)
	case models.KindWater:
		return v.ValidateWater(r)
	case models.KindEnvironmental:
		return v.ValidateEnvironmental(r)
	default:
		return models.ValidationResult{
			Errors:   []string{fmt.Sprintf("unknown report kind: %q", r.Kind)},
			Warnings: []string{},
		}
	}
}

func (v *Validator) ValidateHealth(r *models.Report) models.ValidationResult {
	res := newResult()

	h := r.Health
	if h == nil {
		res.AddError("health details are required")
		return v.finish(r, res)
	}

	symptomCount := 0
	for _, s := range h.Symptoms {
		if strings.TrimSpace(s) != "" {
			symptomCount++
		}
	}
	if symptomCount == 0 {
		res.AddError("at least one symptom is required")
	}
	if h.Severity < minSeverity || h.Severity > maxSeverity {
		res.AddError(fmt.Sprintf("severity must be between %d and %d, got %d", minSeverity, maxSeverity, h.Severity))
	}
	if strings.TrimSpace(string(h.AgeGroup)) == "" {
		res.AddError("age group is required")
	}
	if strings.TrimSpace(h.DateOfSymptoms) == "" {
		res.AddError("date of symptoms is required")
	}
	v.checkTimestamp(r, &res)

	validateLocation(r.Location, &res)
	validateReporter(r.Reporter, &res)

	if matched := MatchDiseases(v.diseases, h.Symptoms, h.Severity); len(matched) > 0 {
		res.AddWarning("symptoms match case definition for: " + strings.Join(matched, ", "))
	}

	return v.finish(r, res)
}

func (v *Validator) ValidateWater(r *models.Report) models.ValidationResult {
	res := newResult()

	w := r.Water
	if w == nil {
		res.AddError("water quality details are required")
		return v.finish(r, res)
	}

	if w.SourceType == "" {
		res.AddError("source type is required")
	} else if !w.SourceType.Valid() {
		res.AddError(fmt.Sprintf("invalid source type: %q", w.SourceType))
	}

	if w.PH != nil {
		ph := *w.PH
		switch {
		case ph < 0 || ph > 14:
			res.AddError(fmt.Sprintf("pH %.2f out of range [0, 14]", ph))
		case ph < whoPHMin || ph > whoPHMax:
			res.AddWarning(fmt.Sprintf("pH %.2f outside WHO safe range (%.1f-%.1f)", ph, whoPHMin, whoPHMax))
		}
	}
	if w.Turbidity != nil && *w.Turbidity > maxTurbidityNTU {
		res.AddWarning(fmt.Sprintf("turbidity %.1f NTU exceeds WHO limit of %.0f NTU", *w.Turbidity, maxTurbidityNTU))
	}

	switch w.BacterialContamination {
	case "", models.ContaminationNone, models.ContaminationLow:
	case models.ContaminationMedium, models.ContaminationHigh:
		res.AddWarning(fmt.Sprintf("%s bacterial contamination detected, immediate action required", w.BacterialContamination))
	default:
		res.AddError(fmt.Sprintf("invalid bacterial contamination level: %q", w.BacterialContamination))
	}

	v.checkTimestamp(r, &res)
	validateLocation(r.Location, &res)
	validateReporter(r.Reporter, &res)

	return v.finish(r, res)
}

func (v *Validator) ValidateEnvironmental(r *models.Report) models.ValidationResult {
	res := newResult()

	e := r.Environmental
	if e == nil {
		res.AddError("environmental details are required")
		return v.finish(r, res)
	}

	if e.Humidity != nil && (*e.Humidity < 0 || *e.Humidity > 100) {
		res.AddError(fmt.Sprintf("humidity %.1f out of range [0, 100]", *e.Humidity))
	}
	if e.Temperature != nil && (*e.Temperature < minPlausibleTempC || *e.Temperature > maxPlausibleTempC) {
		res.AddWarning(fmt.Sprintf("temperature %.1f°C is implausible", *e.Temperature))
	}
	if e.Rainfall != nil && *e.Rainfall < 0 {
		res.AddWarning("negative rainfall reading")
	}

	v.checkTimestamp(r, &res)
	validateLocation(r.Location, &res)
	validateReporter(r.Reporter, &res)

	return v.finish(r, res)
}

func (v *Validator) checkTimestamp(r *models.Report, res *models.ValidationResult) {
	if r.CreatedAt.IsZero() {
		res.AddError("timestamp is required")
		return
	}
	if r.CreatedAt.After(v.now()) {
		res.AddError("timestamp cannot be in the future")
	}
}

func (v *Validator) finish(r *models.Report, res models.ValidationResult) models.ValidationResult {
	res.IsValid = len(res.Errors) == 0
	if res.IsValid {
		std := Standardize(r)
		std.Warnings = append([]string(nil), res.Warnings...)
		res.StandardizedRecord = std
	}
	return res
}

func newResult() models.ValidationResult {
	return models.ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}
}
