package validator

import (
	"strings"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

// Standardize returns the canonical stored shape of r: trimmed strings,
// lowercased symptom tokens, recomputed geotag flag, UTC millisecond
// timestamp, and lifecycle at least validated. Applying it twice is a no-op.
func Standardize(r *models.Report) *models.Report {
	s := r.Clone()

	s.CreatedAt = CanonicalTime(s.CreatedAt)

	s.Location.Village = strings.TrimSpace(s.Location.Village)
	s.Location.Ward = strings.TrimSpace(s.Location.Ward)
	s.Location.District = strings.TrimSpace(s.Location.District)
	s.Location.State = strings.TrimSpace(s.Location.State)
	s.Location.Geotagged = s.Location.GPS != nil

	s.Reporter.ID = strings.TrimSpace(s.Reporter.ID)
	s.Reporter.Name = strings.TrimSpace(s.Reporter.Name)
	s.Reporter.Phone = strings.TrimSpace(s.Reporter.Phone)
	s.Reporter.Email = strings.TrimSpace(s.Reporter.Email)

	if h := s.Health; h != nil {
		symptoms := make([]string, 0, len(h.Symptoms))
		for _, sym := range h.Symptoms {
			if sym = strings.ToLower(strings.TrimSpace(sym)); sym != "" {
				symptoms = append(symptoms, sym)
			}
		}
		h.Symptoms = symptoms
		h.DateOfSymptoms = strings.TrimSpace(h.DateOfSymptoms)
		h.TimeOfSymptoms = strings.TrimSpace(h.TimeOfSymptoms)
		h.Notes = strings.TrimSpace(h.Notes)
	}

	if w := s.Water; w != nil {
		if w.BacterialContamination == "" {
			w.BacterialContamination = models.ContaminationNone
		}
		w.Appearance = strings.TrimSpace(w.Appearance)
		w.Odor = strings.TrimSpace(w.Odor)
	}

	if e := s.Environmental; e != nil {
		issues := make([]string, 0, len(e.SanitationIssues))
		for _, issue := range e.SanitationIssues {
			if issue = strings.TrimSpace(issue); issue != "" {
				issues = append(issues, issue)
			}
		}
		e.SanitationIssues = issues
	}

	if s.LifecycleStatus == "" || s.LifecycleStatus == models.LifecyclePending {
		s.LifecycleStatus = models.LifecycleValidated
	}

	return s
}

func CanonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
