package dedup

import (
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

// Window is the maximum timestamp distance at which two same-place reports
// of the same kind are considered one.
const Window = time.Hour

// IsDuplicate reports whether candidate duplicates any of existing: same kind,
// same district and village (exact, case-sensitive), and created less than
// Window apart.
func IsDuplicate(candidate *models.Report, existing []models.Report) bool {
	return FindDuplicate(candidate, existing) != nil
}

// FindDuplicate returns the first record candidate duplicates, or nil.
func FindDuplicate(candidate *models.Report, existing []models.Report) *models.Report {
	for i := range existing {
		e := &existing[i]
		if e.ID != "" && e.ID == candidate.ID {
			continue
		}
		if e.Kind != candidate.Kind {
			continue
		}
		if e.Location.District != candidate.Location.District || e.Location.Village != candidate.Location.Village {
			continue
		}
		if absDuration(e.CreatedAt.Sub(candidate.CreatedAt)) < Window {
			return e
		}
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
