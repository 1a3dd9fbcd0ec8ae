package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const (
	predictionWindow   = 14 * day
	poorSanitationMin  = 3
	pointsPerSymptom   = 10
	maxSymptomOverlap  = 100
	diarrheaSymptom    = "diarrhea"
	diarrheaMinReports = 5
)

var (
	choleraKeywords   = []string{"diarrhea", "vomiting", "dehydration"}
	typhoidKeywords   = []string{"fever", "abdominal", "fatigue"}
	hepatitisKeywords = []string{"fever", "fatigue", "abdominal"}
)

// PredictDiseases scores candidate waterborne diseases over the last two
// weeks of reports. Results are ordered by probability, highest first; an
// empty result means nothing crossed its trigger.
func PredictDiseases(health, water, environmental []models.Report, now time.Time) []models.DiseasePrediction {
	recentHealth := within(health, now, predictionWindow, models.KindHealth)
	recentWater := within(water, now, predictionWindow, models.KindWater)
	recentEnv := within(environmental, now, predictionWindow, models.KindEnvironmental)

	n := float64(len(recentHealth))
	peak := func(days int) time.Time { return now.AddDate(0, 0, days) }

	var out []models.DiseasePrediction

	contaminated := false
	for _, r := range recentWater {
		if r.Water.Contaminated() {
			contaminated = true
			break
		}
	}
	if score := symptomOverlap(recentHealth, choleraKeywords); score > 30 || contaminated {
		p := score
		confidence := 70.0
		if contaminated {
			p += 30
			confidence = 85
		}
		p = math.Min(95, p)
		out = append(out, models.DiseasePrediction{
			Disease:       "Cholera",
			Probability:   p,
			CasesExpected: int(math.Round(n * p / 100 * 1.5)),
			PeakDate:      peak(5),
			Confidence:    confidence,
		})
	}

	if score := symptomOverlap(recentHealth, typhoidKeywords); score > 25 {
		out = append(out, models.DiseasePrediction{
			Disease:       "Typhoid",
			Probability:   math.Min(90, score+20),
			CasesExpected: int(math.Round(n * 0.6)),
			PeakDate:      peak(7),
			Confidence:    75,
		})
	}

	if count := reportsWithSymptom(recentHealth, diarrheaSymptom); count > diarrheaMinReports {
		out = append(out, models.DiseasePrediction{
			Disease:       "Acute Diarrhea",
			Probability:   math.Min(95, float64(count*8)),
			CasesExpected: int(math.Round(float64(count) * 1.3)),
			PeakDate:      peak(3),
			Confidence:    80,
		})
	}

	if score := symptomOverlap(recentHealth, hepatitisKeywords); score > 20 && poorSanitation(recentEnv) {
		out = append(out, models.DiseasePrediction{
			Disease:       "Hepatitis A",
			Probability:   math.Min(85, score+25),
			CasesExpected: int(math.Round(n * 0.4)),
			PeakDate:      peak(10),
			Confidence:    70,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}

// symptomOverlap awards ten points for every symptom token, across all
// reports, that contains one of the keywords. Capped at 100.
func symptomOverlap(health []models.Report, keywords []string) float64 {
	points := 0
	for _, r := range health {
		for _, s := range r.Health.Symptoms {
			s = strings.ToLower(s)
			for _, kw := range keywords {
				if strings.Contains(s, kw) {
					points += pointsPerSymptom
				}
			}
		}
	}
	return math.Min(maxSymptomOverlap, float64(points))
}

func reportsWithSymptom(health []models.Report, keyword string) int {
	n := 0
	for _, r := range health {
		for _, s := range r.Health.Symptoms {
			if strings.Contains(strings.ToLower(s), keyword) {
				n++
				break
			}
		}
	}
	return n
}

func poorSanitation(environmental []models.Report) bool {
	for _, r := range environmental {
		if len(r.Environmental.SanitationIssues) >= poorSanitationMin {
			return true
		}
	}
	return false
}

// within keeps reports of the given kind, with details present, created no
// more than window before now.
func within(reports []models.Report, now time.Time, window time.Duration, kind models.ReportKind) []models.Report {
	var out []models.Report
	for _, r := range reports {
		if r.Kind != kind || !hasDetails(r) {
			continue
		}
		if now.Sub(r.CreatedAt) <= window {
			out = append(out, r)
		}
	}
	return out
}

func hasDetails(r models.Report) bool {
	switch r.Kind {
	case models.KindHealth:
		return r.Health != nil
	case models.KindWater:
		return r.Water != nil
	case models.KindEnvironmental:
		return r.Environmental != nil
	}
	return false
}
