package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const PipelineVersion = "surveillance-heuristics/1.0"

const (
	weightClustering    = 0.4
	weightWater         = 0.3
	weightEnvironmental = 0.2
	weightAnomaly       = 0.1
)

const (
	factorClustering    = "Symptom clustering"
	factorWater         = "Water quality"
	factorEnvironmental = "Environmental conditions"
	factorAnomaly       = "Historical anomaly"
)

type factor struct {
	name        string
	weight      float64
	score       float64
	explanation string
}

// ClassifyRisk scores outbreak risk for loc from the supplied history. Health
// reports are matched on district and, when loc names one, village; water and
// environmental reports on district. The score is the weighted sum of all
// four factors; a factor with no readings scores 0.
func ClassifyRisk(loc models.Location, health, water, environmental []models.Report, now time.Time, baselines BaselineProvider) models.PredictionResult {
	localHealth := forLocation(health, loc, true)
	localWater := forLocation(water, loc, false)
	localEnv := forLocation(environmental, loc, false)

	factors := []factor{
		clusteringFactor(localHealth, now, baselines),
		waterFactor(within(localWater, now, recentWindow, models.KindWater)),
		environmentalFactor(within(localEnv, now, recentWindow, models.KindEnvironmental)),
		anomalyFactor(localHealth, loc, now, baselines),
	}

	var weighted float64
	for _, f := range factors {
		weighted += f.weight * f.score
	}
	score := round2(clamp(weighted, 0, 100))

	level := riskLevel(score)
	return models.PredictionResult{
		Location:          loc,
		RiskLevel:         level,
		PredictedDiseases: PredictDiseases(localHealth, localWater, localEnv, now),
		EarlyWarningDays:  earlyWarningDays(level.Level),
		RiskFactors:       riskFactors(factors, weighted),
		GeneratedAt:       now,
		PipelineVersion:   PipelineVersion,
	}
}

func clusteringFactor(health []models.Report, now time.Time, baselines BaselineProvider) factor {
	f := factor{name: factorClustering, weight: weightClustering}
	clusters := DetectClusters(health, now, baselines)
	if len(clusters) == 0 {
		f.explanation = "no symptom cluster detected"
		return f
	}

	c := clusters[0]
	f.score = clamp(float64(c.CaseCount)*10+c.GrowthRate, 0, 100)
	f.explanation = fmt.Sprintf("%d cases in %s sharing %s, growth %.0f%%",
		c.CaseCount, c.Village, strings.Join(c.DominantSymptoms, ", "), c.GrowthRate)
	return f
}

func waterFactor(recent []models.Report) factor {
	f := factor{name: factorWater, weight: weightWater}
	if len(recent) == 0 {
		f.explanation = "no water quality readings in the last 7 days"
		return f
	}

	var points float64
	var unsafePH, turbid, contaminated int
	for _, r := range recent {
		w := r.Water
		if w.PH != nil && (*w.PH < 6.5 || *w.PH > 8.5) {
			points += 20
			unsafePH++
		}
		if w.Turbidity != nil && *w.Turbidity > 5 {
			points += 15
			turbid++
		}
		switch w.BacterialContamination {
		case models.ContaminationHigh:
			points += 40
			contaminated++
		case models.ContaminationMedium:
			points += 25
			contaminated++
		}
	}
	f.score = math.Min(100, points)
	f.explanation = fmt.Sprintf("%d readings: %d contaminated, %d outside safe pH, %d turbid",
		len(recent), contaminated, unsafePH, turbid)
	return f
}

func environmentalFactor(recent []models.Report) factor {
	f := factor{name: factorEnvironmental, weight: weightEnvironmental}
	if len(recent) == 0 {
		f.explanation = "no environmental readings in the last 7 days"
		return f
	}

	var points float64
	var heavyRain, humid, issues int
	for _, r := range recent {
		e := r.Environmental
		if e.Rainfall != nil && *e.Rainfall > 100 {
			points += 20
			heavyRain++
		}
		if n := len(e.SanitationIssues); n > 0 {
			points += float64(10 * n)
			issues += n
		}
		if e.Humidity != nil && *e.Humidity > 80 {
			points += 15
			humid++
		}
	}
	f.score = math.Min(100, points)
	f.explanation = fmt.Sprintf("%d readings: %d heavy rainfall, %d high humidity, %d sanitation issues",
		len(recent), heavyRain, humid, issues)
	return f
}

func anomalyFactor(health []models.Report, loc models.Location, now time.Time, baselines BaselineProvider) factor {
	recent := len(within(health, now, recentWindow, models.KindHealth))
	a := AnomalyScore(recent, baselineFor(baselines, loc))
	return factor{
		name:        factorAnomaly,
		weight:      weightAnomaly,
		score:       a.Score,
		explanation: a.Explanation,
	}
}

func riskLevel(score float64) models.RiskLevel {
	switch {
	case score >= 90:
		return models.RiskLevel{Level: models.RiskCritical, Score: score, Confidence: 95}
	case score >= 75:
		return models.RiskLevel{Level: models.RiskHigh, Score: score, Confidence: 90}
	case score >= 50:
		return models.RiskLevel{Level: models.RiskMedium, Score: score, Confidence: 85}
	default:
		return models.RiskLevel{Level: models.RiskLow, Score: score, Confidence: 80}
	}
}

func earlyWarningDays(level models.RiskLevelName) int {
	switch level {
	case models.RiskCritical:
		return 3
	case models.RiskHigh:
		return 5
	default:
		return 7
	}
}

func riskFactors(factors []factor, weighted float64) []models.RiskFactor {
	out := make([]models.RiskFactor, 0, len(factors))
	for _, f := range factors {
		rf := models.RiskFactor{
			Factor:      f.name,
			Impact:      impact(f.score),
			Value:       round2(f.score),
			Explanation: f.explanation,
		}
		if weighted > 0 {
			rf.Contribution = round2(f.weight * f.score / weighted * 100)
		}
		out = append(out, rf)
	}
	return out
}

func impact(score float64) models.Impact {
	switch {
	case score >= 70:
		return models.ImpactHigh
	case score >= 40:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// forLocation keeps reports in loc's district, and in loc's village when
// matchVillage is set and loc names one.
func forLocation(reports []models.Report, loc models.Location, matchVillage bool) []models.Report {
	var out []models.Report
	for _, r := range reports {
		if !hasDetails(r) || r.Location.District != loc.District {
			continue
		}
		if matchVillage && loc.Village != "" && r.Location.Village != loc.Village {
			continue
		}
		out = append(out, r)
	}
	return out
}
