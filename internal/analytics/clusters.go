package analytics

import (
	"sort"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const (
	day               = 24 * time.Hour
	recentWindow      = 7 * day
	priorWindow       = 14 * day
	dominantThreshold = 3
)

type clusterKey struct {
	district string
	village  string
}

// DetectClusters groups health reports by district and village and keeps the
// groups that share at least one symptom across three or more reports.
// Results are ordered by case count, largest first.
func DetectClusters(health []models.Report, now time.Time, baselines BaselineProvider) []models.SyndromicCluster {
	groups := make(map[clusterKey][]models.Report)
	var order []clusterKey
	for _, r := range health {
		if r.Health == nil {
			continue
		}
		k := clusterKey{district: r.Location.District, village: r.Location.VillageOrUnknown()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	clusters := make([]models.SyndromicCluster, 0, len(groups))
	for _, k := range order {
		reports := groups[k]
		dominant := dominantSymptoms(reports)
		if len(dominant) == 0 {
			continue
		}

		c := models.SyndromicCluster{
			District:         k.district,
			Village:          k.village,
			DominantSymptoms: dominant,
			CaseCount:        len(reports),
			FirstReportedAt:  reports[0].CreatedAt,
			LastReportedAt:   reports[0].CreatedAt,
		}

		var recentSeverity int
		for _, r := range reports {
			if r.CreatedAt.Before(c.FirstReportedAt) {
				c.FirstReportedAt = r.CreatedAt
			}
			if r.CreatedAt.After(c.LastReportedAt) {
				c.LastReportedAt = r.CreatedAt
			}
			switch age := now.Sub(r.CreatedAt); {
			case age <= recentWindow:
				c.RecentCount++
				recentSeverity += r.Health.Severity
			case age <= priorWindow:
				c.PriorCount++
			}
		}

		c.GrowthRate = round2(growthRate(c.RecentCount, c.PriorCount))
		if c.RecentCount > 0 {
			c.Severity = round2(float64(recentSeverity) / float64(c.RecentCount))
		}

		loc := models.Location{District: k.district, Village: k.village}
		c.IsAnomalous = AnomalyScore(c.RecentCount, baselineFor(baselines, loc)).IsAnomaly
		clusters = append(clusters, c)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].CaseCount > clusters[j].CaseCount
	})
	return clusters
}

func growthRate(recent, prior int) float64 {
	if prior == 0 {
		if recent > 0 {
			return 100
		}
		return 0
	}
	return float64(recent-prior) / float64(prior) * 100
}

// dominantSymptoms returns symptoms present in at least three reports,
// most frequent first.
func dominantSymptoms(reports []models.Report) []string {
	counts := make(map[string]int)
	for _, r := range reports {
		seen := make(map[string]bool, len(r.Health.Symptoms))
		for _, s := range r.Health.Symptoms {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			counts[s]++
		}
	}

	var dominant []string
	for s, n := range counts {
		if n >= dominantThreshold {
			dominant = append(dominant, s)
		}
	}
	sort.Slice(dominant, func(i, j int) bool {
		if counts[dominant[i]] != counts[dominant[j]] {
			return counts[dominant[i]] > counts[dominant[j]]
		}
		return dominant[i] < dominant[j]
	})
	return dominant
}

func baselineFor(p BaselineProvider, loc models.Location) models.Baseline {
	if p == nil {
		return DefaultBaseline
	}
	return p.Baseline(loc)
}
