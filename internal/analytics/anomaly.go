package analytics

import (
	"fmt"
	"math"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const anomalyThreshold = 2.0

// AnomalyScore compares a recent case count against a location baseline.
// |z| > 2 is anomalous; the score maps z in [-3, 3] onto [0, 100].
func AnomalyScore(recentCount int, b models.Baseline) models.AnomalyResult {
	stdDev := b.StdDev
	if stdDev <= 0 {
		stdDev = 1
	}

	z := (float64(recentCount) - b.Mean) / stdDev
	res := models.AnomalyResult{
		ZScore:    round2(z),
		Score:     round2(clamp((z+3)*16.67, 0, 100)),
		IsAnomaly: math.Abs(z) > anomalyThreshold,
	}

	if !res.IsAnomaly {
		res.Explanation = "within normal range"
		return res
	}

	direction := "above"
	if z < 0 {
		direction = "below"
	}
	if b.Mean <= 0 {
		res.Explanation = fmt.Sprintf("%d cases %s a baseline of zero", recentCount, direction)
		return res
	}
	pct := math.Abs(float64(recentCount)-b.Mean) / b.Mean * 100
	res.Explanation = fmt.Sprintf("%d cases is %.0f%% %s the baseline mean of %.1f", recentCount, pct, direction, b.Mean)
	return res
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
