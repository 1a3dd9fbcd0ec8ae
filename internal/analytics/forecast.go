package analytics

import (
	"math"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const (
	DefaultForecastDays = 7
	minHistoryDays      = 7
	trendWindow         = 7
)

// Forecast projects daily case counts forward. History is bucketed by UTC
// day from the first to the last report, missing days counting as zero.
// Fewer than seven days of history yields no forecast.
func Forecast(reports []models.Report, days int) []models.TimeSeriesForecast {
	if days <= 0 {
		days = DefaultForecastDays
	}

	series, lastDay := dailyCounts(reports)
	if len(series) < minHistoryDays {
		return nil
	}

	last := series[len(series)-1]
	recent := series[len(series)-trendWindow:]
	var trend float64
	if preceding := series[max(0, len(series)-2*trendWindow) : len(series)-trendWindow]; len(preceding) > 0 {
		trend = mean(recent) - mean(preceding)
	}
	seasonality := 0.1 * last
	margin := 1.96 * stdDev(series)

	out := make([]models.TimeSeriesForecast, 0, days)
	for i := 1; i <= days; i++ {
		predicted := last + trend*float64(i) + seasonality*math.Sin(float64(i)*math.Pi/7)
		predicted = math.Max(0, math.Round(predicted))
		out = append(out, models.TimeSeriesForecast{
			Date:           lastDay.AddDate(0, 0, i),
			PredictedCases: int(predicted),
			LowerBound:     int(math.Max(0, math.Round(predicted-margin))),
			UpperBound:     int(math.Round(predicted + margin)),
			Confidence:     math.Max(60, float64(95-5*i)),
		})
	}
	return out
}

func dailyCounts(reports []models.Report) ([]float64, time.Time) {
	if len(reports) == 0 {
		return nil, time.Time{}
	}

	counts := make(map[time.Time]int)
	var first, last time.Time
	for i, r := range reports {
		d := r.CreatedAt.UTC().Truncate(day)
		counts[d]++
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}

	n := int(last.Sub(first)/day) + 1
	series := make([]float64, n)
	for d, c := range counts {
		series[int(d.Sub(first)/day)] = float64(c)
	}
	return series, last
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
