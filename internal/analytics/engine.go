package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/broadcast"
	"github.com/mr1hm/go-health-surveillance/internal/metrics"
	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
)

// Engine binds the analytics functions to a clock and a baseline provider.
// It holds no report state and is safe for concurrent use.
type Engine struct {
	baselines   BaselineProvider
	broadcaster *broadcast.Broadcaster
	metrics     *metrics.Collector
	now         func() time.Time
}

func NewEngine(baselines BaselineProvider) *Engine {
	if baselines == nil {
		baselines = NewStaticBaselines(DefaultBaseline)
	}
	return &Engine{baselines: baselines, now: time.Now}
}

func (e *Engine) WithBroadcaster(b *broadcast.Broadcaster) *Engine {
	e.broadcaster = b
	return e
}

func (e *Engine) WithMetrics(c *metrics.Collector) *Engine {
	e.metrics = c
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// GenerateRiskAssessment classifies outbreak risk for loc. High and Critical
// results are announced to event subscribers.
func (e *Engine) GenerateRiskAssessment(loc models.Location, health, water, environmental []models.Report) models.PredictionResult {
	res := ClassifyRisk(loc, health, water, environmental, e.now(), e.baselines)
	e.metrics.RecordRiskAssessment(string(res.RiskLevel.Level))

	if e.broadcaster != nil && (res.RiskLevel.Level == models.RiskHigh || res.RiskLevel.Level == models.RiskCritical) {
		e.broadcaster.Publish(models.Event{
			Type:      models.EventRiskAssessment,
			District:  loc.District,
			Village:   loc.Village,
			Message:   fmt.Sprintf("%s outbreak risk (score %.1f)", res.RiskLevel.Level, res.RiskLevel.Score),
			Payload:   res,
			Timestamp: res.GeneratedAt,
		})
	}
	return res
}

func (e *Engine) GetActiveClusters(health []models.Report) []models.SyndromicCluster {
	return DetectClusters(health, e.now(), e.baselines)
}

func (e *Engine) GetForecast(reports []models.Report, days int) []models.TimeSeriesForecast {
	return Forecast(reports, days)
}

func (e *Engine) PredictDiseases(health, water, environmental []models.Report) []models.DiseasePrediction {
	return PredictDiseases(health, water, environmental, e.now())
}

func (e *Engine) Now() time.Time {
	return e.now()
}

// Snapshot is a point-in-time copy of stored reports split by kind.
type Snapshot struct {
	Health        []models.Report
	Water         []models.Report
	Environmental []models.Report
}

// LoadSnapshot reads reports created since the given time, optionally
// restricted to one district. The result is a copy; analytics run on it
// without holding any store lock.
func LoadSnapshot(ctx context.Context, records repository.RecordRepository, district string, since time.Time) (Snapshot, error) {
	all, err := records.ListRecords(ctx, repository.Filter{District: district, Since: &since})
	if err != nil {
		return Snapshot{}, fmt.Errorf("error loading analytics snapshot: %w", err)
	}

	var s Snapshot
	for _, r := range all {
		switch r.Kind {
		case models.KindHealth:
			s.Health = append(s.Health, r)
		case models.KindWater:
			s.Water = append(s.Water, r)
		case models.KindEnvironmental:
			s.Environmental = append(s.Environmental, r)
		}
	}
	return s, nil
}

// ForLocation narrows the snapshot the way risk assessment does: health
// reports by district and village, water and environmental by district.
func (s Snapshot) ForLocation(loc models.Location) Snapshot {
	return Snapshot{
		Health:        forLocation(s.Health, loc, true),
		Water:         forLocation(s.Water, loc, false),
		Environmental: forLocation(s.Environmental, loc, false),
	}
}
