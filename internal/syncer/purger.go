package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mr1hm/go-health-surveillance/internal/metrics"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
)

// Purger deletes records older than the retention window on a cron schedule.
// The sync queue is left alone; queued records only leave it by delivery or
// attempt exhaustion.
type Purger struct {
	records  repository.RecordRepository
	window   time.Duration
	schedule string
	metrics  *metrics.Collector
	now      func() time.Time

	cron *cron.Cron
}

func NewPurger(records repository.RecordRepository, window time.Duration, schedule string) *Purger {
	return &Purger{
		records:  records,
		window:   window,
		schedule: schedule,
		now:      time.Now,
	}
}

func (p *Purger) WithMetrics(c *metrics.Collector) *Purger {
	p.metrics = c
	return p
}

func (p *Purger) WithClock(now func() time.Time) *Purger {
	p.now = now
	return p
}

// PurgeOnce removes every record created before now minus the window.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.window)
	n, err := p.records.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging records before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	p.metrics.RecordPurged(n)
	if n > 0 {
		slog.Info("purged expired records", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (p *Purger) Start(ctx context.Context) error {
	p.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := p.cron.AddFunc(p.schedule, func() {
		if _, err := p.PurgeOnce(ctx); err != nil {
			slog.Error("scheduled purge failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling purge %q: %w", p.schedule, err)
	}
	p.cron.Start()
	slog.Info("retention purge scheduled", "schedule", p.schedule, "window", p.window)
	return nil
}

// Stop waits for a running purge to finish.
func (p *Purger) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}
