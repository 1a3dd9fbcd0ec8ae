package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-health-surveillance/internal/broadcast"
	"github.com/mr1hm/go-health-surveillance/internal/config"
	"github.com/mr1hm/go-health-surveillance/internal/metrics"
	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
	"github.com/mr1hm/go-health-surveillance/internal/transport"
	"github.com/mr1hm/go-health-surveillance/internal/validator"
	"github.com/mr1hm/go-health-surveillance/internal/worker"
)

// OnlineChecker reports the last known connectivity state. When offline,
// submissions skip the immediate delivery attempt and go straight to the queue.
type OnlineChecker interface {
	Online() bool
}

// Manager owns the submission path: validate, deduplicate, persist locally,
// then try one delivery.
type Manager struct {
	cfg         *config.Config
	store       repository.Store
	transport   transport.Transport
	validator   *validator.Validator
	broadcaster *broadcast.Broadcaster
	metrics     *metrics.Collector
	online      OnlineChecker
	pool        *worker.Pool[smsJob]
	now         func() time.Time
	newID       func() string

	// serializes the duplicate check with the write that follows it
	mu sync.Mutex
}

func NewManager(cfg *config.Config, store repository.Store, tr transport.Transport, v *validator.Validator) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		transport: tr,
		validator: v,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (m *Manager) WithBroadcaster(b *broadcast.Broadcaster) *Manager {
	m.broadcaster = b
	return m
}

func (m *Manager) WithMetrics(c *metrics.Collector) *Manager {
	m.metrics = c
	return m
}

func (m *Manager) WithConnectivity(o OnlineChecker) *Manager {
	m.online = o
	return m
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start launches the asynchronous SMS intake workers.
func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, job smsJob) error {
		res := m.Submit(ctx, job.report)
		if !res.Accepted {
			slog.Warn("sms report rejected", "from", job.from, "message", res.Message, "errors", res.Errors)
			return nil
		}
		slog.Info("sms report accepted", "id", res.RecordID, "from", job.from)
		return nil
	}

	m.pool = worker.NewPool("sms-intake", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.Start(ctx)
}

func (m *Manager) Stop() {
	if m.pool != nil {
		m.pool.Stop()
	}
	slog.Info("ingestion manager stopped")
}

func (m *Manager) deliveryTimeout() time.Duration {
	if m.cfg == nil || m.cfg.Sync.DeliveryTimeout <= 0 {
		return 10 * time.Second
	}
	return m.cfg.Sync.DeliveryTimeout
}

func (m *Manager) publish(e models.Event) {
	if m.broadcaster == nil {
		return
	}
	e.Timestamp = m.now()
	m.broadcaster.Publish(e)
}
