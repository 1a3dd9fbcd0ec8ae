package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/broadcast"
	"github.com/mr1hm/go-health-surveillance/internal/config"
	"github.com/mr1hm/go-health-surveillance/internal/metrics"
	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
	"github.com/mr1hm/go-health-surveillance/internal/transport"
)

const (
	DefaultMaxAttempts     = 5
	defaultDeliveryTimeout = 10 * time.Second
	defaultInterval        = time.Minute
	defaultMaxBackoff      = 30 * time.Minute
)

var ErrOffline = errors.New("sync skipped: device offline")

// Syncer drains the sync queue. Passes are serialized; a pass only rewrites
// the queue items it attempted, so concurrent submissions are never lost.
type Syncer struct {
	store        repository.Store
	transport    transport.Transport
	broadcaster  *broadcast.Broadcaster
	metrics      *metrics.Collector
	connectivity *Connectivity

	maxAttempts     int
	deliveryTimeout time.Duration
	interval        time.Duration
	maxBackoff      time.Duration
	now             func() time.Time

	mu sync.Mutex
}

func NewSyncer(cfg *config.Config, store repository.Store, tr transport.Transport) *Syncer {
	s := &Syncer{
		store:           store,
		transport:       tr,
		maxAttempts:     DefaultMaxAttempts,
		deliveryTimeout: defaultDeliveryTimeout,
		interval:        defaultInterval,
		maxBackoff:      defaultMaxBackoff,
		now:             time.Now,
	}
	if cfg != nil {
		if cfg.Sync.MaxAttempts > 0 {
			s.maxAttempts = cfg.Sync.MaxAttempts
		}
		if cfg.Sync.DeliveryTimeout > 0 {
			s.deliveryTimeout = cfg.Sync.DeliveryTimeout
		}
		if cfg.Sync.Interval > 0 {
			s.interval = cfg.Sync.Interval
		}
		if cfg.Sync.MaxBackoff > 0 {
			s.maxBackoff = cfg.Sync.MaxBackoff
		}
	}
	return s
}

func (s *Syncer) WithBroadcaster(b *broadcast.Broadcaster) *Syncer {
	s.broadcaster = b
	return s
}

func (s *Syncer) WithMetrics(c *metrics.Collector) *Syncer {
	s.metrics = c
	return s
}

func (s *Syncer) WithConnectivity(c *Connectivity) *Syncer {
	s.connectivity = c
	return s
}

func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

func (s *Syncer) MaxAttempts() int {
	return s.maxAttempts
}

// ProcessSyncQueue runs one pass over the queue. Items already at the attempt
// cap are dropped and their records marked failed. Every other item gets one
// delivery attempt, with its record marked syncing until the pass is applied.
// If ctx is cancelled mid-pass, the attempt in flight is discarded and only
// completed attempts are written back.
func (s *Syncer) ProcessSyncQueue(ctx context.Context) (models.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connectivity != nil && !s.connectivity.Online() {
		return models.SyncResult{}, ErrOffline
	}

	start := time.Now()
	items, err := s.store.ListQueue(ctx)
	if err != nil {
		return models.SyncResult{}, fmt.Errorf("error listing sync queue: %w", err)
	}

	var (
		pass   repository.QueuePass
		result models.SyncResult
	)
	for _, item := range items {
		id := item.RecordID()
		if item.Attempts >= s.maxAttempts {
			pass.Exhausted = append(pass.Exhausted, id)
			result.Failed++
			slog.Warn("sync attempts exhausted, record kept locally", "id", id, "attempts", item.Attempts, "last_error", item.LastError)
			s.publish(models.Event{Type: models.EventSyncFailed, RecordID: id, Message: item.LastError})
			continue
		}
		if ctx.Err() != nil {
			break
		}

		if err := s.store.UpdateSyncStatus(ctx, id, models.SyncSyncing); err != nil {
			slog.Warn("error marking record syncing", "id", id, "error", err)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
		err := s.transport.Deliver(attemptCtx, item.Report)
		cancel()
		if err != nil && ctx.Err() != nil {
			// abandoned, not a completed attempt
			pass.Released = append(pass.Released, id)
			break
		}
		s.metrics.RecordDelivery(err == nil)

		if err == nil {
			pass.Synced = append(pass.Synced, id)
			result.Synced++
			s.publish(models.Event{Type: models.EventRecordSynced, RecordID: id})
			continue
		}

		item.Attempts++
		item.LastAttemptAt = s.now()
		item.LastError = err.Error()
		pass.Retry = append(pass.Retry, item)
		result.Failed++
		slog.Info("sync attempt failed", "id", id, "attempts", item.Attempts, "error", err)
	}

	if !pass.Empty() {
		if err := s.store.ApplyQueuePass(context.WithoutCancel(ctx), pass); err != nil {
			return models.SyncResult{}, fmt.Errorf("error applying sync pass: %w", err)
		}
	}

	s.metrics.RecordSyncPass(time.Since(start).Seconds())
	if pending, err := s.store.CountQueue(context.WithoutCancel(ctx), s.maxAttempts); err == nil {
		s.metrics.SetPendingSync(pending)
	}
	if len(items) > 0 {
		slog.Info("sync pass complete", "queued", len(items), "synced", result.Synced, "failed", result.Failed)
		s.publish(models.Event{Type: models.EventSyncPass, Payload: result})
	}
	return result, nil
}

// GetPendingSyncCount is the number of queued records that will still be
// retried.
func (s *Syncer) GetPendingSyncCount(ctx context.Context) (int, error) {
	n, err := s.store.CountQueue(ctx, s.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("error counting sync queue: %w", err)
	}
	return n, nil
}

// GetFailedSyncCount is the number of records whose delivery was abandoned.
func (s *Syncer) GetFailedSyncCount(ctx context.Context) (int, error) {
	n, err := s.store.CountBySyncStatus(ctx, models.SyncFailed)
	if err != nil {
		return 0, fmt.Errorf("error counting failed records: %w", err)
	}
	return n, nil
}

// Run processes the queue on a timer and whenever connectivity is restored.
// The timer interval doubles after each pass that leaves failures, up to the
// configured cap, and resets after a clean pass or a restore.
func (s *Syncer) Run(ctx context.Context) {
	var restored <-chan struct{}
	if s.connectivity != nil {
		restored = s.connectivity.Changes()
	}

	delay := s.interval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	slog.Info("sync worker started", "interval", s.interval, "max_backoff", s.maxBackoff)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sync worker stopped")
			return
		case <-restored:
			slog.Info("connectivity restored, syncing")
			delay = s.interval
		case <-timer.C:
		}

		res, err := s.ProcessSyncQueue(ctx)
		switch {
		case errors.Is(err, ErrOffline):
		case err != nil:
			slog.Error("sync pass failed", "error", err)
			delay = s.nextDelay(delay)
		case res.Failed > 0:
			delay = s.nextDelay(delay)
		default:
			delay = s.interval
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(delay)
	}
}

func (s *Syncer) nextDelay(cur time.Duration) time.Duration {
	next := cur * 2
	if next > s.maxBackoff {
		return s.maxBackoff
	}
	return next
}

func (s *Syncer) publish(e models.Event) {
	if s.broadcaster == nil {
		return
	}
	e.Timestamp = s.now()
	s.broadcaster.Publish(e)
}
