package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

type Filter struct {
	Limit         int
	Offset        int
	Kind          *models.ReportKind
	District      string
	Village       *string // nil matches any village, "" matches reports without one
	Since         *time.Time
	SyncStatus    *models.SyncStatus
	GeotaggedOnly bool
}

// RecordRepository is the durable collection of accepted records.
// Lookups of missing ids return (nil, nil).
type RecordRepository interface {
	PutRecord(ctx context.Context, r *models.Report) error
	GetRecord(ctx context.Context, id string) (*models.Report, error)
	DeleteRecord(ctx context.Context, id string) error
	ListRecords(ctx context.Context, opts Filter) ([]models.Report, error)
	UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus) error
	CountBySyncStatus(ctx context.Context, status models.SyncStatus) (int, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// QueuePass is the outcome of one sync pass, applied atomically. Items not
// named here, including ones enqueued while the pass ran, are left untouched.
type QueuePass struct {
	Synced    []string               // delivered: drop item, mark record synced
	Exhausted []string               // out of attempts: drop item, mark record failed
	Retry     []models.SyncQueueItem // failed this pass: persist attempts and last error, record back to offline
	Released  []string               // attempt abandoned: record back to offline, item untouched
}

func (p QueuePass) Empty() bool {
	return len(p.Synced) == 0 && len(p.Exhausted) == 0 && len(p.Retry) == 0 && len(p.Released) == 0
}

// QueueRepository is the durable list of records awaiting delivery, keyed by
// record id.
type QueueRepository interface {
	Enqueue(ctx context.Context, item *models.SyncQueueItem) error
	GetQueueItem(ctx context.Context, recordID string) (*models.SyncQueueItem, error)
	DeleteQueueItem(ctx context.Context, recordID string) error
	ListQueue(ctx context.Context) ([]models.SyncQueueItem, error)
	CountQueue(ctx context.Context, maxAttempts int) (int, error)
	ApplyQueuePass(ctx context.Context, pass QueuePass) error
}

type Store interface {
	RecordRepository
	QueueRepository
	Close() error
}
