package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

// MemoryStore is a non-durable Store for tests and ephemeral runs. Values are
// copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Report
	queue   map[string]*models.SyncQueueItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.Report),
		queue:   make(map[string]*models.SyncQueueItem),
	}
}

func (m *MemoryStore) PutRecord(ctx context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r.Clone()
	return nil
}

func (m *MemoryStore) GetRecord(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (m *MemoryStore) DeleteRecord(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) ListRecords(ctx context.Context, opts Filter) ([]models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []models.Report{}
	for _, r := range m.records {
		if !matches(r, opts) {
			continue
		}
		results = append(results, *r.Clone())
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return []models.Report{}, nil
		}
		results = results[opts.Offset:]
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func matches(r *models.Report, opts Filter) bool {
	if opts.Kind != nil && r.Kind != *opts.Kind {
		return false
	}
	if opts.District != "" && r.Location.District != opts.District {
		return false
	}
	if opts.Village != nil && r.Location.Village != *opts.Village {
		return false
	}
	if opts.Since != nil && r.CreatedAt.Before(*opts.Since) {
		return false
	}
	if opts.SyncStatus != nil && r.SyncStatus != *opts.SyncStatus {
		return false
	}
	if opts.GeotaggedOnly && !r.Location.Geotagged {
		return false
	}
	return true
}

func (m *MemoryStore) UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setSyncStatus(id, status)
	return nil
}

func (m *MemoryStore) setSyncStatus(id string, status models.SyncStatus) {
	r, ok := m.records[id]
	if !ok {
		return
	}
	r.SyncStatus = status
	if status == models.SyncSynced {
		r.LifecycleStatus = models.LifecycleSynced
	}
}

func (m *MemoryStore) CountBySyncStatus(ctx context.Context, status models.SyncStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.records {
		if r.SyncStatus == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Enqueue(ctx context.Context, item *models.SyncQueueItem) error {
	if item.Report == nil || item.Report.ID == "" {
		return errors.New("queue item has no record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.queue[item.Report.ID]; exists {
		return nil
	}
	m.queue[item.Report.ID] = cloneItem(item)
	return nil
}

func (m *MemoryStore) GetQueueItem(ctx context.Context, recordID string) (*models.SyncQueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.queue[recordID]
	if !ok {
		return nil, nil
	}
	return cloneItem(item), nil
}

func (m *MemoryStore) DeleteQueueItem(ctx context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queue, recordID)
	return nil
}

func (m *MemoryStore) ListQueue(ctx context.Context) ([]models.SyncQueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]models.SyncQueueItem, 0, len(m.queue))
	for _, item := range m.queue {
		items = append(items, *cloneItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EnqueuedAt.Equal(items[j].EnqueuedAt) {
			return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
		}
		return items[i].RecordID() < items[j].RecordID()
	})
	return items, nil
}

func (m *MemoryStore) CountQueue(ctx context.Context, maxAttempts int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, item := range m.queue {
		if item.Attempts < maxAttempts {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ApplyQueuePass(ctx context.Context, pass QueuePass) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range pass.Synced {
		delete(m.queue, id)
		m.setSyncStatus(id, models.SyncSynced)
	}
	for _, id := range pass.Exhausted {
		delete(m.queue, id)
		m.setSyncStatus(id, models.SyncFailed)
	}
	for _, item := range pass.Retry {
		m.setSyncStatus(item.RecordID(), models.SyncOffline)
		cur, ok := m.queue[item.RecordID()]
		if !ok {
			continue
		}
		cur.Attempts = item.Attempts
		cur.LastAttemptAt = item.LastAttemptAt
		cur.LastError = item.LastError
	}
	for _, id := range pass.Released {
		m.setSyncStatus(id, models.SyncOffline)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneItem(item *models.SyncQueueItem) *models.SyncQueueItem {
	c := *item
	if item.Report != nil {
		c.Report = item.Report.Clone()
	}
	return &c
}
