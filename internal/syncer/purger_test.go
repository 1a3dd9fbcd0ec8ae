package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
)

func TestPurger_PurgeOnce(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	ctx := context.Background()

	queuedRecord(t, store, "old-queued", now.AddDate(0, 0, -45))
	for id, created := range map[string]time.Time{
		"old":    now.AddDate(0, 0, -31),
		"recent": now.AddDate(0, 0, -29),
	} {
		r := &models.Report{ID: id, Kind: models.KindWater, CreatedAt: created, SyncStatus: models.SyncSynced}
		if err := store.PutRecord(ctx, r); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}
	}

	p := NewPurger(store, 30*24*time.Hour, "@hourly").WithClock(func() time.Time { return now })
	n, err := p.PurgeOnce(ctx)
	if err != nil {
		t.Fatalf("PurgeOnce failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 purged records, got %d", n)
	}

	if r, _ := store.GetRecord(ctx, "recent"); r == nil {
		t.Error("record inside the window was purged")
	}
	if r, _ := store.GetRecord(ctx, "old"); r != nil {
		t.Error("expired record survived")
	}
	if item, _ := store.GetQueueItem(ctx, "old-queued"); item == nil {
		t.Error("queue must not be purged by age")
	}
}

func TestPurger_StartRejectsBadSchedule(t *testing.T) {
	p := NewPurger(repository.NewMemoryStore(), time.Hour, "not a schedule")
	if err := p.Start(context.Background()); err == nil {
		p.Stop()
		t.Fatal("expected schedule error")
	}
}

func TestPurger_StartStop(t *testing.T) {
	p := NewPurger(repository.NewMemoryStore(), time.Hour, "@every 1h")
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Stop()
}
