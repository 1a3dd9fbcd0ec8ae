package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
	"github.com/mr1hm/go-health-surveillance/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errUnreachable = errors.New("endpoint unreachable")

func queuedRecord(t *testing.T, store repository.Store, id string, enqueuedAt time.Time) {
	t.Helper()
	r := &models.Report{
		ID:              id,
		Kind:            models.KindHealth,
		CreatedAt:       enqueuedAt,
		Location:        models.Location{Village: "Kamalabari", District: "Majuli", State: "Assam"},
		Reporter:        models.Reporter{Type: models.ReporterASHA},
		LifecycleStatus: models.LifecycleProcessed,
		SyncStatus:      models.SyncOffline,
		Health:          &models.HealthDetails{Symptoms: []string{"fever"}, Severity: 2, AgeGroup: models.AgeAdult},
	}
	ctx := context.Background()
	if err := store.PutRecord(ctx, r); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if err := store.Enqueue(ctx, &models.SyncQueueItem{Report: r, EnqueuedAt: enqueuedAt}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
}

func TestSyncer_DeliversAndMarksSynced(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "a", time.Now())
	queuedRecord(t, store, "b", time.Now().Add(time.Second))

	s := NewSyncer(nil, store, transport.Func(func(ctx context.Context, r *models.Report) error { return nil }))
	res, err := s.ProcessSyncQueue(context.Background())
	if err != nil {
		t.Fatalf("ProcessSyncQueue failed: %v", err)
	}
	if res.Synced != 2 || res.Failed != 0 {
		t.Errorf("expected 2 synced, got %+v", res)
	}

	for _, id := range []string{"a", "b"} {
		r, _ := store.GetRecord(context.Background(), id)
		if r.SyncStatus != models.SyncSynced {
			t.Errorf("%s: expected synced, got %s", id, r.SyncStatus)
		}
	}
	if n, _ := s.GetPendingSyncCount(context.Background()); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
}

func TestSyncer_RetryBound(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "doomed", time.Now())

	var calls atomic.Int64
	s := NewSyncer(nil, store, transport.Func(func(ctx context.Context, r *models.Report) error {
		calls.Add(1)
		return errUnreachable
	}))
	ctx := context.Background()

	for pass := 1; pass <= DefaultMaxAttempts; pass++ {
		res, err := s.ProcessSyncQueue(ctx)
		if err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		if res.Failed != 1 {
			t.Errorf("pass %d: expected 1 failed, got %+v", pass, res)
		}
		item, _ := store.GetQueueItem(ctx, "doomed")
		if item == nil || item.Attempts != pass {
			t.Fatalf("pass %d: expected %d attempts, got %+v", pass, pass, item)
		}
		if item.LastError != errUnreachable.Error() || item.LastAttemptAt.IsZero() {
			t.Errorf("pass %d: expected last error and attempt time, got %+v", pass, item)
		}
	}

	if n, _ := s.GetPendingSyncCount(ctx); n != 0 {
		t.Errorf("exhausted record must not count as pending, got %d", n)
	}

	res, err := s.ProcessSyncQueue(ctx)
	if err != nil {
		t.Fatalf("final pass: %v", err)
	}
	if res.Failed != 1 || res.Synced != 0 {
		t.Errorf("expected the drop to count as failed, got %+v", res)
	}
	if item, _ := store.GetQueueItem(ctx, "doomed"); item != nil {
		t.Errorf("expected item dropped from queue, got %+v", item)
	}
	if calls.Load() != DefaultMaxAttempts {
		t.Errorf("expected exactly %d delivery attempts, got %d", DefaultMaxAttempts, calls.Load())
	}

	r, _ := store.GetRecord(ctx, "doomed")
	if r == nil || r.SyncStatus != models.SyncFailed {
		t.Fatalf("expected record kept locally and marked failed, got %+v", r)
	}
	if n, _ := s.GetFailedSyncCount(ctx); n != 1 {
		t.Errorf("expected 1 failed record, got %d", n)
	}

	s.ProcessSyncQueue(ctx)
	if calls.Load() != DefaultMaxAttempts {
		t.Error("exhausted record was retried")
	}
}

func TestSyncer_MergesItemsEnqueuedDuringPass(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "first", time.Now())

	s := NewSyncer(nil, store, transport.Func(func(ctx context.Context, r *models.Report) error {
		// a submission lands while the pass is in flight
		late := &models.Report{ID: "late", Kind: models.KindWater, CreatedAt: time.Now()}
		store.PutRecord(ctx, late)
		store.Enqueue(ctx, &models.SyncQueueItem{Report: late, EnqueuedAt: time.Now()})
		return errUnreachable
	}))

	if _, err := s.ProcessSyncQueue(context.Background()); err != nil {
		t.Fatalf("ProcessSyncQueue failed: %v", err)
	}

	late, _ := store.GetQueueItem(context.Background(), "late")
	if late == nil || late.Attempts != 0 {
		t.Fatalf("expected late item preserved untouched, got %+v", late)
	}
	first, _ := store.GetQueueItem(context.Background(), "first")
	if first == nil || first.Attempts != 1 {
		t.Errorf("expected first item at 1 attempt, got %+v", first)
	}
}

func TestSyncer_CancelMidAttemptLeavesItemUnchanged(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "a", time.Now())
	queuedRecord(t, store, "b", time.Now().Add(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSyncer(nil, store, transport.Func(func(attemptCtx context.Context, r *models.Report) error {
		if r.ID == "a" {
			return errUnreachable
		}
		cancel()
		<-attemptCtx.Done()
		return attemptCtx.Err()
	}))

	res, err := s.ProcessSyncQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessSyncQueue failed: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("expected only the completed attempt counted, got %+v", res)
	}

	a, _ := store.GetQueueItem(context.Background(), "a")
	if a.Attempts != 1 {
		t.Errorf("completed attempt must be persisted, got %d", a.Attempts)
	}
	b, _ := store.GetQueueItem(context.Background(), "b")
	if b.Attempts != 0 || b.LastError != "" {
		t.Errorf("abandoned attempt must not be recorded, got %+v", b)
	}
	if r, _ := store.GetRecord(context.Background(), "b"); r.SyncStatus != models.SyncOffline {
		t.Errorf("abandoned record must return to offline, got %s", r.SyncStatus)
	}
}

func TestSyncer_MarksRecordSyncingDuringAttempt(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "a", time.Now())

	var during models.SyncStatus
	fail := true
	s := NewSyncer(nil, store, transport.Func(func(ctx context.Context, r *models.Report) error {
		rec, _ := store.GetRecord(ctx, r.ID)
		during = rec.SyncStatus
		if fail {
			return errUnreachable
		}
		return nil
	}))
	ctx := context.Background()

	if _, err := s.ProcessSyncQueue(ctx); err != nil {
		t.Fatalf("ProcessSyncQueue failed: %v", err)
	}
	if during != models.SyncSyncing {
		t.Errorf("expected syncing during delivery, got %s", during)
	}
	if r, _ := store.GetRecord(ctx, "a"); r.SyncStatus != models.SyncOffline {
		t.Errorf("expected offline after a failed attempt, got %s", r.SyncStatus)
	}

	fail = false
	during = ""
	if _, err := s.ProcessSyncQueue(ctx); err != nil {
		t.Fatalf("ProcessSyncQueue failed: %v", err)
	}
	if during != models.SyncSyncing {
		t.Errorf("expected syncing during retry, got %s", during)
	}
	if r, _ := store.GetRecord(ctx, "a"); r.SyncStatus != models.SyncSynced {
		t.Errorf("expected synced after delivery, got %s", r.SyncStatus)
	}
}

func TestSyncer_AttemptTimeout(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "slow", time.Now())

	s := NewSyncer(nil, store, transport.Func(func(ctx context.Context, r *models.Report) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	s.deliveryTimeout = 20 * time.Millisecond

	res, err := s.ProcessSyncQueue(context.Background())
	if err != nil {
		t.Fatalf("ProcessSyncQueue failed: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("expected timeout counted as failure, got %+v", res)
	}
	item, _ := store.GetQueueItem(context.Background(), "slow")
	if item.Attempts != 1 {
		t.Errorf("expected 1 attempt after timeout, got %d", item.Attempts)
	}
}

func TestSyncer_SkipsWhileOffline(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "a", time.Now())

	var calls atomic.Int64
	conn := NewConnectivity(false)
	s := NewSyncer(nil, store, transport.Func(func(ctx context.Context, r *models.Report) error {
		calls.Add(1)
		return nil
	})).WithConnectivity(conn)

	if _, err := s.ProcessSyncQueue(context.Background()); !errors.Is(err, ErrOffline) {
		t.Errorf("expected ErrOffline, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("must not attempt delivery while offline")
	}
	item, _ := store.GetQueueItem(context.Background(), "a")
	if item.Attempts != 0 {
		t.Errorf("offline skip must not consume attempts, got %d", item.Attempts)
	}
}

func TestSyncer_RunSyncsOnRestore(t *testing.T) {
	store := repository.NewMemoryStore()
	queuedRecord(t, store, "a", time.Now())

	conn := NewConnectivity(false)
	delivered := make(chan string, 1)
	s := NewSyncer(nil, store, transport.Func(func(ctx context.Context, r *models.Report) error {
		delivered <- r.ID
		return nil
	})).WithConnectivity(conn)
	s.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	if !conn.Restored() {
		t.Fatal("expected offline to online transition")
	}

	select {
	case id := <-delivered:
		if id != "a" {
			t.Errorf("unexpected record delivered: %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("restore did not trigger a sync pass")
	}

	cancel()
	<-done
}

func TestSyncer_NextDelay(t *testing.T) {
	s := NewSyncer(nil, repository.NewMemoryStore(), transport.Offline{})
	s.interval = time.Minute
	s.maxBackoff = 5 * time.Minute

	got := []time.Duration{}
	d := s.interval
	for i := 0; i < 4; i++ {
		d = s.nextDelay(d)
		got = append(got, d)
	}
	want := []time.Duration{2 * time.Minute, 4 * time.Minute, 5 * time.Minute, 5 * time.Minute}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConnectivity(t *testing.T) {
	c := NewConnectivity(true)
	if c.Restored() {
		t.Error("already online, expected no transition")
	}

	c.Lost()
	if c.Online() {
		t.Error("expected offline")
	}
	if !c.Set(true) {
		t.Error("expected transition on restore")
	}
	c.Lost()
	c.Restored()

	select {
	case <-c.Changes():
	default:
		t.Fatal("expected a pending restore signal")
	}
	select {
	case <-c.Changes():
		t.Error("restore signals should coalesce")
	default:
	}
}
