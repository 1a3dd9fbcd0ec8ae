package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_StartStop(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		processed.Add(1)
		return nil
	}

	pool := NewPool("test", 2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		if err := pool.Submit(ctx, i); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job string) error {
		processed.Add(1)
		return nil
	}

	pool := NewPool("test", 4, 100, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		go func() {
			pool.Submit(ctx, "HEALTH|fever|2|a,b,c")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 100; i++ {
		<-done
	}

	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestPool_ProcessorErrorsDoNotStopWorkers(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		processed.Add(1)
		if job%2 == 0 {
			return errors.New("bad line")
		}
		return nil
	}

	pool := NewPool("test", 1, 10, processor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 6; i++ {
		pool.Submit(ctx, i)
	}
	pool.Stop()

	if processed.Load() != 6 {
		t.Errorf("expected 6 jobs processed, got %d", processed.Load())
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool("test", 1, 1, func(ctx context.Context, job int) error { return nil })
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	if err := pool.Submit(context.Background(), 1); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
}

func TestPool_SubmitRespectsContext(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool("test", 1, 1, func(ctx context.Context, job int) error {
		<-release
		return nil
	})
	pool.Start(context.Background())

	pool.Submit(context.Background(), 1) // picked up by the worker
	time.Sleep(20 * time.Millisecond)
	pool.Submit(context.Background(), 2) // fills the buffer

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, 3); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	pool.Stop()
}

func TestPool_GracefulShutdown(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		time.Sleep(10 * time.Millisecond)
		processed.Add(1)
		return nil
	}

	pool := NewPool("test", 2, 50, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 20; i++ {
		pool.Submit(ctx, i)
	}

	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("processed %d jobs before shutdown", processed.Load())
}
