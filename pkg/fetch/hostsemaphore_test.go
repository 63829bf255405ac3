package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestPool(limit int) *HostSemaphorePool {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetLevel(logrus.DebugLevel)
	return NewHostSemaphorePool(limit, log)
}

func TestHostSemaphore_AcquireRelease_Basic(t *testing.T) {
	pool := newTestPool(2)

	// Two acquires should succeed
	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	// Third should time out (all 2 slots held)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(ctx, "host-a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected third acquire to fail with deadline exceeded, got %v", err)
	}

	// Release one, then acquire should succeed again
	pool.Release("host-a")
	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}

	stats := pool.Stats("host-a")
	if stats.Held != 2 || stats.Peak != 2 {
		t.Errorf("stats = %+v, want held=2 peak=2", stats)
	}
	if stats.Waited != 1 {
		t.Errorf("stats.Waited = %d, want 1", stats.Waited)
	}

	pool.Release("host-a")
	pool.Release("host-a")
	if held := pool.Stats("host-a").Held; held != 0 {
		t.Errorf("held after full release = %d, want 0", held)
	}
}

func TestHostSemaphore_MultipleHosts(t *testing.T) {
	pool := newTestPool(1)

	// Acquire on two different hosts should not interfere
	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("host-a acquire failed: %v", err)
	}
	if err := pool.Acquire(context.Background(), "host-b"); err != nil {
		t.Fatalf("host-b acquire failed: %v", err)
	}

	if pool.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", pool.Len())
	}

	pool.Release("host-a")
	pool.Release("host-b")

	if pool.Len() != 2 {
		t.Errorf("entries should persist after release, got %d", pool.Len())
	}
}

func TestHostSemaphore_DefaultLimit(t *testing.T) {
	pool := newTestPool(0)
	if pool.Limit() != 2 {
		t.Errorf("Limit() = %d, want default 2", pool.Limit())
	}
}

func TestHostSemaphore_ReleaseUnknownHost(t *testing.T) {
	pool := newTestPool(1)
	// Must not panic or create an entry
	pool.Release("never-acquired")
	if pool.Len() != 0 {
		t.Errorf("Release on unknown host created an entry")
	}
}

func TestHostSemaphore_ConcurrentFirstTouchSharesSemaphore(t *testing.T) {
	const limit = 3
	pool := newTestPool(limit)

	var (
		wg       sync.WaitGroup
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background(), "shared.example.com"); err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			n := inFlight.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			pool.Release("shared.example.com")
		}()
	}
	wg.Wait()

	if pool.Len() != 1 {
		t.Errorf("expected exactly one entry, got %d", pool.Len())
	}
	if got := maxSeen.Load(); got > limit {
		t.Errorf("observed %d concurrent holders, limit is %d", got, limit)
	}
	if peak := pool.Stats("shared.example.com").Peak; peak > limit {
		t.Errorf("recorded peak %d exceeds limit %d", peak, limit)
	}
}

func TestHostSemaphore_CancelledWaiterDoesNotLeakPermit(t *testing.T) {
	pool := newTestPool(1)
	if err := pool.Acquire(context.Background(), "h"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- pool.Acquire(ctx, "h") }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	pool.Release("h")
	// The permit released above must be available again
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := pool.Acquire(ctx2, "h"); err != nil {
		t.Fatalf("acquire after cancelled waiter failed: %v", err)
	}
	pool.Release("h")
}

func TestHostSemaphore_KnownHostDoesNotTakePoolLock(t *testing.T) {
	pool := newTestPool(2)
	if err := pool.Acquire(context.Background(), "h"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	pool.Release("h")

	// Hold the creation lock; work on an existing host must still proceed.
	pool.mu.Lock()
	defer pool.mu.Unlock()

	done := make(chan HostStats, 1)
	go func() {
		if err := pool.Acquire(context.Background(), "h"); err != nil {
			t.Errorf("acquire failed: %v", err)
		}
		if err := pool.Acquire(context.Background(), "h"); err != nil {
			t.Errorf("acquire failed: %v", err)
		}
		stats := pool.Stats("h")
		pool.Release("h")
		pool.Release("h")
		done <- stats
	}()

	select {
	case stats := <-done:
		if stats.Held != 2 || stats.Peak != 2 {
			t.Errorf("stats = %+v, want held=2 peak=2", stats)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acquire/release on an existing host blocked on the pool lock")
	}
	if held := pool.Stats("h").Held; held != 0 {
		t.Errorf("held after release = %d, want 0", held)
	}
}

func TestHostSemaphore_ReleaseWithoutHeldPermit(t *testing.T) {
	pool := newTestPool(1)
	if err := pool.Acquire(context.Background(), "h"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	pool.Release("h")
	// Extra release is logged and ignored; the semaphore must not panic or gain a permit.
	pool.Release("h")

	if held := pool.Stats("h").Held; held != 0 {
		t.Errorf("held = %d, want 0", held)
	}
	if err := pool.Acquire(context.Background(), "h"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(ctx, "h"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected limit of 1 to hold after extra release, got %v", err)
	}
	pool.Release("h")
}
