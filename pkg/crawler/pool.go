package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"link-crawler/pkg/metrics"
	"link-crawler/pkg/models"
	"link-crawler/pkg/utils"
)

// taskOutcome is what a crawl task hands back to whoever waits on it.
type taskOutcome struct {
	result *models.Result
	err    error
}

// taskSlot is a held pool slot. release may be called more than once.
type taskSlot struct {
	pool *taskPool
	once sync.Once
}

func (s *taskSlot) release() {
	s.once.Do(func() { s.pool.slots.Release(1) })
}

// taskPool bounds how many crawl tasks are actively working at once.
// A task that is only waiting on its children holds no slot.
type taskPool struct {
	slots   *semaphore.Weighted
	size    int64
	wg      sync.WaitGroup
	metrics *metrics.Metrics
}

func newTaskPool(size int, m *metrics.Metrics) *taskPool {
	if size < 1 {
		size = 1
	}
	return &taskPool{slots: semaphore.NewWeighted(int64(size)), size: int64(size), metrics: m}
}

// submit runs fn on its own goroutine once a slot is free and returns a channel that
// receives exactly one outcome. The slot is released when fn returns if fn has not
// already yielded it.
func (p *taskPool) submit(ctx context.Context, fn func(*taskSlot) (*models.Result, error)) <-chan taskOutcome {
	out := make(chan taskOutcome, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		start := time.Now()
		if err := p.slots.Acquire(ctx, 1); err != nil {
			out <- taskOutcome{result: models.EmptyResult(), err: fmt.Errorf("%w: task slot: %w", utils.ErrPermitInterrupted, err)}
			return
		}
		p.metrics.PermitWaited("task", start)

		slot := &taskSlot{pool: p}
		defer slot.release()

		res, err := fn(slot)
		out <- taskOutcome{result: res, err: err}
	}()
	return out
}
