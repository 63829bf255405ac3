package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"link-crawler/pkg/utils"
)

var errComputeAborted = errors.New("memo computation aborted")

// memoEntry is one key's slot. done is closed once value/err are final.
type memoEntry[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// memoTable memoizes one computation per key with single-writer/many-readers semantics.
// Claiming a key is a LoadOrStore of a fresh entry; there is no table-wide lock.
// Failed computations are not memoized: the entry is removed before waiters are released,
// so a later caller can claim the key again.
type memoTable[T any] struct {
	entries sync.Map // string -> *memoEntry[T]
}

// do returns the value memoized for key, running compute if no other caller owns the key.
// hit reports whether the value came from another caller's computation.
// A waiter whose owner failed retries the claim as long as its own ctx is live.
func (m *memoTable[T]) do(ctx context.Context, key string, compute func() (T, error)) (value T, hit bool, err error) {
	for {
		fresh := &memoEntry[T]{done: make(chan struct{})}
		actual, loaded := m.entries.LoadOrStore(key, fresh)
		e := actual.(*memoEntry[T])

		if !loaded {
			m.run(key, e, compute)
			return e.value, false, e.err
		}

		select {
		case <-e.done:
		default:
			select {
			case <-e.done:
			case <-ctx.Done():
				var zero T
				return zero, true, fmt.Errorf("%w: waiting for %s: %w", utils.ErrPermitInterrupted, key, ctx.Err())
			}
		}

		if e.err == nil {
			return e.value, true, nil
		}
		if ctx.Err() != nil {
			var zero T
			return zero, true, e.err
		}
	}
}

// run executes compute as the owner of e. A panic in compute still releases waiters.
func (m *memoTable[T]) run(key string, e *memoEntry[T], compute func() (T, error)) {
	e.err = errComputeAborted
	defer func() {
		if e.err != nil {
			m.entries.CompareAndDelete(key, e)
		}
		close(e.done)
	}()
	e.value, e.err = compute()
}

// peek returns a resolved value without blocking.
func (m *memoTable[T]) peek(key string) (T, bool) {
	var zero T
	v, ok := m.entries.Load(key)
	if !ok {
		return zero, false
	}
	e := v.(*memoEntry[T])
	select {
	case <-e.done:
		if e.err != nil {
			return zero, false
		}
		return e.value, true
	default:
		return zero, false
	}
}

// len counts entries, resolved or in progress.
func (m *memoTable[T]) len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
