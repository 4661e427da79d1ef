package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Signal is a broadcast wake-up for goroutines waiting on new queue entries.
// Each Notify closes the channel handed out by earlier Wait calls.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal returns a ready-to-use Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Wait returns a channel that is closed by the next Notify.
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Notify wakes every current waiter.
func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}

// TakeFunc attempts a single non-blocking removal. It reports ok=false when
// nothing is available.
type TakeFunc func(ctx context.Context) (id uuid.UUID, ok bool, err error)

// PollUntil calls take until it yields an ID, the timeout elapses, or ctx is
// done. Between attempts it sleeps until the next interval tick or until
// signal fires, whichever comes first. An interval <= 0 disables ticking and
// relies on signal alone. A timeout <= 0 makes exactly one attempt.
//
// It returns ErrQueueEmpty on timeout and ctx.Err() on cancellation.
func PollUntil(
	ctx context.Context,
	timeout, interval time.Duration,
	signal *Signal,
	take TakeFunc,
) (uuid.UUID, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var wake <-chan struct{}
	for {
		if err := ctx.Err(); err != nil {
			return uuid.Nil, err
		}

		// Grab the wake channel before looking so an enqueue that lands
		// between the attempt and the select is not missed.
		if signal != nil {
			wake = signal.Wait()
		}

		id, ok, err := take(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		if ok {
			return id, nil
		}

		if deadline == nil {
			return uuid.Nil, ErrQueueEmpty
		}

		select {
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		case <-deadline:
			return uuid.Nil, ErrQueueEmpty
		case <-tick:
		case <-wake:
		}
	}
}
