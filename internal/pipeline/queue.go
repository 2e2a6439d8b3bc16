package pipeline

import (
	"context"
	"time"

	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// FragmentQueue is the bounded FIFO between the capture and consumer stages.
type FragmentQueue struct {
	ch chan *speech.Fragment
}

// NewFragmentQueue creates a queue holding at most capacity fragments.
func NewFragmentQueue(capacity int) *FragmentQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FragmentQueue{ch: make(chan *speech.Fragment, capacity)}
}

// Offer enqueues f, waiting at most wait for room. It returns ErrQueueFull
// when the wait expires and ctx.Err() when ctx ends first.
func (q *FragmentQueue) Offer(ctx context.Context, f *speech.Fragment, wait time.Duration) error {
	select {
	case q.ch <- f:
		return nil
	default:
	}
	if wait <= 0 {
		return ErrQueueFull
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case q.ch <- f:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll dequeues the oldest fragment, waiting at most wait. ok is false on
// timeout or when ctx ends.
func (q *FragmentQueue) Poll(ctx context.Context, wait time.Duration) (f *speech.Fragment, ok bool) {
	select {
	case f = <-q.ch:
		return f, true
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case f = <-q.ch:
		return f, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Len returns the number of queued fragments.
func (q *FragmentQueue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *FragmentQueue) Cap() int { return cap(q.ch) }
