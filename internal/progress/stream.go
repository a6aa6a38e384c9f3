// Package progress delivers status updates from a background worker to one
// observer. The stream keeps only the latest value: a producer never waits
// for a slow consumer, and intermediate values may be dropped. A stream is
// finite and cannot be restarted once closed.
package progress

import (
	"context"
	"sync"
)

// Stream is a single-producer, single-consumer latest-value channel.
type Stream[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// New creates an open stream.
func New[T any]() *Stream[T] {
	return &Stream[T]{ch: make(chan T, 1)}
}

// Publish replaces any unread value with v. It never blocks and is a no-op
// after Close.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}

// Close ends the stream. A value published before Close is still delivered.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Finish publishes a terminal value and closes the stream.
func (s *Stream[T]) Finish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
	s.closed = true
	close(s.ch)
}

// Next waits for the next value. It returns false once the stream is closed
// and drained, or when ctx is done.
func (s *Stream[T]) Next(ctx context.Context) (T, bool) {
	select {
	case v, ok := <-s.ch:
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Drain calls fn for every value until the stream ends and returns the last
// value seen.
func (s *Stream[T]) Drain(ctx context.Context, fn func(T)) (T, bool) {
	var (
		last T
		seen bool
	)
	for {
		v, ok := s.Next(ctx)
		if !ok {
			return last, seen
		}
		last, seen = v, true
		if fn != nil {
			fn(v)
		}
	}
}
