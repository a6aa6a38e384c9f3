package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishKeepsLatest(t *testing.T) {
	s := New[int]()
	s.Publish(1)
	s.Publish(2)
	s.Publish(3)

	v, ok := s.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestFinishDeliversTerminalValue(t *testing.T) {
	s := New[string]()
	s.Publish("working")
	s.Finish("done")
	s.Publish("ignored")

	last, ok := s.Drain(context.Background(), nil)
	require.True(t, ok)
	assert.Equal(t, "done", last)

	_, ok = s.Next(context.Background())
	assert.False(t, ok, "closed stream stays closed")
}

func TestNextHonoursContext(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := s.Next(ctx)
	assert.False(t, ok)
}

func TestProducerNeverBlocks(t *testing.T) {
	s := New[int]()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 10000; i++ {
			s.Publish(i)
		}
		s.Finish(10000)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked without a consumer")
	}

	last, _ := s.Drain(context.Background(), nil)
	assert.Equal(t, 10000, last)
}

func TestConcurrentConsumerSeesMonotonicValues(t *testing.T) {
	s := New[int]()
	var wg sync.WaitGroup
	wg.Add(1)

	var seen []int
	go func() {
		defer wg.Done()
		s.Drain(context.Background(), func(v int) { seen = append(seen, v) })
	}()

	for i := 0; i <= 100; i++ {
		s.Publish(i)
	}
	s.Finish(101)
	wg.Wait()

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 101, seen[len(seen)-1])
}
