package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializerRunsInOrder(t *testing.T) {
	s := NewSerializer()
	defer s.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		s.Enqueue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	s.EnqueueWait(func() {})

	require.Len(t, order, 10)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestSerializerEnqueueWaitObservesResult(t *testing.T) {
	s := NewSerializer()
	defer s.Close()

	value := 0
	s.Enqueue(func() { value = 1 })
	s.EnqueueWait(func() { value++ })

	assert.Equal(t, 2, value)
}

func TestSerializerDropsStackedTicks(t *testing.T) {
	s := NewSerializer()
	defer s.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	s.Enqueue(func() {
		close(started)
		<-release
	})
	<-started

	ticks := 0
	// While the worker is busy, only one tick may queue up.
	assert.True(t, s.TryTick(func() { ticks++ }))
	assert.False(t, s.TryTick(func() { ticks++ }))
	assert.False(t, s.TryTick(func() { ticks++ }))

	close(release)
	s.EnqueueWait(func() {})
	assert.Equal(t, 1, ticks)
}

func TestSerializerCloseDrains(t *testing.T) {
	s := NewSerializer()

	done := 0
	for i := 0; i < 5; i++ {
		s.Enqueue(func() { done++ })
	}
	s.Close()

	assert.Equal(t, 5, done)
	// Work after close is refused quietly.
	s.Enqueue(func() { done++ })
	assert.Equal(t, 5, done)
}
