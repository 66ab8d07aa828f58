package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushPop_FIFO(t *testing.T) {
	q := New[int](4)

	for i := 0; i < 4; i++ {
		_, ok := q.Push(i)
		require.True(t, ok)
	}

	_, ok := q.Push(99)
	assert.False(t, ok, "push must fail once capacity is exhausted")

	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok = q.Pop()
	assert.False(t, ok, "pop on an empty queue must fail")
}

func TestQueue_WrapAround(t *testing.T) {
	q := New[int](3)

	for round := 0; round < 10; round++ {
		_, ok := q.Push(round)
		require.True(t, ok)
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, round, v)
	}
}

func TestQueue_PushReturnsElementOnFull(t *testing.T) {
	q := New[string](1)
	_, ok := q.Push("a")
	require.True(t, ok)

	rejected, ok := q.Push("b")
	assert.False(t, ok)
	assert.Equal(t, "b", rejected, "a failed push must hand the element back unchanged")
}

func TestQueue_PeekDoesNotConsume(t *testing.T) {
	q := New[int](2)
	assert.False(t, q.Peek(), "an empty queue must not report a pending element")

	_, ok := q.Push(7)
	require.True(t, ok)
	assert.True(t, q.Peek())
	assert.True(t, q.Peek(), "Peek must not consume the element")

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.False(t, q.Peek())
}

func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	const (
		producers   = 8
		perProducer = 2000
		capacity    = 64
	)
	q := New[int](capacity)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for {
					if _, ok := q.Push(1); ok {
						break
					}
				}
			}
		}()
	}

	total := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		want := producers * perProducer
		for total < want {
			if v, ok := q.Pop(); ok {
				total += v
			}
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, producers*perProducer, total)
}
