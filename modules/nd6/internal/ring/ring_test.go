package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopFIFO(t *testing.T) {
	r := New(4)

	for i := 0; i < 4; i++ {
		require.NoError(t, r.Push(Message{Handler: 1, Payload: i}))
	}

	require.ErrorIs(t, r.Push(Message{Handler: 1, Payload: 99}), ErrAgain)

	for i := 0; i < 4; i++ {
		msg, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, i, msg.Payload)
	}

	_, ok := r.Pop()
	require.False(t, ok)
}

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := New(5)
	require.Equal(t, 8, r.Cap())
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	r := New(1024)
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for r.Push(Message{Handler: uint8(p), Payload: i}) == ErrAgain {
					// Ring momentarily full; retry. The consumer below
					// drains concurrently so this converges.
				}
			}
		}(p)
	}

	received := 0
	done := make(chan struct{})
	go func() {
		for received < producers*perProducer {
			if _, ok := r.Pop(); ok {
				received++
			}
		}
		close(done)
	}()

	wg.Wait()
	<-done
	require.Equal(t, producers*perProducer, received)
}
