package holdqueue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanet-platform/nd6/modules/nd6/internal/packet"
)

func TestEnqueueBound(t *testing.T) {
	var q Queue

	for i := 0; i < 4; i++ {
		ok := q.Enqueue(&packet.Packet{}, 4)
		require.True(t, ok)
	}
	require.Equal(t, 4, q.Len())

	// The 5th packet overflows the bound of 4 and must be dropped, not
	// appended.
	ok := q.Enqueue(&packet.Packet{}, 4)
	require.False(t, ok)
	require.Equal(t, 4, q.Len())
}

func TestFlushPreservesOrder(t *testing.T) {
	var q Queue

	ids := []int{1, 2, 3}
	for _, id := range ids {
		q.Enqueue(&packet.Packet{Data: []byte{byte(id)}}, 16)
	}

	var seen []int
	err := q.Flush(func(p *packet.Packet) error {
		seen = append(seen, int(p.Data[0]))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, ids, seen)
	require.Equal(t, 0, q.Len())
}

func TestFlushContinuesPastFailures(t *testing.T) {
	var q Queue

	for i := 0; i < 3; i++ {
		q.Enqueue(&packet.Packet{Data: []byte{byte(i)}}, 16)
	}

	var seen []int
	err := q.Flush(func(p *packet.Packet) error {
		seen = append(seen, int(p.Data[0]))
		if p.Data[0] == 1 {
			return errors.New("boom")
		}
		return nil
	})
	require.Error(t, err)
	require.Equal(t, []int{0, 1, 2}, seen)
	require.Equal(t, 0, q.Len())
}

func TestPurgeEmptiesQueue(t *testing.T) {
	var q Queue
	for i := 0; i < 3; i++ {
		q.Enqueue(&packet.Packet{}, 16)
	}
	q.Purge()
	require.Equal(t, 0, q.Len())
}
