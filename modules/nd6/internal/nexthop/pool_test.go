package nexthop

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func TestNewRejectsDuplicateAndOverflow(t *testing.T) {
	pool := New(Opts{NumNexthops: 2})

	a, err := pool.NewNexthop(0, 1, mustAddr("2001:db8::1"))
	require.NoError(t, err)
	require.NotNil(t, a)

	_, err = pool.NewNexthop(0, 1, mustAddr("2001:db8::1"))
	require.ErrorIs(t, err, ErrExists)

	_, err = pool.NewNexthop(0, 1, mustAddr("2001:db8::2"))
	require.NoError(t, err)

	_, err = pool.NewNexthop(0, 1, mustAddr("2001:db8::3"))
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestLookupIfaceUndefMatchesAnyInterface(t *testing.T) {
	pool := New(Opts{NumNexthops: 4})

	want, err := pool.NewNexthop(0, 5, mustAddr("2001:db8::1"))
	require.NoError(t, err)

	got, ok := pool.Lookup(0, IfaceUndef, mustAddr("2001:db8::1"))
	require.True(t, ok)
	require.Same(t, want, got)

	_, ok = pool.Lookup(1, IfaceUndef, mustAddr("2001:db8::1"))
	require.False(t, ok)
}

func TestDecrefToZeroRunsFreeFnAndReclaimsSlot(t *testing.T) {
	var freed []Key
	pool := New(Opts{
		NumNexthops: 1,
		FreeFn: func(nh *Nexthop) {
			freed = append(freed, nh.Key)
		},
	})

	nh, err := pool.NewNexthop(0, 1, mustAddr("2001:db8::1"))
	require.NoError(t, err)

	pool.Incref(nh)
	pool.Incref(nh)
	require.Equal(t, int32(2), nh.RefCount)

	pool.Decref(nh)
	require.Empty(t, freed)
	_, ok := pool.Lookup(0, 1, mustAddr("2001:db8::1"))
	require.True(t, ok)

	pool.Decref(nh)
	require.Equal(t, []Key{{VRF: 0, Iface: 1, Addr: mustAddr("2001:db8::1")}}, freed)
	_, ok = pool.Lookup(0, 1, mustAddr("2001:db8::1"))
	require.False(t, ok)

	// The slot must be reusable after reclamation.
	again, err := pool.NewNexthop(0, 2, mustAddr("2001:db8::2"))
	require.NoError(t, err)
	require.NotNil(t, again)
}

func TestIterateVisitsEveryLiveEntryOnce(t *testing.T) {
	pool := New(Opts{NumNexthops: 8})

	var want []Key
	for i := 0; i < 5; i++ {
		nh, err := pool.NewNexthop(0, uint16(i), mustAddr("2001:db8::1"))
		require.NoError(t, err)
		want = append(want, nh.Key)
	}

	var got []Key
	pool.Iterate(func(nh *Nexthop) {
		got = append(got, nh.Key)
	})

	require.ElementsMatch(t, want, got)
	require.Equal(t, 5, pool.Len())
}

func TestReclaimable(t *testing.T) {
	pool := New(Opts{NumNexthops: 1})
	nh, err := pool.NewNexthop(0, 1, mustAddr("2001:db8::1"))
	require.NoError(t, err)

	require.True(t, nh.Reclaimable())

	nh.Flags |= Link
	require.False(t, nh.Reclaimable(), "LINK flag blocks reclamation even at ref_count 0")
	nh.Flags &^= Link

	pool.Incref(nh)
	require.False(t, nh.Reclaimable(), "ref_count > 0 blocks reclamation")
}
