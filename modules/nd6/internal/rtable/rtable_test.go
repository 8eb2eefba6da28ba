package rtable

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestLookupPicksLongestPrefix(t *testing.T) {
	tbl := New()
	tbl.Insert(0, &Route{Prefix: netip.MustParsePrefix("2001:db8::/32"), Iface: 1})
	tbl.Insert(0, &Route{Prefix: netip.MustParsePrefix("2001:db8:1::/48"), Iface: 2})

	r, err := tbl.Lookup(0, netip.MustParseAddr("2001:db8:1::42"))
	require.NoError(t, err)
	require.EqualValues(t, 2, r.Iface)

	r, err = tbl.Lookup(0, netip.MustParseAddr("2001:db8:2::42"))
	require.NoError(t, err)
	require.EqualValues(t, 1, r.Iface)
}

func TestLookupMissReturnsErrNoRoute(t *testing.T) {
	tbl := New()
	_, err := tbl.Lookup(0, netip.MustParseAddr("2001:db8::1"))
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestVRFsAreIsolated(t *testing.T) {
	tbl := New()
	tbl.Insert(1, &Route{Prefix: netip.MustParsePrefix("2001:db8::/32"), Iface: 7})

	_, err := tbl.Lookup(0, netip.MustParseAddr("2001:db8::1"))
	require.ErrorIs(t, err, ErrNoRoute)

	r, err := tbl.Lookup(1, netip.MustParseAddr("2001:db8::1"))
	require.NoError(t, err)
	require.EqualValues(t, 7, r.Iface)
}

func TestResolveTargetOnLinkVsGateway(t *testing.T) {
	tbl := New()
	tbl.Insert(0, &Route{Prefix: netip.MustParsePrefix("2001:db8::/64"), Iface: 1})
	tbl.Insert(0, &Route{
		Prefix:  netip.MustParsePrefix("2001:db8:9::/64"),
		Iface:   2,
		Nexthop: netip.MustParseAddr("2001:db8::ffff"),
	})

	target, iface, err := tbl.ResolveTarget(0, netip.MustParseAddr("2001:db8::42"))
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddr("2001:db8::42"), target)
	require.EqualValues(t, 1, iface)

	target, iface, err = tbl.ResolveTarget(0, netip.MustParseAddr("2001:db8:9::42"))
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddr("2001:db8::ffff"), target)
	require.EqualValues(t, 2, iface)
}

func TestRemoveAndDump(t *testing.T) {
	tbl := New()
	p1 := netip.MustParsePrefix("2001:db8::/64")
	p2 := netip.MustParsePrefix("2001:db8:1::/64")
	tbl.Insert(0, &Route{Prefix: p1, Iface: 1})
	tbl.Insert(0, &Route{Prefix: p2, Iface: 2})
	require.Equal(t, 2, tbl.Len(0))

	tbl.Remove(0, p1)
	require.Equal(t, 1, tbl.Len(0))

	dump := tbl.Dump(0)
	require.Len(t, dump, 1)
	require.Contains(t, dump, p2)
}

func TestDumpPreservesGatewayRouteFields(t *testing.T) {
	tbl := New()
	want := &Route{
		Prefix:  netip.MustParsePrefix("2001:db8:9::/64"),
		Iface:   2,
		Nexthop: netip.MustParseAddr("2001:db8::ffff"),
	}
	tbl.Insert(0, want)

	got := tbl.Dump(0)[want.Prefix]
	if diff := cmp.Diff(want, got, cmpopts.EquateComparable(netip.Addr{}, netip.Prefix{})); diff != "" {
		t.Errorf("route mismatch (-want +got):\n%s", diff)
	}
}
