package fsm

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanet-platform/nd6/modules/nd6/internal/clock"
	"github.com/yanet-platform/nd6/modules/nd6/internal/nexthop"
)

func tunables() Tunables {
	return Tunables{UcastProbes: 3, BcastProbes: 3, ProbeInterval: 1, ReachableLifetime: 30}
}

func newNexthop() *nexthop.Nexthop {
	pool := nexthop.New(nexthop.Opts{NumNexthops: 1})
	nh, err := pool.NewNexthop(0, 1, netip.MustParseAddr("2001:db8::1"))
	if err != nil {
		panic(err)
	}
	return nh
}

func TestOnCreateEntersIncompletePendingAndProbesMulticast(t *testing.T) {
	nh := newNexthop()
	actions := OnCreate(nh, 1, tunables())

	require.True(t, nh.Flags.Has(nexthop.Pending))
	require.False(t, nh.Flags.Has(nexthop.Reachable))
	require.Contains(t, actions, ActionEmitMulticastNS)
	require.Contains(t, actions, ActionArmProbeTimer)
	require.EqualValues(t, 1, nh.BcastProbes)
}

func TestOnNAReceivedReachesReachableAndFlushes(t *testing.T) {
	nh := newNexthop()
	OnCreate(nh, 1, tunables())

	actions := OnNAReceived(nh, 2, [6]byte{0x52, 0x54, 0, 0xaa, 0xbb, 0xcc})

	require.True(t, nh.Flags.Has(nexthop.Reachable))
	require.False(t, nh.Flags.Has(nexthop.Pending))
	require.False(t, nh.Flags.Has(nexthop.Stale))
	require.Equal(t, [6]byte{0x52, 0x54, 0, 0xaa, 0xbb, 0xcc}, nh.LLAddr)
	require.Contains(t, actions, ActionFlushHoldQueue)
}

func TestOnProbeTimerFailsAfterBudgetExhausted(t *testing.T) {
	nh := newNexthop()
	tn := tunables()
	OnCreate(nh, 1, tn)

	budget := int(tn.UcastProbes) + int(tn.BcastProbes)
	var actions []Action
	for i := 1; i < budget; i++ {
		actions = OnProbeTimer(nh, clock.Tick(i), tn)
		require.False(t, nh.Flags.Has(nexthop.Failed), "should not fail before budget exhausted")
	}

	actions = OnProbeTimer(nh, clock.Tick(budget), tn)
	require.True(t, nh.Flags.Has(nexthop.Failed))
	require.False(t, nh.Flags.Has(nexthop.Pending))
	require.Contains(t, actions, ActionPurgeHoldQueue)
}

func TestStaticNextHopIsImmuneToProbeTimerAndReachableExpiry(t *testing.T) {
	nh := newNexthop()
	nh.Flags = nexthop.Static | nexthop.Reachable

	require.Empty(t, OnProbeTimer(nh, 5, tunables()))
	require.Empty(t, OnReachableTimerExpiry(nh))
	require.True(t, nh.Flags.Has(nexthop.Reachable))
	require.False(t, nh.Flags.Has(nexthop.Stale))
}

func TestReachableExpiryThenForwardGoesToProbe(t *testing.T) {
	nh := newNexthop()
	nh.Flags = nexthop.Reachable
	nh.LastReply = 1
	nh.LLAddr = [6]byte{1, 2, 3, 4, 5, 6}

	OnReachableTimerExpiry(nh)
	require.True(t, nh.Flags.Has(nexthop.Stale))

	actions := OnNeedsForward(nh, 2, tunables())
	require.True(t, nh.Flags.Has(nexthop.Pending))
	require.Contains(t, actions, ActionEmitUnicastNS)
}

func TestOnAdminAddResetsFailedToIncomplete(t *testing.T) {
	nh := newNexthop()
	nh.Flags = nexthop.Failed
	nh.UcastProbes, nh.BcastProbes = 3, 3

	OnAdminAdd(nh, 10, tunables())

	require.False(t, nh.Flags.Has(nexthop.Failed))
	require.True(t, nh.Flags.Has(nexthop.Pending))
	require.EqualValues(t, 0, nh.UcastProbes)
}
