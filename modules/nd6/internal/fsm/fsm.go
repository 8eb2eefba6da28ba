// Package fsm implements the resolution state machine as pure functions
// over a next-hop's flags and counters. It never sends a packet or
// starts a timer itself; it only decides what should happen, returning
// a list of Actions for the caller to carry out. That separation is what
// makes the transition table unit-testable without a clock, a ring, or
// a codec in the loop.
package fsm

import (
	"github.com/yanet-platform/nd6/modules/nd6/internal/clock"
	"github.com/yanet-platform/nd6/modules/nd6/internal/nexthop"
)

// Tunables are the probe budget and timer lengths governing one pool's
// worth of next-hops.
type Tunables struct {
	UcastProbes       uint8
	BcastProbes       uint8
	ProbeInterval     clock.Tick
	ReachableLifetime clock.Tick
}

// Action is a side effect the caller must carry out after an FSM
// transition. The FSM only ever returns actions; it never performs them.
type Action int

const (
	ActionEmitUnicastNS Action = iota
	ActionEmitMulticastNS
	ActionFlushHoldQueue
	ActionPurgeHoldQueue
	ActionArmProbeTimer
	ActionArmReachableTimer
)

// immune reports whether nh is exempt from every automatic transition
// this package drives.
func immune(nh *nexthop.Nexthop) bool {
	return nh.Flags.Has(nexthop.Static)
}

// OnCreate transitions a freshly allocated next-hop into
// INCOMPLETE+PENDING and requests the first probe.
func OnCreate(nh *nexthop.Nexthop, now clock.Tick, t Tunables) []Action {
	nh.Flags |= nexthop.Pending
	nh.LastRequest = now
	return []Action{chooseProbeAction(nh, t), ActionArmProbeTimer}
}

// budgetExhausted reports whether every probe this next-hop is allowed
// to send has already been sent without an answer.
func budgetExhausted(nh *nexthop.Nexthop, t Tunables) bool {
	return uint16(nh.UcastProbes)+uint16(nh.BcastProbes) >= uint16(t.UcastProbes)+uint16(t.BcastProbes)
}

// chooseProbeAction picks unicast or solicited-node multicast per the
// rule: prefer unicast to a known link-layer address while the unicast
// budget remains, otherwise multicast. It also advances the matching
// probe counter and LastRequest.
func chooseProbeAction(nh *nexthop.Nexthop, t Tunables) Action {
	if nh.LastReply != 0 && nh.UcastProbes < t.UcastProbes {
		nh.UcastProbes++
		return ActionEmitUnicastNS
	}
	nh.BcastProbes++
	return ActionEmitMulticastNS
}

// OnProbeTimer handles a probe-retransmit timer firing for a next-hop
// currently in INCOMPLETE or PROBE. If the probe budget remains, it
// sends another probe and re-arms the timer; otherwise it fails the
// next-hop and drops its hold queue.
//
// It is a no-op for a STATIC next-hop or one already REACHABLE.
func OnProbeTimer(nh *nexthop.Nexthop, now clock.Tick, t Tunables) []Action {
	if immune(nh) || !nh.Flags.Has(nexthop.Pending) {
		return nil
	}

	if budgetExhausted(nh, t) {
		nh.Flags &^= nexthop.Pending
		nh.Flags |= nexthop.Failed
		nh.UcastProbes, nh.BcastProbes = 0, 0
		return []Action{ActionPurgeHoldQueue}
	}

	nh.LastRequest = now
	return []Action{chooseProbeAction(nh, t), ActionArmProbeTimer}
}

// OnNAReceived applies a confirming Neighbor Advertisement: the
// next-hop becomes REACHABLE, PENDING and STALE clear, the link-layer
// address and LastReply update, and every held packet flushes.
func OnNAReceived(nh *nexthop.Nexthop, now clock.Tick, lladdr [6]byte) []Action {
	nh.LLAddr = lladdr
	nh.LastReply = now
	nh.Flags &^= nexthop.Pending | nexthop.Stale | nexthop.Failed
	nh.Flags |= nexthop.Reachable
	nh.UcastProbes, nh.BcastProbes = 0, 0
	return []Action{ActionArmReachableTimer, ActionFlushHoldQueue}
}

// OnReachableTimerExpiry moves a REACHABLE next-hop to STALE. It is a
// no-op for a STATIC next-hop, which never leaves REACHABLE.
func OnReachableTimerExpiry(nh *nexthop.Nexthop) []Action {
	if immune(nh) {
		return nil
	}
	nh.Flags &^= nexthop.Reachable
	nh.Flags |= nexthop.Stale
	return nil
}

// OnNeedsForward handles a packet arriving for a STALE next-hop: it
// starts a fresh unicast probe cycle (PROBE state) without touching the
// hold queue, since the packet that triggered this is forwarded
// immediately using the still-known (if now-unconfirmed) link-layer
// address, not held.
func OnNeedsForward(nh *nexthop.Nexthop, now clock.Tick, t Tunables) []Action {
	if immune(nh) || !nh.Flags.Has(nexthop.Stale) {
		return nil
	}
	nh.Flags |= nexthop.Pending
	nh.LastRequest = now
	return []Action{chooseProbeAction(nh, t), ActionArmProbeTimer}
}

// OnAdminAdd resets a FAILED next-hop back to INCOMPLETE, as happens
// when a new packet or an administrative add reactivates it.
func OnAdminAdd(nh *nexthop.Nexthop, now clock.Tick, t Tunables) []Action {
	nh.Flags &^= nexthop.Failed
	nh.UcastProbes, nh.BcastProbes = 0, 0
	return OnCreate(nh, now, t)
}
