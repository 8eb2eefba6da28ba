// Package nexthop implements the next-hop pool: the fixed-capacity arena
// of next-hop records the resolution FSM, hold queue, and NDP codec all
// operate on.
package nexthop

import (
	"net/netip"

	"github.com/yanet-platform/nd6/modules/nd6/internal/clock"
	"github.com/yanet-platform/nd6/modules/nd6/internal/holdqueue"
)

// IfaceUndef is the sentinel interface id meaning "any interface in this
// VRF", used by Lookup when deleting a next-hop by address alone.
const IfaceUndef uint16 = 0xFFFF

// Key uniquely identifies a next-hop within the pool.
type Key struct {
	VRF   uint16
	Iface uint16
	Addr  netip.Addr
}

// Nexthop is a next-hop record.
type Nexthop struct {
	Key

	// LLAddr is the resolved link-layer (MAC) address. Zero until
	// learned.
	LLAddr [6]byte
	// Flags is the bitmask of next-hop attributes.
	Flags Flags
	// UcastProbes and BcastProbes count the unicast and
	// solicited-multicast NS probes sent since the last successful
	// resolution.
	UcastProbes, BcastProbes uint8
	// LastRequest and LastReply are monotonic ticks of the most recent
	// probe sent and reply received, respectively. Zero means "never".
	LastRequest, LastReply clock.Tick
	// RefCount is the number of route entries pointing at this
	// next-hop.
	RefCount int32
	// OutputIface is the resolved output interface, which may differ
	// from Key.Iface when the match came via a connected route.
	OutputIface uint16

	// Held is the bounded FIFO of packets waiting on resolution.
	Held holdqueue.Queue

	// slot is the stable arena index assigned by the Pool. It is
	// exported read-only via Slot() so datapath code can cheaply recall
	// "which slot is this" without a second lookup.
	slot int
}

// Slot returns the next-hop's stable arena index.
func (m *Nexthop) Slot() int {
	return m.slot
}

// Reclaimable reports whether the next-hop is eligible for reclamation:
// its reference count is zero and it carries none of Local, Link, or
// Gateway.
func (m *Nexthop) Reclaimable() bool {
	return m.RefCount == 0 && !m.Flags.Any(Local|Link|Gateway)
}
