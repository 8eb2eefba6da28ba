// Package datapath implements the node functions that sit between the
// route table / next-hop pool and the wire: deciding what happens when
// a packet has no resolved next-hop, and applying the effect of an
// incoming Neighbor Solicitation or Advertisement.
//
// Every function here takes its collaborators as explicit parameters
// (a Deps value) rather than reaching for globals, so the scenarios in
// datapath_test.go can wire in fakes for the route table, interface
// inventory and transmit path.
package datapath

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/yanet-platform/nd6/modules/nd6/internal/clock"
	"github.com/yanet-platform/nd6/modules/nd6/internal/fsm"
	"github.com/yanet-platform/nd6/modules/nd6/internal/ndp"
	"github.com/yanet-platform/nd6/modules/nd6/internal/nexthop"
	"github.com/yanet-platform/nd6/modules/nd6/internal/packet"
	"github.com/yanet-platform/nd6/modules/nd6/internal/rtable"
)

var allNodesMulticast = netip.MustParseAddr("ff02::1")

// Edge names the forwarding-graph edge a caller should route a packet to
// next, the Go equivalent of the enum the underlying dataplane node
// dispatches on after processing a Neighbor Solicitation.
type Edge string

const (
	// EdgeControlOutput means a reply was generated and handed to
	// Transmit; there is nothing left for the caller to do.
	EdgeControlOutput Edge = "control_output"
	// EdgeIPOutput is unused by ProcessNSInput itself (NS input never
	// forwards a data packet) but is kept in this vocabulary because
	// HandleUnreachable's callers reach the same graph edge on a
	// successful resolution.
	EdgeIPOutput Edge = "ip_output"
	// EdgeInval means the packet failed RFC 4861 receive validation.
	EdgeInval Edge = "inval"
	// EdgeError means a later step (building or transmitting the reply)
	// failed.
	EdgeError Edge = "error"
	// EdgeIgnore means the packet was valid but not addressed to us.
	EdgeIgnore Edge = "ignore"
)

// ErrNoRouteForPacket is returned by HandleUnreachable when the packet's
// destination has no covering route at all (as opposed to a route whose
// next-hop simply isn't resolved yet).
var ErrNoRouteForPacket = errors.New("datapath: no route for packet")

// Timers is the scheduling side the control thread provides. datapath
// functions never start or cancel timers directly; they ask Timers to.
type Timers interface {
	ArmProbeTimer(nh *nexthop.Nexthop, interval clock.Tick)
	ArmReachableTimer(nh *nexthop.Nexthop, lifetime clock.Tick)
}

// Deps bundles every collaborator a datapath node function needs.
type Deps struct {
	Pool     *nexthop.Pool
	Routes   *rtable.Table
	Ifaces   IfaceLookup
	Clock    clock.Clock
	Tunables fsm.Tunables
	Timers   Timers

	// Transmit sends a raw ICMPv6 payload out iface to dst. In this
	// repository it is backed by a test fake or a logging stub; a real
	// deployment would bind it to whatever framing the egress interface
	// needs.
	Transmit func(iface uint16, dst netip.Addr, payload []byte) error

	// Output re-posts a fully resolved packet (pkt.Nexthop set) toward
	// its destination, the IPv6-forwarding equivalent of ip6_output.
	Output func(pkt *packet.Packet) error

	MaxHeldPkts int
}

// IfaceLookup is the subset of the interface inventory the datapath
// needs: a source address and a link-layer address to probe from.
type IfaceLookup interface {
	PreferredAddr(ifaceID uint16, dst netip.Addr) (netip.Addr, bool)
	MACOf(ifaceID uint16) ([6]byte, bool)
}

// HandleUnreachable is invoked when ip6_output (or any other caller)
// finds no resolved next-hop for pkt.Dst. It resolves the route,
// finds-or-creates the corresponding next-hop record — installing the
// /128 host route that backs a freshly created one so subsequent
// packets hit it in a single lookup — and either forwards immediately
// (the next-hop was already REACHABLE or STALE) or holds the packet
// pending resolution, restarting a FAILED next-hop from scratch first.
func (d *Deps) HandleUnreachable(pkt *packet.Packet) error {
	target, ifaceID, err := d.Routes.ResolveTarget(pkt.VRF, pkt.Dst)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoRouteForPacket, pkt.Dst)
	}

	nh, ok := d.Pool.Lookup(pkt.VRF, ifaceID, target)
	if !ok {
		nh, err = d.Pool.NewNexthop(pkt.VRF, ifaceID, target)
		if err != nil {
			return err
		}
		nh.OutputIface = ifaceID
		d.installHostRoute(nh)

		now := d.Clock.Now()
		d.dispatch(nh, fsm.OnCreate(nh, now, d.Tunables))
	}

	switch {
	case nh.Flags.Has(nexthop.Reachable):
		pkt.Nexthop = nh
		return d.Output(pkt)

	case nh.Flags.Has(nexthop.Stale):
		now := d.Clock.Now()
		d.dispatch(nh, fsm.OnNeedsForward(nh, now, d.Tunables))
		pkt.Nexthop = nh
		return d.Output(pkt)

	case nh.Flags.Has(nexthop.Failed):
		// A new packet for a FAILED next-hop restarts resolution from
		// scratch rather than piling onto a dead end.
		now := d.Clock.Now()
		d.dispatch(nh, fsm.OnAdminAdd(nh, now, d.Tunables))
	}

	max := d.MaxHeldPkts
	if max <= 0 {
		max = 256
	}
	nh.Held.Enqueue(pkt, max)
	return nil
}

// installHostRoute installs the /128 host route that backs a freshly
// created next-hop, so later lookups for its address take a single
// route-table hit and so the next-hop carries the one reference that
// keeps it alive until the route is administratively removed.
func (d *Deps) installHostRoute(nh *nexthop.Nexthop) {
	d.Routes.Insert(nh.VRF, &rtable.Route{
		Prefix: netip.PrefixFrom(nh.Addr, nh.Addr.BitLen()),
		Iface:  nh.Iface,
	})
	d.Pool.Incref(nh)
}

// ProcessNSInput applies an incoming Neighbor Solicitation: if it
// targets one of our own addresses, a Neighbor Advertisement is sent in
// reply. Independently, if the solicitation carries a source
// link-layer-address option, the sender is learned as a REACHABLE
// next-hop even when we were not soliciting it — the same gratuitous
// learning NA input applies, extended to cover NS senders too.
func (d *Deps) ProcessNSInput(vrf, ingressIface uint16, src, dst netip.Addr, hopLimit uint8, payload []byte, ourAddr netip.Addr) (Edge, error) {
	ns, err := ndp.ParseNS(src, dst, hopLimit, payload)
	if err != nil {
		return EdgeInval, nil // malformed or invalid per RFC 4861 §7.1.1: silently drop
	}

	if !src.IsUnspecified() && ns.HasSourceLLAddr {
		d.learnPeer(vrf, ingressIface, src, ns.SourceLLAddr)
	}

	if ns.Target != ourAddr {
		return EdgeIgnore, nil
	}

	solicited := !src.IsUnspecified()
	replyDst := src
	if !solicited {
		// A duplicate-address-detection probe from :: gets an
		// unsolicited reply to the all-nodes multicast address, not
		// back to the solicited-node group it arrived on.
		replyDst = allNodesMulticast
	}

	ourLL, _ := d.Ifaces.MACOf(ingressIface)
	reply, err := ndp.BuildNA(ourAddr, replyDst, ourAddr, ourLL, false, solicited, true)
	if err != nil {
		return EdgeError, err
	}
	if err := d.Transmit(ingressIface, replyDst, reply); err != nil {
		return EdgeError, err
	}
	return EdgeControlOutput, nil
}

// ProcessNAInput applies an incoming Neighbor Advertisement: it finds or
// creates the next-hop the advertisement confirms and runs the FSM's
// reachable transition, which flushes any held packets. A next-hop
// nobody was probing is still learned, matching how the original
// probe-input callback treats NS and NA alike.
func (d *Deps) ProcessNAInput(vrf, iface uint16, hopLimit uint8, payload []byte) error {
	na, err := ndp.ParseNA(hopLimit, payload)
	if err != nil {
		return nil
	}
	if !na.HasTargetLLAddr {
		return nil
	}
	return d.confirmNeighbor(vrf, iface, na.Target, na.TargetLLAddr)
}

// ProcessProbeTimer fires when a next-hop's probe-retransmit timer
// expires. It either sends another probe or, once the probe budget is
// exhausted, fails the next-hop and purges its hold queue.
func (d *Deps) ProcessProbeTimer(nh *nexthop.Nexthop) error {
	now := d.Clock.Now()
	actions := fsm.OnProbeTimer(nh, now, d.Tunables)
	return d.dispatch(nh, actions)
}

// ProcessReachableTimer fires when a REACHABLE next-hop's reachable
// lifetime expires, moving it to STALE.
func (d *Deps) ProcessReachableTimer(nh *nexthop.Nexthop) {
	fsm.OnReachableTimerExpiry(nh)
}

// confirmNeighbor finds or creates the next-hop for (vrf, iface, addr)
// and applies the FSM's reachable transition for it. A freshly created
// record gets its own /128 host route, the same "add an internal /128
// route to reference the newly created nexthop" step the probe-input
// path takes for an unsolicited peer. It is the shared gratuitous-
// learning path for both NS senders (ProcessNSInput) and NA targets
// (ProcessNAInput).
func (d *Deps) confirmNeighbor(vrf, iface uint16, addr netip.Addr, lladdr [6]byte) error {
	nh, ok := d.Pool.Lookup(vrf, iface, addr)
	if ok && nh.Flags.Has(nexthop.Static) {
		// An administratively configured next-hop is never refreshed
		// by probe input; its configured link-layer address stands.
		return nil
	}
	if !ok {
		var err error
		nh, err = d.Pool.NewNexthop(vrf, iface, addr)
		if err != nil {
			return err
		}
		nh.OutputIface = iface
		d.installHostRoute(nh)
	}
	// Refreshed unconditionally. The lookup is keyed by iface, so a peer
	// heard on a different interface is a separate record; this only
	// changes a record whose OutputIface differs from its Key.Iface.
	nh.OutputIface = iface

	now := d.Clock.Now()
	actions := fsm.OnNAReceived(nh, now, lladdr)
	return d.dispatchFlush(nh, actions)
}

func (d *Deps) learnPeer(vrf, iface uint16, addr netip.Addr, lladdr [6]byte) {
	_ = d.confirmNeighbor(vrf, iface, addr, lladdr)
}

func (d *Deps) dispatch(nh *nexthop.Nexthop, actions []fsm.Action) error {
	return d.dispatchFlush(nh, actions)
}

func (d *Deps) dispatchFlush(nh *nexthop.Nexthop, actions []fsm.Action) error {
	for _, a := range actions {
		switch a {
		case fsm.ActionEmitUnicastNS, fsm.ActionEmitMulticastNS:
			if err := d.emitProbe(nh, a); err != nil {
				return err
			}
		case fsm.ActionArmProbeTimer:
			d.Timers.ArmProbeTimer(nh, d.Tunables.ProbeInterval)
		case fsm.ActionArmReachableTimer:
			d.Timers.ArmReachableTimer(nh, d.Tunables.ReachableLifetime)
		case fsm.ActionFlushHoldQueue:
			nh.Held.Flush(func(pkt *packet.Packet) error {
				pkt.Nexthop = nh
				return d.Output(pkt)
			})
		case fsm.ActionPurgeHoldQueue:
			nh.Held.Purge()
		}
	}
	return nil
}

func (d *Deps) emitProbe(nh *nexthop.Nexthop, action fsm.Action) error {
	src, ok := d.Ifaces.PreferredAddr(nh.OutputIface, nh.Addr)
	if !ok {
		return fmt.Errorf("datapath: no source address on iface %d", nh.OutputIface)
	}

	dst := nh.Addr
	includeSrcLL := true
	if action == fsm.ActionEmitMulticastNS {
		dst = ndp.SolicitedNodeMulticast(nh.Addr)
	}

	ourLL, _ := d.Ifaces.MACOf(nh.OutputIface)
	payload, err := ndp.BuildNS(src, dst, nh.Addr, ourLL, includeSrcLL)
	if err != nil {
		return err
	}
	return d.Transmit(nh.OutputIface, dst, payload)
}
