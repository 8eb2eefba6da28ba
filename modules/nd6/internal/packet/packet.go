// Package packet defines the minimal packet representation shared between
// the hold queue, the control ring, and the datapath node functions.
//
// A packet here is an ordinary heap value collected by the Go garbage
// collector; no pooled allocator backs it.
package packet

import "net/netip"

// Packet is an IPv6 datagram in flight through the resolution subsystem.
type Packet struct {
	// Data is the raw Ethernet frame (or, for synthetic control-plane
	// packets, the raw IPv6 payload starting at the ICMPv6 header).
	Data []byte
	// VRF and Iface identify the ingress context.
	VRF   uint16
	Iface uint16
	// Dst is the destination address the unreachable handler resolves
	// against.
	Dst netip.Addr
	// Nexthop, once attached, carries the resolved output next-hop down
	// to the output path. It is an opaque value so that this package
	// does not need to import internal/nexthop.
	Nexthop any
}

// Free releases the packet. With a GC-backed representation this is a
// no-op; it exists so call sites don't need to change if a pooled
// allocator is introduced later.
func (m *Packet) Free() {}

// Clone returns a copy of the packet with its own backing byte slice,
// leaving the receiver untouched so it can still be reused (for example
// to build a reply in place) after Clone returns.
func (m *Packet) Clone() *Packet {
	data := make([]byte, len(m.Data))
	copy(data, m.Data)
	return &Packet{
		Data:  data,
		VRF:   m.VRF,
		Iface: m.Iface,
		Dst:   m.Dst,
	}
}
