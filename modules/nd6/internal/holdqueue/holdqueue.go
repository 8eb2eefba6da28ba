// Package holdqueue implements the per-next-hop bounded FIFO of packets
// awaiting address resolution.
package holdqueue

import (
	"container/list"

	"github.com/hashicorp/go-multierror"

	"github.com/yanet-platform/nd6/modules/nd6/internal/packet"
)

// Queue is a bounded FIFO of held packets.
//
// The zero value is an empty, usable queue. A Queue is not safe for
// concurrent use; the resolution subsystem only ever touches a next-hop's
// queue from the single control thread.
type Queue struct {
	pkts list.List
}

// Len returns the number of packets currently held.
func (m *Queue) Len() int {
	return m.pkts.Len()
}

// Enqueue appends pkt to the tail of the queue, unless doing so would
// exceed max. On overflow the newest packet (pkt) is dropped and freed;
// the drop is reported only through the return value, and nothing is
// logged.
//
// Enqueue reports whether the packet was accepted.
func (m *Queue) Enqueue(pkt *packet.Packet, max int) bool {
	if m.pkts.Len() >= max {
		pkt.Free()
		return false
	}
	m.pkts.PushBack(pkt)
	return true
}

// Flush re-posts every held packet, in enqueue order, to repost, then
// empties the queue. Flush completes even if individual calls to repost
// fail; failures are aggregated (for logging only) with go-multierror and
// the corresponding packet is freed rather than left held.
func (m *Queue) Flush(repost func(*packet.Packet) error) error {
	var errs error

	for e := m.pkts.Front(); e != nil; e = e.Next() {
		pkt := e.Value.(*packet.Packet)
		if err := repost(pkt); err != nil {
			pkt.Free()
			errs = multierror.Append(errs, err)
		}
	}
	m.pkts.Init()

	return errs
}

// Purge frees every held packet without re-posting it, used when a
// next-hop transitions to Failed.
func (m *Queue) Purge() {
	for e := m.pkts.Front(); e != nil; e = e.Next() {
		e.Value.(*packet.Packet).Free()
	}
	m.pkts.Init()
}
