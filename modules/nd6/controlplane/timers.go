package nd6

import (
	"container/heap"

	"github.com/yanet-platform/nd6/modules/nd6/internal/clock"
	"github.com/yanet-platform/nd6/modules/nd6/internal/nexthop"
)

type timerKind int

const (
	timerProbe timerKind = iota
	timerReachable
)

type timerEntry struct {
	due  clock.Tick
	kind timerKind
	nh   *nexthop.Nexthop
	// seq identifies this arm call; due compares it with the latest seq
	// recorded for the same next-hop and kind, so a superseded entry is
	// skipped without a linear scan. Entries with the same due tick are
	// not ordered among themselves.
	seq   uint64
	valid bool
}

// timerWheel is a due-time-ordered priority queue of pending probe and
// reachable-lifetime timers, one per outstanding next-hop timer.
//
// It is only ever touched from the control thread, so it needs no
// locking of its own.
type timerWheel struct {
	heap []*timerEntry
	seq  uint64
	// latest lets ArmProbeTimer/ArmReachableTimer invalidate any
	// previously armed timer for the same next-hop and kind, so a
	// next-hop never has two live timers of the same kind racing.
	latest map[timerKey]uint64
}

type timerKey struct {
	slot int
	kind timerKind
}

func newTimerWheel() *timerWheel {
	return &timerWheel{latest: make(map[timerKey]uint64)}
}

func (w *timerWheel) Len() int { return len(w.heap) }
func (w *timerWheel) Less(i, j int) bool {
	return w.heap[i].due < w.heap[j].due
}
func (w *timerWheel) Swap(i, j int) { w.heap[i], w.heap[j] = w.heap[j], w.heap[i] }
func (w *timerWheel) Push(x any)    { w.heap = append(w.heap, x.(*timerEntry)) }
func (w *timerWheel) Pop() any {
	n := len(w.heap)
	e := w.heap[n-1]
	w.heap = w.heap[:n-1]
	return e
}

// arm schedules nh's timer of the given kind to fire at due, superseding
// any previously armed timer of that kind for the same next-hop.
func (w *timerWheel) arm(nh *nexthop.Nexthop, kind timerKind, due clock.Tick) {
	w.seq++
	key := timerKey{slot: nh.Slot(), kind: kind}
	w.latest[key] = w.seq
	heap.Push(w, &timerEntry{due: due, kind: kind, nh: nh, seq: w.seq, valid: true})
}

// due pops and returns every entry whose deadline is <= now and that
// hasn't been superseded by a later arm call for the same key.
func (w *timerWheel) due(now clock.Tick) []*timerEntry {
	var fired []*timerEntry
	for len(w.heap) > 0 && w.heap[0].due <= now {
		e := heap.Pop(w).(*timerEntry)
		key := timerKey{slot: e.nh.Slot(), kind: e.kind}
		if w.latest[key] != e.seq {
			continue // superseded by a later arm
		}
		delete(w.latest, key)
		fired = append(fired, e)
	}
	return fired
}

// nextDeadline reports the soonest pending deadline, if any.
func (w *timerWheel) nextDeadline() (clock.Tick, bool) {
	if len(w.heap) == 0 {
		return 0, false
	}
	return w.heap[0].due, true
}
