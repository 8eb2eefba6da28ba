package nexthop

import (
	"errors"
	"net/netip"
)

// Pool errors. Callers translate these into whatever error taxonomy
// their transport exposes.
var (
	// ErrNoSpace is returned by NewNexthop when the arena is full.
	ErrNoSpace = errors.New("nexthop pool: no free slot")
	// ErrExists is returned by NewNexthop when a record for the tuple
	// already exists.
	ErrExists = errors.New("nexthop pool: already exists")
	// ErrNotFound is the pool's not-found error. No Pool method returns
	// it; Lookup reports a miss with ok=false.
	ErrNotFound = errors.New("nexthop pool: not found")
)

// vrfAddr is the secondary index key used to support Lookup's
// IfaceUndef ("any interface in this VRF") sentinel.
type vrfAddr struct {
	vrf  uint16
	addr netip.Addr
}

// Pool is a fixed-capacity arena of next-hop slots plus the index
// structures needed by Lookup and Iterate.
//
// A Pool is parameterized at construction by address family and a free
// callback, so the same implementation can back an IPv4/ARP pool without
// modification. Probe emission is not one of the pool's callbacks: it
// needs the route table and interface inventory the pool doesn't hold,
// so internal/datapath drives it directly from the FSM's returned
// actions instead.
type Pool struct {
	family Family
	freeFn FreeFunc

	slots []Nexthop
	free  []bool // free[i] == true means slots[i] is unused.

	byKey  map[Key]*Nexthop
	byAddr map[vrfAddr][]*Nexthop
}

// Family identifies the address family a Pool was built for.
type Family int

const (
	// FamilyIPv6 is the only family this repository implements;
	// FamilyIPv4 is declared so a future ARP pool can share this type
	// without renumbering.
	FamilyIPv6 Family = iota
	FamilyIPv4
)

// FreeFunc is invoked when a next-hop's reference count drops to zero.
// It must drop all route entries still referencing nh before returning.
type FreeFunc func(nh *Nexthop)

// Opts configures a new Pool.
type Opts struct {
	Family      Family
	FreeFn      FreeFunc
	NumNexthops int
}

// New constructs an empty Pool with the given capacity and callbacks.
func New(opts Opts) *Pool {
	if opts.NumNexthops <= 0 {
		panic("nexthop: NumNexthops must be positive")
	}
	return &Pool{
		family: opts.Family,
		freeFn: opts.FreeFn,
		slots:  make([]Nexthop, opts.NumNexthops),
		free:   makeAllFree(opts.NumNexthops),
		byKey:  make(map[Key]*Nexthop),
		byAddr: make(map[vrfAddr][]*Nexthop),
	}
}

func makeAllFree(n int) []bool {
	f := make([]bool, n)
	for i := range f {
		f[i] = true
	}
	return f
}

// Family returns the address family this pool was constructed for.
func (m *Pool) Family() Family {
	return m.family
}

// Cap returns the pool's total capacity.
func (m *Pool) Cap() int {
	return len(m.slots)
}

// NewNexthop allocates a next-hop record for the given tuple.
//
// It fails with ErrNoSpace if the arena is full, ErrExists if a record
// for the tuple already exists.
func (m *Pool) NewNexthop(vrf, iface uint16, addr netip.Addr) (*Nexthop, error) {
	key := Key{VRF: vrf, Iface: iface, Addr: addr}
	if _, ok := m.byKey[key]; ok {
		return nil, ErrExists
	}

	slot := -1
	for i, isFree := range m.free {
		if isFree {
			slot = i
			break
		}
	}
	if slot == -1 {
		return nil, ErrNoSpace
	}

	m.free[slot] = false
	m.slots[slot] = Nexthop{Key: key, slot: slot}
	nh := &m.slots[slot]

	m.byKey[key] = nh
	va := vrfAddr{vrf: vrf, addr: addr}
	m.byAddr[va] = append(m.byAddr[va], nh)

	return nh, nil
}

// Lookup matches by exact tuple. iface == IfaceUndef means "any
// interface in this vrf", used by administrative deletion that doesn't
// know which interface originally created the record.
func (m *Pool) Lookup(vrf, iface uint16, addr netip.Addr) (*Nexthop, bool) {
	if iface == IfaceUndef {
		candidates := m.byAddr[vrfAddr{vrf: vrf, addr: addr}]
		if len(candidates) == 0 {
			return nil, false
		}
		return candidates[0], true
	}

	nh, ok := m.byKey[Key{VRF: vrf, Iface: iface, Addr: addr}]
	return nh, ok
}

// Incref increments nh's reference count. It is called whenever a route
// table entry starts pointing at nh.
func (m *Pool) Incref(nh *Nexthop) {
	nh.RefCount++
}

// Decref decrements nh's reference count. If it reaches zero, the pool's
// free callback runs (it must drop all referencing routes), after which
// the slot is cleared and made available for reuse.
func (m *Pool) Decref(nh *Nexthop) {
	nh.RefCount--
	if nh.RefCount > 0 {
		return
	}
	if nh.RefCount < 0 {
		panic("nexthop: ref_count went negative")
	}

	if m.freeFn != nil {
		m.freeFn(nh)
	}

	m.clear(nh)
}

func (m *Pool) clear(nh *Nexthop) {
	delete(m.byKey, nh.Key)

	va := vrfAddr{vrf: nh.VRF, addr: nh.Addr}
	candidates := m.byAddr[va]
	for i, c := range candidates {
		if c == nh {
			candidates = append(candidates[:i], candidates[i+1:]...)
			break
		}
	}
	if len(candidates) == 0 {
		delete(m.byAddr, va)
	} else {
		m.byAddr[va] = candidates
	}

	nh.Held.Purge()

	slot := nh.slot
	m.slots[slot] = Nexthop{}
	m.free[slot] = true
}

// Iterate visits every live next-hop exactly once. The visitor must not
// mutate the pool.
func (m *Pool) Iterate(visitor func(*Nexthop)) {
	for i, isFree := range m.free {
		if !isFree {
			visitor(&m.slots[i])
		}
	}
}

// Len returns the number of live next-hops.
func (m *Pool) Len() int {
	return len(m.byKey)
}
