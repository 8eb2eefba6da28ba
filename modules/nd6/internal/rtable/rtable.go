package rtable

import (
	"errors"
	"net/netip"
)

// ErrNoRoute is returned by Lookup when no prefix in the table covers
// the queried address.
var ErrNoRoute = errors.New("rtable: no route")

// Route is one route-table entry: a destination prefix resolved to
// either a directly connected interface (Nexthop is the zero Addr, and
// the destination itself is the address to resolve) or a gateway
// (Nexthop holds the gateway's address).
type Route struct {
	Prefix  netip.Prefix
	Iface   uint16
	Nexthop netip.Addr // zero value means "on-link, resolve the destination directly"
}

// OnLink reports whether the route is a directly connected subnet
// route, as opposed to one reached via a gateway.
func (r *Route) OnLink() bool {
	return !r.Nexthop.IsValid()
}

// Table is a collection of per-VRF longest-prefix-match route tables.
type Table struct {
	vrfs map[uint16]trie
}

// New returns an empty Table.
func New() *Table {
	return &Table{vrfs: make(map[uint16]trie)}
}

// Insert adds or replaces the route for prefix within vrf.
func (m *Table) Insert(vrf uint16, r *Route) {
	t, ok := m.vrfs[vrf]
	if !ok {
		t = newTrie()
		m.vrfs[vrf] = t
	}
	t.insert(r.Prefix, r)
}

// Remove deletes the route for prefix within vrf, if any.
func (m *Table) Remove(vrf uint16, prefix netip.Prefix) {
	t, ok := m.vrfs[vrf]
	if !ok {
		return
	}
	t.remove(prefix)
}

// Lookup returns the longest-prefix match for dst within vrf.
func (m *Table) Lookup(vrf uint16, dst netip.Addr) (*Route, error) {
	t, ok := m.vrfs[vrf]
	if !ok {
		return nil, ErrNoRoute
	}
	r, ok := t.lookup(dst)
	if !ok {
		return nil, ErrNoRoute
	}
	return r, nil
}

// ResolveTarget returns the address that should actually be resolved to
// a link-layer address in order to forward to dst: dst itself for an
// on-link route, or the route's gateway otherwise.
func (m *Table) ResolveTarget(vrf uint16, dst netip.Addr) (netip.Addr, uint16, error) {
	r, err := m.Lookup(vrf, dst)
	if err != nil {
		return netip.Addr{}, 0, err
	}
	if r.OnLink() {
		return dst, r.Iface, nil
	}
	return r.Nexthop, r.Iface, nil
}

// Dump returns every route in vrf, keyed by prefix.
func (m *Table) Dump(vrf uint16) map[netip.Prefix]*Route {
	t, ok := m.vrfs[vrf]
	if !ok {
		return nil
	}
	return t.dump()
}

// Len returns the number of routes in vrf.
func (m *Table) Len(vrf uint16) int {
	t, ok := m.vrfs[vrf]
	if !ok {
		return 0
	}
	return t.len()
}
