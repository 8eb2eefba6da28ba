// Package rtable is a minimal reference implementation of the route-table
// collaborator: longest-prefix-match lookup from a destination address to
// the next-hop that should carry it.
//
// It is built on the same array-of-maps trie shape used elsewhere in this
// codebase for other longest-prefix-match tables, generalized here over a
// netip.Prefix key.
package rtable

import (
	"maps"
	"net/netip"
)

// addrQuery adapts a netip.Addr into a lookup query against a trie keyed
// by netip.Prefix.
type addrQuery netip.Addr

func (q addrQuery) BitLen() int {
	return netip.Addr(q).BitLen()
}

func (q addrQuery) Prefix(bits int) (netip.Prefix, error) {
	return netip.Addr(q).Prefix(bits)
}

// trie is an array of maps, one per prefix length, mirroring a trie
// without the pointer-chasing of one. Index 128 holds /128 routes, index
// 0 holds the default route.
type trie [129]map[netip.Prefix]*Route

func newTrie() trie {
	var t trie
	for i := range t {
		t[i] = make(map[netip.Prefix]*Route)
	}
	return t
}

func (t *trie) lookup(addr netip.Addr) (*Route, bool) {
	q := addrQuery(addr)
	bitLen := q.BitLen()
	for bits := bitLen; bits >= 0; bits-- {
		prefix, _ := q.Prefix(bits)
		if r, ok := t[bits][prefix]; ok {
			return r, true
		}
	}
	return nil, false
}

func (t *trie) insert(prefix netip.Prefix, r *Route) {
	prefix = prefix.Masked()
	t[prefix.Bits()][prefix] = r
}

func (t *trie) remove(prefix netip.Prefix) {
	prefix = prefix.Masked()
	delete(t[prefix.Bits()], prefix)
}

func (t *trie) len() int {
	n := 0
	for i := range t {
		n += len(t[i])
	}
	return n
}

func (t trie) dump() map[netip.Prefix]*Route {
	out := make(map[netip.Prefix]*Route, t.len())
	for i := len(t) - 1; i >= 0; i-- {
		maps.Copy(out, t[i])
	}
	return out
}
