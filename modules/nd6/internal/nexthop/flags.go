package nexthop

import (
	"strings"

	"github.com/vishvananda/netlink"
)

// Flags is the bitmask of next-hop attributes.
type Flags uint16

const (
	// Static next-hops were configured administratively and never
	// auto-expire regardless of what other events arrive for them.
	Static Flags = 1 << iota
	// Local marks a next-hop that represents one of our own addresses.
	Local
	// Link marks a next-hop that represents a directly connected
	// subnet's route, as opposed to a specific host.
	Link
	// Gateway marks a next-hop reached indirectly via a gateway route.
	Gateway
	// Reachable marks a next-hop whose link-layer address is known and
	// believed current.
	Reachable
	// Stale marks a next-hop whose link-layer address is known but has
	// not been confirmed reachable recently.
	Stale
	// Pending marks a next-hop with an outstanding NS probe.
	Pending
	// Failed marks a next-hop whose probe budget was exhausted without
	// an answer.
	Failed
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{Static, "STATIC"},
	{Local, "LOCAL"},
	{Link, "LINK"},
	{Gateway, "GATEWAY"},
	{Reachable, "REACHABLE"},
	{Stale, "STALE"},
	{Pending, "PENDING"},
	{Failed, "FAILED"},
}

// Has reports whether all bits in want are set in m.
func (m Flags) Has(want Flags) bool {
	return m&want == want
}

// Any reports whether any bit in want is set in m.
func (m Flags) Any(want Flags) bool {
	return m&want != 0
}

// String renders the set flags as a "|"-joined list, e.g. "STATIC|REACHABLE".
func (m Flags) String() string {
	var names []string
	for _, f := range flagNames {
		if m.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// NUDState projects Flags onto the kernel's neighbour unreachability
// detection states, purely for log and API readability; this package
// never performs netlink syscalls itself.
func (m Flags) NUDState() int {
	switch {
	case m.Has(Static):
		return netlink.NUD_PERMANENT
	case m.Has(Failed):
		return netlink.NUD_FAILED
	case m.Has(Reachable) && !m.Has(Stale):
		return netlink.NUD_REACHABLE
	case m.Has(Pending) && m.Has(Stale):
		return netlink.NUD_PROBE
	case m.Has(Pending):
		return netlink.NUD_INCOMPLETE
	case m.Has(Stale):
		return netlink.NUD_STALE
	default:
		return netlink.NUD_NONE
	}
}
