// Package iface is a minimal reference implementation of the interface
// inventory collaborator, sufficient to make the resolution subsystem
// runnable and testable without a real dataplane attached.
package iface

import "net/netip"

// Interface describes one egress/ingress interface.
type Interface struct {
	ID   uint16
	VRF  uint16
	MAC  [6]byte
	// Addrs lists the interface's configured IPv6 prefixes, in the
	// order PreferredAddr should prefer them.
	Addrs []netip.Prefix
}

// Inventory is a lookup table of interfaces by id.
type Inventory struct {
	byID map[uint16]*Interface
}

// NewInventory returns an empty Inventory.
func NewInventory() *Inventory {
	return &Inventory{byID: make(map[uint16]*Interface)}
}

// Add registers an interface, overwriting any previous entry with the
// same id.
func (m *Inventory) Add(ifc *Interface) {
	m.byID[ifc.ID] = ifc
}

// FromID returns the interface with the given id.
func (m *Inventory) FromID(id uint16) (*Interface, bool) {
	ifc, ok := m.byID[id]
	return ifc, ok
}

// MACOf returns the interface's link-layer address.
func (m *Inventory) MACOf(id uint16) ([6]byte, bool) {
	ifc, ok := m.byID[id]
	if !ok {
		return [6]byte{}, false
	}
	return ifc.MAC, true
}

// PreferredAddr returns a local address on iface suitable as the IPv6
// source address when probing dst.
//
// It prefers an address sharing dst's on-link prefix, falling back to
// the interface's first configured address. It reports ok=false if the
// interface has no address at all.
func (m *Inventory) PreferredAddr(ifaceID uint16, dst netip.Addr) (netip.Addr, bool) {
	ifc, ok := m.byID[ifaceID]
	if !ok || len(ifc.Addrs) == 0 {
		return netip.Addr{}, false
	}

	for _, p := range ifc.Addrs {
		if p.Contains(dst) {
			return p.Addr(), true
		}
	}
	return ifc.Addrs[0].Addr(), true
}
