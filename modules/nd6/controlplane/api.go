package nd6

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/yanet-platform/nd6/modules/nd6/internal/nexthop"
	"github.com/yanet-platform/nd6/modules/nd6/internal/rtable"
)

// NhAddRequest describes an administrative next-hop creation.
type NhAddRequest struct {
	VRF     uint16
	Iface   uint16
	Addr    netip.Addr
	LLAddr  [6]byte
	ExistOk bool
}

// NhAdd creates a STATIC|REACHABLE next-hop and installs the
// corresponding /128 host route. It validates that addr is specified
// and unicast and that the target interface exists.
//
// If ExistOk is set and a record already matching iface and lladdr
// exists, NhAdd succeeds without creating a duplicate; otherwise a
// conflicting existing record is reported as ErrExists.
func (c *Controller) NhAdd(req NhAddRequest) error {
	if !req.Addr.IsValid() || req.Addr.IsUnspecified() || req.Addr.IsMulticast() {
		return fmt.Errorf("%w: address must be a specified unicast address", ErrInvalid)
	}
	if _, ok := c.ifaces.FromID(req.Iface); !ok {
		return fmt.Errorf("%w: interface %d does not exist", ErrInvalid, req.Iface)
	}

	if existing, ok := c.pool.Lookup(req.VRF, req.Iface, req.Addr); ok {
		if req.ExistOk && existing.LLAddr == req.LLAddr {
			return nil
		}
		return fmt.Errorf("%w: next-hop %s already exists", ErrExists, req.Addr)
	}

	nh, err := c.pool.NewNexthop(req.VRF, req.Iface, req.Addr)
	if err != nil {
		return translatePoolError(err)
	}
	nh.OutputIface = req.Iface
	nh.LLAddr = req.LLAddr
	nh.Flags = nexthop.Static | nexthop.Reachable
	nh.LastReply = c.clk.Now()

	c.pool.Incref(nh)
	c.routes.Insert(req.VRF, &rtable.Route{
		Prefix: netip.PrefixFrom(req.Addr, req.Addr.BitLen()),
		Iface:  req.Iface,
	})

	return nil
}

// NhDelRequest describes an administrative next-hop removal.
type NhDelRequest struct {
	VRF       uint16
	Iface     uint16 // nexthop.IfaceUndef matches any interface
	Addr      netip.Addr
	MissingOk bool
}

// NhDel removes a next-hop's /128 host route, which drops the pool's
// last reference and reclaims the record. It refuses to remove a
// next-hop still referenced by more than the one route it owns, or one
// carrying LOCAL, LINK or GATEWAY.
func (c *Controller) NhDel(req NhDelRequest) error {
	nh, ok := c.pool.Lookup(req.VRF, req.Iface, req.Addr)
	if !ok {
		if req.MissingOk {
			return nil
		}
		return fmt.Errorf("%w: next-hop %s", ErrNotFound, req.Addr)
	}

	if nh.Flags.Any(nexthop.Local | nexthop.Link | nexthop.Gateway) {
		return fmt.Errorf("%w: next-hop %s is owned by a connected or local route", ErrBusy, req.Addr)
	}
	if nh.RefCount > 1 {
		return fmt.Errorf("%w: next-hop %s is still referenced", ErrBusy, req.Addr)
	}

	c.routes.Remove(nh.VRF, netip.PrefixFrom(nh.Addr, nh.Addr.BitLen()))
	c.pool.Decref(nh)
	return nil
}

// NhEntry is the flat, API-facing projection of a next-hop record.
type NhEntry struct {
	VRF        uint16
	Iface      uint16
	Addr       netip.Addr
	LLAddr     [6]byte
	Flags      nexthop.Flags
	// NUDState is Flags projected onto the kernel's neighbour
	// unreachability detection states (NUD_REACHABLE and friends), for
	// operators used to reading `ip -6 neigh` output.
	NUDState   int
	AgeSeconds float64
	RefCount   int32
}

// AllVRFs disables NhList's VRF filter.
const AllVRFs = ^uint16(0)

// NhList projects every non-multicast next-hop in the pool into a flat
// DTO, optionally filtered to a single VRF.
func (c *Controller) NhList(vrf uint16) []NhEntry {
	var out []NhEntry
	now := c.clk.Now()

	c.pool.Iterate(func(nh *nexthop.Nexthop) {
		if nh.Addr.IsMulticast() {
			return
		}
		if vrf != AllVRFs && nh.VRF != vrf {
			return
		}

		var age float64
		if nh.LastReply != 0 {
			age = now.Sub(nh.LastReply).Seconds()
		}

		out = append(out, NhEntry{
			VRF:        nh.VRF,
			Iface:      nh.Iface,
			Addr:       nh.Addr,
			LLAddr:     nh.LLAddr,
			Flags:      nh.Flags,
			NUDState:   nh.Flags.NUDState(),
			AgeSeconds: age,
			RefCount:   nh.RefCount,
		})
	})
	return out
}

func translatePoolError(err error) error {
	switch {
	case errors.Is(err, nexthop.ErrNoSpace):
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	case errors.Is(err, nexthop.ErrExists):
		return fmt.Errorf("%w: %v", ErrExists, err)
	default:
		return err
	}
}
