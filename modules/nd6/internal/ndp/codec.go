// Package ndp encodes and decodes RFC 4861 Neighbor Solicitation and
// Neighbor Advertisement messages, and applies the receive-side
// validation rules from RFC 4861 §7.1.1/§7.1.2.
//
// It builds on gopacket/layers rather than hand-rolling ICMPv6 byte
// layout, the same way the rest of this codebase's test fixtures
// construct packets.
package ndp

import (
	"errors"
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// Validation errors returned by ParseNS and ParseNA. Callers should
// silently drop the packet on any of these rather than propagate them
// to a caller-visible API.
var (
	ErrMalformed         = errors.New("ndp: malformed icmpv6 packet")
	ErrBadHopLimit       = errors.New("ndp: hop limit is not 255")
	ErrBadCode           = errors.New("ndp: icmpv6 code is not 0")
	ErrTargetMulticast   = errors.New("ndp: target address is multicast")
	ErrUnspecifiedSrcOpt = errors.New("ndp: unspecified source address carries a source link-layer option")
	ErrUnspecifiedSrcDst = errors.New("ndp: unspecified source address but destination is not solicited-node multicast")
)

// NeighborSolicitation is a decoded, validated NS message.
type NeighborSolicitation struct {
	Target          netip.Addr
	SourceLLAddr    [6]byte
	HasSourceLLAddr bool
}

// NeighborAdvertisement is a decoded, validated NA message.
type NeighborAdvertisement struct {
	Target          netip.Addr
	TargetLLAddr    [6]byte
	HasTargetLLAddr bool
	Router          bool
	Solicited       bool
	Override        bool
}

// ParseNS decodes and validates an ICMPv6 Neighbor Solicitation. src,
// dst and hopLimit come from the enclosing IPv6 header; payload is the
// ICMPv6 message itself.
func ParseNS(src, dst netip.Addr, hopLimit uint8, payload []byte) (*NeighborSolicitation, error) {
	if hopLimit != 255 {
		return nil, ErrBadHopLimit
	}
	// RFC 4861 requires the ICMP length be 24 octets or more (type, code,
	// checksum, reserved, target address, with options past that).
	if len(payload) < 24 {
		return nil, ErrMalformed
	}

	icmp, ns, err := decodeNS(payload)
	if err != nil {
		return nil, err
	}
	if icmp.TypeCode.Code() != 0 {
		return nil, ErrBadCode
	}

	target, ok := netip.AddrFromSlice(ns.TargetAddress)
	if !ok {
		return nil, ErrMalformed
	}
	target = target.Unmap()
	if target.IsMulticast() {
		return nil, ErrTargetMulticast
	}

	out := &NeighborSolicitation{Target: target}
	for _, opt := range ns.Options {
		if opt.Type == layers.ICMPv6OptSourceAddress && len(opt.Data) >= 6 {
			copy(out.SourceLLAddr[:], opt.Data[:6])
			out.HasSourceLLAddr = true
		}
	}

	if src.IsUnspecified() {
		if out.HasSourceLLAddr {
			return nil, ErrUnspecifiedSrcOpt
		}
		if !isSolicitedNodeMulticast(dst, target) {
			return nil, ErrUnspecifiedSrcDst
		}
	}

	return out, nil
}

// ParseNA decodes and validates an ICMPv6 Neighbor Advertisement.
func ParseNA(hopLimit uint8, payload []byte) (*NeighborAdvertisement, error) {
	if hopLimit != 255 {
		return nil, ErrBadHopLimit
	}

	icmp, na, err := decodeNA(payload)
	if err != nil {
		return nil, err
	}
	if icmp.TypeCode.Code() != 0 {
		return nil, ErrBadCode
	}

	target, ok := netip.AddrFromSlice(na.TargetAddress)
	if !ok {
		return nil, ErrMalformed
	}
	target = target.Unmap()
	if target.IsMulticast() {
		return nil, ErrTargetMulticast
	}

	out := &NeighborAdvertisement{
		Target:    target,
		Router:    na.Flags&0x80 != 0,
		Solicited: na.Flags&0x40 != 0,
		Override:  na.Flags&0x20 != 0,
	}
	for _, opt := range na.Options {
		if opt.Type == layers.ICMPv6OptTargetAddress && len(opt.Data) >= 6 {
			copy(out.TargetLLAddr[:], opt.Data[:6])
			out.HasTargetLLAddr = true
		}
	}

	return out, nil
}

func decodeNS(payload []byte) (*layers.ICMPv6, *layers.ICMPv6NeighborSolicitation, error) {
	pkt := gopacket.NewPacket(payload, layers.LayerTypeICMPv6, gopacket.NoCopy)
	icmpLayer := pkt.Layer(layers.LayerTypeICMPv6)
	nsLayer := pkt.Layer(layers.LayerTypeICMPv6NeighborSolicitation)
	if icmpLayer == nil || nsLayer == nil {
		return nil, nil, ErrMalformed
	}
	return icmpLayer.(*layers.ICMPv6), nsLayer.(*layers.ICMPv6NeighborSolicitation), nil
}

func decodeNA(payload []byte) (*layers.ICMPv6, *layers.ICMPv6NeighborAdvertisement, error) {
	pkt := gopacket.NewPacket(payload, layers.LayerTypeICMPv6, gopacket.NoCopy)
	icmpLayer := pkt.Layer(layers.LayerTypeICMPv6)
	naLayer := pkt.Layer(layers.LayerTypeICMPv6NeighborAdvertisement)
	if icmpLayer == nil || naLayer == nil {
		return nil, nil, ErrMalformed
	}
	return icmpLayer.(*layers.ICMPv6), naLayer.(*layers.ICMPv6NeighborAdvertisement), nil
}

// isSolicitedNodeMulticast reports whether dst is the solicited-node
// multicast address derived from target (ff02::1:ffXX:XXXX built from
// target's low 24 bits).
func isSolicitedNodeMulticast(dst, target netip.Addr) bool {
	want := SolicitedNodeMulticast(target)
	return dst == want
}

// SolicitedNodeMulticast derives the solicited-node multicast address
// ff02::1:ffXX:XXXX for target.
func SolicitedNodeMulticast(target netip.Addr) netip.Addr {
	b := target.As16()
	out := [16]byte{0xff, 0x02}
	out[11] = 0x01
	out[12] = 0xff
	out[13] = b[13]
	out[14] = b[14]
	out[15] = b[15]
	return netip.AddrFrom16(out)
}

// BuildNS serializes an outgoing Neighbor Solicitation ICMPv6 payload.
// src and dst are the enclosing IPv6 header's addresses, needed only to
// compute the ICMPv6 checksum's pseudo-header; they are not otherwise
// part of the returned payload. srcLLAddr is included as a source
// link-layer address option only when includeSrcLLAddr is set; BuildNS
// does not look at src to decide.
func BuildNS(src, dst, target netip.Addr, srcLLAddr [6]byte, includeSrcLLAddr bool) ([]byte, error) {
	ns := &layers.ICMPv6NeighborSolicitation{
		TargetAddress: net.IP(target.AsSlice()),
	}
	if includeSrcLLAddr {
		ns.Options = layers.ICMPv6Options{
			{Type: layers.ICMPv6OptSourceAddress, Data: srcLLAddr[:]},
		}
	}

	icmp := &layers.ICMPv6{
		TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeNeighborSolicitation, 0),
	}

	return serialize(icmp, ns, src, dst)
}

// BuildNA serializes an outgoing Neighbor Advertisement ICMPv6 payload.
func BuildNA(src, dst, target netip.Addr, targetLLAddr [6]byte, router, solicited, override bool) ([]byte, error) {
	var flags uint8
	if router {
		flags |= 0x80
	}
	if solicited {
		flags |= 0x40
	}
	if override {
		flags |= 0x20
	}

	na := &layers.ICMPv6NeighborAdvertisement{
		Flags:         flags,
		TargetAddress: net.IP(target.AsSlice()),
		Options: layers.ICMPv6Options{
			{Type: layers.ICMPv6OptTargetAddress, Data: targetLLAddr[:]},
		},
	}

	icmp := &layers.ICMPv6{
		TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeNeighborAdvertisement, 0),
	}

	return serialize(icmp, na, src, dst)
}

// serialize writes icmp followed by payload, using a synthetic IPv6
// layer only to seed the checksum's pseudo-header; that layer itself is
// not part of the returned bytes.
func serialize(icmp *layers.ICMPv6, payload gopacket.SerializableLayer, src, dst netip.Addr) ([]byte, error) {
	ip6 := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolICMPv6,
		HopLimit:   255,
		SrcIP:      net.IP(src.AsSlice()),
		DstIP:      net.IP(dst.AsSlice()),
	}
	if err := icmp.SetNetworkLayerForChecksum(ip6); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, icmp, payload); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}
