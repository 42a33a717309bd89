// Package icmp implements the C8 raw ICMP engine (spec.md §4.7): echo
// request/reply packet construction with our own checksum routines (not
// delegated to golang.org/x/net/icmp's auto-checksumming Marshal, per
// spec.md's "own checksum routines" requirement), a sender/receiver
// goroutine pair coordinating over a bounded channel, per-sequence
// outstanding-packet bookkeeping, and an RTT statistics pipeline,
// grounded on _examples/original_source/crates/nxsh_builtins/src/ping.rs.
package icmp

import (
	"encoding/binary"
	"net"
)

const (
	typeEchoRequestV4 = 8
	typeEchoRequestV6 = 128
	codeEcho          = 0

	headerLen = 8 // type(1) + code(1) + checksum(2) + id(2) + seq(2)
)

// BuildEchoRequestV4 lays out an 8-byte ICMPv4 header (type=8, code=0,
// checksum, id, seq) followed by payload, with the checksum computed
// over the whole packet (spec.md §4.7).
func BuildEchoRequestV4(id, seq uint16, payload []byte) []byte {
	pkt := make([]byte, headerLen+len(payload))
	pkt[0] = typeEchoRequestV4
	pkt[1] = codeEcho
	binary.BigEndian.PutUint16(pkt[4:6], id)
	binary.BigEndian.PutUint16(pkt[6:8], seq)
	copy(pkt[headerLen:], payload)

	sum := checksum(pkt)
	binary.BigEndian.PutUint16(pkt[2:4], sum)
	return pkt
}

// BuildEchoRequestV6 lays out an ICMPv6 echo request (type=128) whose
// checksum is computed over a pseudo-header {src, dst, upper-layer
// length, next-header=58} concatenated with the ICMPv6 header and
// payload, per spec.md §4.7.
func BuildEchoRequestV6(src, dst net.IP, id, seq uint16, payload []byte) []byte {
	pkt := make([]byte, headerLen+len(payload))
	pkt[0] = typeEchoRequestV6
	pkt[1] = codeEcho
	binary.BigEndian.PutUint16(pkt[4:6], id)
	binary.BigEndian.PutUint16(pkt[6:8], seq)
	copy(pkt[headerLen:], payload)

	pseudo := pseudoHeaderV6(src, dst, len(pkt))
	sum := checksumWithPseudoHeader(pseudo, pkt)
	binary.BigEndian.PutUint16(pkt[2:4], sum)
	return pkt
}

func pseudoHeaderV6(src, dst net.IP, upperLayerLen int) []byte {
	ph := make([]byte, 40)
	copy(ph[0:16], src.To16())
	copy(ph[16:32], dst.To16())
	binary.BigEndian.PutUint32(ph[32:36], uint32(upperLayerLen))
	ph[39] = 58 // ICMPv6 next-header
	return ph
}

// checksum is the 16-bit one's-complement sum of data (checksum field
// assumed already zeroed by the caller), padded to even length, with
// the 32-bit accumulator's carries folded back in until it fits 16
// bits, then complemented.
func checksum(data []byte) uint16 {
	return checksumWithPseudoHeader(nil, data)
}

func checksumWithPseudoHeader(pseudo, data []byte) uint16 {
	var sum uint32
	add := func(b []byte) {
		n := len(b)
		for i := 0; i+1 < n; i += 2 {
			sum += uint32(b[i])<<8 | uint32(b[i+1])
		}
		if n%2 == 1 {
			sum += uint32(b[n-1]) << 8
		}
	}
	add(pseudo)
	add(data)

	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// ParsedReply is the subset of a received ICMP/ICMPv6 message this
// engine cares about: identity fields to match against the sequence
// map, plus whatever the kernel delivered around it.
type ParsedReply struct {
	Type byte
	Code byte
	ID   uint16
	Seq  uint16
	Data []byte
}

// ParseReply reads a type/code/checksum/id/seq header out of buf. For
// IPv4, the caller must first strip the IP header the kernel delivers
// with raw ICMP sockets (spec.md §4.7); StripIPv4Header does that.
func ParseReply(buf []byte) (ParsedReply, bool) {
	if len(buf) < headerLen {
		return ParsedReply{}, false
	}
	return ParsedReply{
		Type: buf[0],
		Code: buf[1],
		ID:   binary.BigEndian.Uint16(buf[4:6]),
		Seq:  binary.BigEndian.Uint16(buf[6:8]),
		Data: buf[headerLen:],
	}, true
}

// StripIPv4Header removes the variable-length IPv4 header a raw ICMPv4
// socket delivers in front of every received packet, returning the
// ICMP payload that starts at the header's IHL-derived offset.
func StripIPv4Header(buf []byte) ([]byte, bool) {
	if len(buf) < 20 {
		return nil, false
	}
	ihl := int(buf[0]&0x0F) * 4
	if ihl < 20 || len(buf) < ihl {
		return nil, false
	}
	return buf[ihl:], true
}
