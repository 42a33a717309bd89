package icmp

import (
	"context"
	"net"
	"time"

	"golang.org/x/net/icmp"

	"github.com/nexusshell/nexusshell/internal/nxerrors"
)

const (
	typeTimeExceededV4 = 11
	typeTimeExceededV6 = 3
)

// Hop is one traceroute result: the responder (nil if the probe timed
// out), the round trip time, and whether this hop was the final
// destination.
type Hop struct {
	TTL     int
	Addr    net.IP
	RTT     time.Duration
	TimedOut bool
	Reached bool
}

// Traceroute reuses the engine's send path with an increasing TTL
// override per probe (spec.md §4.7: "Traceroute ... reusing the send
// path with a TTL override"), stopping once a probe's reply comes
// from the target itself or maxHops is reached.
func Traceroute(ctx context.Context, cfg *Config, maxHops int, probeTimeout time.Duration) ([]Hop, error) {
	network, bind := "ip4:icmp", "0.0.0.0"
	wantTimeExceeded := byte(typeTimeExceededV4)
	wantEchoReply := byte(replyEchoV4)
	if cfg.IsIPv6() {
		network, bind = "ip6:ipv6-icmp", "::"
		wantTimeExceeded = typeTimeExceededV6
		wantEchoReply = replyEchoV6
	}

	conn, err := icmp.ListenPacket(network, bind)
	if err != nil {
		return nil, nxerrors.NewUnsupportedOperation("icmp: traceroute: " + err.Error())
	}
	defer conn.Close()

	hops := make([]Hop, 0, maxHops)
	id := uint16(0xABCD)

	for ttl := 1; ttl <= maxHops; ttl++ {
		if ctx.Err() != nil {
			return hops, ctx.Err()
		}
		if !cfg.IsIPv6() {
			if p := conn.IPv4PacketConn(); p != nil {
				_ = p.SetTTL(ttl)
			}
		}

		payload := make([]byte, 16)
		var pkt []byte
		if cfg.IsIPv6() {
			pkt = BuildEchoRequestV6(net.IPv6zero, cfg.Target, id, uint16(ttl), payload)
		} else {
			pkt = BuildEchoRequestV4(id, uint16(ttl), payload)
		}

		sentAt := time.Now()
		if _, err := conn.WriteTo(pkt, &net.IPAddr{IP: cfg.Target}); err != nil {
			hops = append(hops, Hop{TTL: ttl, TimedOut: true})
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(probeTimeout))
		buf := make([]byte, 1500)
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			hops = append(hops, Hop{TTL: ttl, TimedOut: true})
			continue
		}

		body := buf[:n]
		if !cfg.IsIPv6() {
			if stripped, ok := StripIPv4Header(body); ok {
				body = stripped
			}
		}
		parsed, ok := ParseReply(body)
		if !ok {
			hops = append(hops, Hop{TTL: ttl, TimedOut: true})
			continue
		}

		rtt := time.Since(sentAt)
		var addr net.IP
		if ipAddr, ok := peer.(*net.IPAddr); ok {
			addr = ipAddr.IP
		}

		switch parsed.Type {
		case wantTimeExceeded:
			hops = append(hops, Hop{TTL: ttl, Addr: addr, RTT: rtt})
		case wantEchoReply:
			hops = append(hops, Hop{TTL: ttl, Addr: addr, RTT: rtt, Reached: true})
			return hops, nil
		default:
			hops = append(hops, Hop{TTL: ttl, Addr: addr, RTT: rtt})
		}
	}
	return hops, nil
}
