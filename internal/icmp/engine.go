package icmp

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"

	"github.com/nexusshell/nexusshell/internal/nxerrors"
)

const replyEchoV4 = 0
const replyEchoV6 = 129

// Reply is one matched echo reply the receiver goroutine
// hands the caller, for per-packet reporting (e.g. ping's "64 bytes
// from ...: icmp_seq=1 ttl=64 time=0.123 ms" line).
type Reply struct {
	Seq       uint16
	ID        uint16
	RTT       time.Duration
	Bytes     int
	Timestamp time.Time
}

// Engine owns one raw ICMP socket and the Stats accumulator for a
// ping session. Cancellation is cooperative via a shared atomic flag
// checked at every loop iteration in both the sender and the receiver
// (spec.md §5 Scheduling / §5 Cancellation), not context cancellation
// alone, so a caller can stop a flood mid-packet without waiting on
// the blocking socket read to notice context.Done.
type Engine struct {
	cfg     *Config
	conn    *icmp.PacketConn
	stats   *Stats
	id      uint16
	running atomic.Bool
}

// Open creates the raw socket for cfg.Target's address family. IPv4
// uses "ip4:icmp"; IPv6 uses "ip6:ipv6-icmp" — both require the
// privilege IsRoot reports on Unix (spec.md §9).
func Open(cfg *Config) (*Engine, error) {
	network, bind := "ip4:icmp", "0.0.0.0"
	if cfg.IsIPv6() {
		network, bind = "ip6:ipv6-icmp", "::"
	}
	conn, err := icmp.ListenPacket(network, bind)
	if err != nil {
		return nil, nxerrors.NewUnsupportedOperation(fmt.Sprintf("icmp: open raw socket: %v", err))
	}
	if !cfg.IsIPv6() {
		if p := conn.IPv4PacketConn(); p != nil {
			_ = p.SetTTL(cfg.TTL)
		}
	}

	e := &Engine{
		cfg:   cfg,
		conn:  conn,
		stats: NewStats(),
		id:    uint16(os.Getpid() & 0xffff),
	}
	e.running.Store(true)
	return e, nil
}

func (e *Engine) Close() error { return e.conn.Close() }

// Cancel requests the sender/receiver loops stop at their next
// iteration (spec.md §5 Cancellation).
func (e *Engine) Cancel() { e.running.Store(false) }

func (e *Engine) Stats() *Stats { return e.stats }

// Run drives one full ping session: it sends cfg.Count echo requests
// (or runs until Cancel if Count is 0) at cfg.Interval, and relays
// each matched Reply to onReply as it arrives. It returns once every
// request has either been answered or swept as a timeout.
func (e *Engine) Run(ctx context.Context, onReply func(Reply)) (Snapshot, error) {
	replies := make(chan Reply, 64)
	go e.receiveLoop(ctx, replies)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	sweepTicker := time.NewTicker(e.cfg.Timeout / 4)
	defer sweepTicker.Stop()

	seq := uint16(0)
	sent := 0
	for e.running.Load() {
		select {
		case <-ctx.Done():
			e.running.Store(false)
		case r := <-replies:
			onReply(r)
			continue
		case <-sweepTicker.C:
			e.stats.SweepTimeouts(e.cfg.Timeout)
			continue
		case <-ticker.C:
		}
		if !e.running.Load() {
			break
		}
		if e.cfg.Count > 0 && sent >= e.cfg.Count {
			break
		}
		if err := e.sendEcho(seq); err != nil {
			e.stats.AddError()
		}
		seq++
		sent++
		if e.cfg.Count > 0 && sent >= e.cfg.Count {
			break
		}
	}

	// Drain replies/timeouts for up to one more timeout window so
	// in-flight requests get a fair chance to resolve before the
	// snapshot is taken.
	deadline := time.After(e.cfg.Timeout)
	for e.stats.OutstandingCount() > 0 {
		select {
		case r := <-replies:
			onReply(r)
		case <-deadline:
			e.stats.SweepTimeouts(0)
			return e.stats.Snapshot(), nil
		case <-time.After(50 * time.Millisecond):
			e.stats.SweepTimeouts(e.cfg.Timeout)
		}
	}
	return e.stats.Snapshot(), nil
}

func (e *Engine) sendEcho(seq uint16) error {
	payload := make([]byte, e.cfg.PayloadSize)
	binaryPutUint64(payload, uint64(time.Now().UnixNano()))

	var pkt []byte
	var dst net.Addr
	if e.cfg.IsIPv6() {
		local := e.localAddr()
		pkt = BuildEchoRequestV6(local, e.cfg.Target, e.id, seq, payload)
		dst = &net.IPAddr{IP: e.cfg.Target}
	} else {
		pkt = BuildEchoRequestV4(e.id, seq, payload)
		dst = &net.IPAddr{IP: e.cfg.Target}
	}

	e.stats.AddSent(seq, e.id, time.Now())
	_, err := e.conn.WriteTo(pkt, dst)
	return err
}

// localAddr best-efforts a source address for the IPv6 pseudo-header
// checksum by dialing (without sending) toward the target.
func (e *Engine) localAddr() net.IP {
	conn, err := net.Dial("udp6", net.JoinHostPort(e.cfg.Target.String(), "0"))
	if err != nil {
		return net.IPv6zero
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP
	}
	return net.IPv6zero
}

func (e *Engine) receiveLoop(ctx context.Context, out chan<- Reply) {
	buf := make([]byte, 1500)
	for e.running.Load() {
		if ctx.Err() != nil {
			return
		}
		_ = e.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := e.conn.ReadFrom(buf)
		if err != nil {
			continue // deadline or transient error; loop re-checks running
		}

		body := buf[:n]
		if !e.cfg.IsIPv6() {
			stripped, ok := StripIPv4Header(body)
			if !ok {
				e.stats.AddCorrupted()
				continue
			}
			body = stripped
		}

		parsed, ok := ParseReply(body)
		if !ok {
			e.stats.AddCorrupted()
			continue
		}
		wantType := byte(replyEchoV4)
		if e.cfg.IsIPv6() {
			wantType = replyEchoV6
		}
		if parsed.Type != wantType {
			continue // not an echo reply (e.g. time exceeded, dest unreachable)
		}

		now := time.Now()
		rtt, matched := e.stats.AddReply(parsed.Seq, parsed.ID, now)
		if matched {
			select {
			case out <- Reply{Seq: parsed.Seq, ID: parsed.ID, RTT: rtt, Bytes: n, Timestamp: now}:
			default:
			}
		}
	}
}

func binaryPutUint64(b []byte, v uint64) {
	for i := 0; i < 8 && i < len(b); i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
}
