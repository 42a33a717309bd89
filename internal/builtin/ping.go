package builtin

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nexusshell/nexusshell/internal/icmp"
	"github.com/nexusshell/nexusshell/internal/shell"
)

// RegisterPing installs the ping builtin (spec.md §4.7), separate from
// RegisterCore since it needs a raw socket and is the one builtin that
// talks to internal/icmp rather than the local shell/filesystem state.
func RegisterPing(r *Registry) {
	r.Register(New("ping", false, pingHandler))
}

// pingHandler parses ping's CLI flags (-c count, -i interval, -W
// timeout, -s payload size, -t ttl, -f flood, -q quiet, -D timestamp),
// runs one icmp.Engine session against the first non-flag argument, and
// formats spec.md §6's per-reply line plus a final summary. Exit code
// follows spec.md §4.7: 0 all replies received, 1 partial loss, 2 total
// loss or resolution failure.
func pingHandler(_ *shell.Context, args []string) Result {
	var target string
	opts := []icmp.Option{}
	flood := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() string {
			i++
			if i < len(args) {
				return args[i]
			}
			return ""
		}
		switch arg {
		case "-c":
			if n, err := strconv.Atoi(next()); err == nil {
				opts = append(opts, icmp.WithCount(n))
			}
		case "-i":
			if f, err := strconv.ParseFloat(next(), 64); err == nil {
				opts = append(opts, icmp.WithInterval(time.Duration(f*float64(time.Second))))
			}
		case "-W":
			if f, err := strconv.ParseFloat(next(), 64); err == nil {
				opts = append(opts, icmp.WithTimeout(time.Duration(f*float64(time.Second))))
			}
		case "-s":
			if n, err := strconv.Atoi(next()); err == nil {
				opts = append(opts, icmp.WithPayloadSize(n))
			}
		case "-t":
			if n, err := strconv.Atoi(next()); err == nil {
				opts = append(opts, icmp.WithTTL(n))
			}
		case "-f":
			flood = true
		case "-q":
			opts = append(opts, icmp.WithQuiet(true))
		case "-D":
			opts = append(opts, icmp.WithTimestamp(true))
		default:
			if !strings.HasPrefix(arg, "-") && target == "" {
				target = arg
			}
		}
	}
	opts = append(opts, icmp.WithFlood(flood))

	if target == "" {
		return Result{ExitCode: 2, Stderr: "ping: usage: ping [-c count] [-i interval] [-W timeout] [-s size] [-t ttl] [-f] [-q] [-D] host\n"}
	}

	ips, err := net.LookupIP(target)
	if err != nil || len(ips) == 0 {
		return Result{ExitCode: 2, Stderr: fmt.Sprintf("ping: cannot resolve %s: unknown host\n", target)}
	}

	cfg := icmp.NewConfig(ips[0], opts...)
	engine, err := icmp.Open(cfg)
	if err != nil {
		return Result{ExitCode: 2, Stderr: fmt.Sprintf("ping: %v\n", err)}
	}
	defer engine.Close()

	var out strings.Builder
	fmt.Fprintf(&out, "PING %s (%s): %d data bytes\n", target, cfg.Target, cfg.PayloadSize)

	onReply := func(r icmp.Reply) {
		if cfg.Quiet {
			return
		}
		line := fmt.Sprintf("%d bytes from %s: icmp_seq=%d ttl=%d time=%.3f ms\n",
			r.Bytes, cfg.Target, r.Seq, cfg.TTL, float64(r.RTT)/float64(time.Millisecond))
		if cfg.Timestamp {
			line = fmt.Sprintf("[%d] %s", r.Timestamp.Unix(), line)
		}
		out.WriteString(line)
	}

	snap, err := engine.Run(context.Background(), onReply)
	if err != nil {
		return Result{ExitCode: 2, Stderr: fmt.Sprintf("ping: %v\n", err)}
	}

	fmt.Fprintf(&out, "\n--- %s ping statistics ---\n", target)
	fmt.Fprintf(&out, "%d packets transmitted, %d received, %.1f%% packet loss\n",
		snap.Sent, snap.Received, snap.PacketLossPercent())
	if snap.Received > 0 {
		fmt.Fprintf(&out, "round-trip min/avg/max/stddev = %.3f/%.3f/%.3f/%.3f ms\n",
			snap.MinMS, snap.AvgMS, snap.MaxMS, snap.StdDevMS)
	}

	exitCode := 0
	switch {
	case snap.Received == 0:
		exitCode = 2
	case snap.Lost > 0:
		exitCode = 1
	}
	return Result{ExitCode: exitCode, Stdout: out.String(), Metrics: map[string]any{"snapshot": snap}}
}
