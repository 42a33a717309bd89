// Command ping is the standalone ICMP ping/traceroute CLI (spec.md §6),
// a thin urfave/cli wrapper over internal/icmp with the same ping flags
// as the "ping" shell builtin (internal/builtin/ping.go) plus
// --traceroute/-T and --max-hops, for use outside a running NexusShell
// session.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/nexusshell/nexusshell/internal/icmp"
)

func main() {
	app := &cli.App{
		Name:      "ping",
		Usage:     "send ICMP echo requests",
		ArgsUsage: "<host>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"c"}, Usage: "stop after sending count packets"},
			&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Value: time.Second, Usage: "wait interval between packets"},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"W"}, Value: time.Second, Usage: "time to wait for a reply"},
			&cli.IntFlag{Name: "size", Aliases: []string{"s"}, Value: 56, Usage: "payload size in bytes"},
			&cli.IntFlag{Name: "ttl", Aliases: []string{"t"}, Value: 64, Usage: "IP time to live"},
			&cli.BoolFlag{Name: "flood", Aliases: []string{"f"}, Usage: "flood ping (root only)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only print the summary"},
			&cli.BoolFlag{Name: "timestamp", Aliases: []string{"D"}, Usage: "print a Unix timestamp before each line"},
			&cli.BoolFlag{Name: "traceroute", Aliases: []string{"T"}, Usage: "run a traceroute instead of a ping sweep"},
			&cli.IntFlag{Name: "max-hops", Value: 30, Usage: "traceroute: maximum TTL to probe"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return cli.Exit("ping: usage: ping [options] <host>", 2)
	}
	host := c.Args().First()

	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return cli.Exit(fmt.Sprintf("ping: cannot resolve %s", host), 2)
	}

	cfg := icmp.NewConfig(ips[0],
		icmp.WithCount(c.Int("count")),
		icmp.WithInterval(c.Duration("interval")),
		icmp.WithTimeout(c.Duration("timeout")),
		icmp.WithPayloadSize(c.Int("size")),
		icmp.WithTTL(c.Int("ttl")),
		icmp.WithFlood(c.Bool("flood")),
		icmp.WithQuiet(c.Bool("quiet")),
		icmp.WithTimestamp(c.Bool("timestamp")),
	)

	if c.Bool("traceroute") {
		return runTraceroute(c, cfg, host)
	}
	return runPing(cfg, host)
}

func runPing(cfg *icmp.Config, host string) error {
	engine, err := icmp.Open(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ping: %v", err), 2)
	}
	defer engine.Close()

	fmt.Printf("PING %s (%s): %d data bytes\n", host, cfg.Target, cfg.PayloadSize)

	quiet := cfg.Quiet
	onReply := func(r icmp.Reply) {
		if quiet {
			return
		}
		line := fmt.Sprintf("%d bytes from %s: icmp_seq=%d ttl=%d time=%.3f ms",
			r.Bytes, cfg.Target, r.Seq, cfg.TTL, float64(r.RTT.Microseconds())/1000)
		if cfg.Timestamp {
			line = fmt.Sprintf("[%d] %s", r.Timestamp.Unix(), line)
		}
		fmt.Println(line)
	}

	snap, err := engine.Run(context.Background(), onReply)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ping: %v", err), 2)
	}

	printSummary(host, snap)

	switch {
	case snap.Received == 0:
		return cli.Exit("", 2)
	case snap.Lost > 0:
		return cli.Exit("", 1)
	default:
		return nil
	}
}

func printSummary(host string, snap icmp.Snapshot) {
	loss := 0.0
	if snap.Sent > 0 {
		loss = float64(snap.Lost) / float64(snap.Sent) * 100
	}
	fmt.Printf("\n--- %s ping statistics ---\n", host)
	fmt.Printf("%d packets transmitted, %d received, %.1f%% packet loss\n", snap.Sent, snap.Received, loss)
	if snap.Received > 0 {
		fmt.Printf("rtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms\n", snap.MinMS, snap.AvgMS, snap.MaxMS, snap.StdDevMS)
	}
}

func runTraceroute(c *cli.Context, cfg *icmp.Config, host string) error {
	fmt.Printf("traceroute to %s (%s), %d hops max\n", host, cfg.Target, c.Int("max-hops"))

	hops, err := icmp.Traceroute(context.Background(), cfg, c.Int("max-hops"), cfg.Timeout)
	if err != nil {
		return cli.Exit(fmt.Sprintf("traceroute: %v", err), 2)
	}

	for _, hop := range hops {
		if hop.TimedOut {
			fmt.Printf("%2d  *\n", hop.TTL)
			continue
		}
		fmt.Printf("%2d  %s  %.3f ms\n", hop.TTL, hop.Addr, float64(hop.RTT.Microseconds())/1000)
		if hop.Reached {
			break
		}
	}
	return nil
}
