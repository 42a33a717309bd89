package icmp

import (
	"net"
	"time"
)

// normalIntervalFloor and floodIntervalFloor are the minimum send interval spec.md
// §4.7 sets: "minimum 200 ms / 1 ms flood floor" — 1ms only for a
// privileged, flood-mode caller.
const (
	normalIntervalFloor = 200 * time.Millisecond
	floodIntervalFloor  = 1 * time.Millisecond

	defaultInterval    = 1 * time.Second
	defaultTimeout     = 1 * time.Second
	defaultPayloadSize = 56
	defaultTTL         = 64
)

// Config carries one ping session's parameters. Built through
// functional options (NewConfig + WithXxx), the pattern this repo
// uses wherever a constructor takes an open-ended set of knobs,
// grounded on wazero's RuntimeConfig/builder.go idiom: fields are
// copied into the Config at construction time, so a caller mutating
// its Option slice afterward can't retroactively change an already-built
// Config.
type Config struct {
	Target      net.IP
	Count       int // 0 means unbounded, per spec.md §4.7's default
	Interval    time.Duration
	Timeout     time.Duration
	PayloadSize int
	TTL         int
	Flood       bool
	Quiet       bool
	Timestamp   bool // -D: prepend a Unix timestamp to each reply line
}

type Option func(*Config)

func WithCount(n int) Option             { return func(c *Config) { c.Count = n } }
func WithInterval(d time.Duration) Option { return func(c *Config) { c.Interval = d } }
func WithTimeout(d time.Duration) Option  { return func(c *Config) { c.Timeout = d } }
func WithPayloadSize(n int) Option        { return func(c *Config) { c.PayloadSize = n } }
func WithTTL(n int) Option                { return func(c *Config) { c.TTL = n } }
func WithFlood(b bool) Option              { return func(c *Config) { c.Flood = b } }
func WithQuiet(b bool) Option               { return func(c *Config) { c.Quiet = b } }
func WithTimestamp(b bool) Option           { return func(c *Config) { c.Timestamp = b } }

// NewConfig builds a Config for target with spec.md §4.7's defaults,
// then applies opts in order. The effective interval is clamped to the
// platform's flood floor (spec.md §9): 1ms if Flood and IsRoot(),
// otherwise 200ms, whichever is larger than the requested interval.
func NewConfig(target net.IP, opts ...Option) *Config {
	c := &Config{
		Target:      target,
		Interval:    defaultInterval,
		Timeout:     defaultTimeout,
		PayloadSize: defaultPayloadSize,
		TTL:         defaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	floor := normalIntervalFloor
	if c.Flood && IsRoot() {
		floor = floodIntervalFloor
	}
	if c.Interval < floor {
		c.Interval = floor
	}
	return c
}

func (c *Config) IsIPv6() bool { return c.Target.To4() == nil }
