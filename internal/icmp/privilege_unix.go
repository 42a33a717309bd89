//go:build !windows

package icmp

import "golang.org/x/sys/unix"

// IsRoot reports whether the calling process can open a raw ICMP
// socket without the IP Helper echo API Windows offers instead
// (spec.md §9 Design Notes: "Linux uses raw ICMP sockets (privilege
// required)").
func IsRoot() bool {
	return unix.Geteuid() == 0
}
