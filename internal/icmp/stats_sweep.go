package icmp

import "time"

// SweepTimeouts scans the sequence map for requests sent more than
// timeout ago and reports each as lost, per spec.md §4.7's "on timeout
// (seq still in map after configured per-request timeout): count as
// lost." Returns the sequences it expired, for callers that want to
// log per-packet timeout notices.
func (s *Stats) SweepTimeouts(timeout time.Duration) []uint16 {
	now := time.Now()
	var expired []uint16

	s.mu.Lock()
	for seq, o := range s.seqMap {
		if now.Sub(o.sentAt) >= timeout {
			expired = append(expired, seq)
			delete(s.seqMap, seq)
		}
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		s.lost.Add(uint64(len(expired)))
		s.outstanding.Add(-int64(len(expired)))
	}
	return expired
}
