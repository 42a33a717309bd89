package icmp_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/icmp"
)

func TestStatsAddReplyComputesRTT(t *testing.T) {
	s := icmp.NewStats()
	sentAt := time.Now()
	s.AddSent(1, 0xAAAA, sentAt)

	rtt, matched := s.AddReply(1, 0xAAAA, sentAt.Add(10*time.Millisecond))
	require.True(t, matched)
	require.InDelta(t, 10*time.Millisecond, rtt, float64(time.Millisecond))

	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.Sent)
	require.EqualValues(t, 1, snap.Received)
	require.EqualValues(t, 0, snap.Outstanding)
}

func TestStatsAddReplyUnknownSequenceCountsAsDuplicate(t *testing.T) {
	s := icmp.NewStats()
	_, matched := s.AddReply(42, 1, time.Now())
	require.False(t, matched)

	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.Duplicated)
	require.EqualValues(t, 0, snap.Received)
}

func TestStatsAddReplyMismatchedIDCountsAsDifferentHost(t *testing.T) {
	s := icmp.NewStats()
	s.AddSent(5, 0x1111, time.Now())
	_, matched := s.AddReply(5, 0x2222, time.Now())
	require.False(t, matched)

	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.DifferentHost)
	require.EqualValues(t, 0, snap.Received)
	// the slot was freed regardless of the host mismatch.
	require.EqualValues(t, 0, snap.Outstanding)
}

func TestStatsSweepTimeoutsExpiresOldSends(t *testing.T) {
	s := icmp.NewStats()
	past := time.Now().Add(-2 * time.Second)
	s.AddSent(9, 1, past)

	expired := s.SweepTimeouts(time.Second)
	require.Equal(t, []uint16{9}, expired)

	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.Lost)
	require.EqualValues(t, 0, snap.Outstanding)

	// a second sweep finds nothing left to expire.
	require.Empty(t, s.SweepTimeouts(time.Second))
}

func TestStatsSweepTimeoutsKeepsRecentSends(t *testing.T) {
	s := icmp.NewStats()
	s.AddSent(3, 1, time.Now())

	expired := s.SweepTimeouts(time.Second)
	require.Empty(t, expired)
	require.EqualValues(t, 1, s.OutstandingCount())
}

func feedRTTs(s *icmp.Stats, base time.Time, rttsMS ...float64) {
	for i, ms := range rttsMS {
		seq := uint16(i)
		sentAt := base
		s.AddSent(seq, 7, sentAt)
		s.AddReply(seq, 7, sentAt.Add(time.Duration(ms*float64(time.Millisecond))))
	}
}

func TestSnapshotMedianOddCount(t *testing.T) {
	s := icmp.NewStats()
	feedRTTs(s, time.Now(), 10, 30, 20)
	snap := s.Snapshot()
	require.InDelta(t, 20, snap.MedianMS, 0.5)
}

func TestSnapshotMedianEvenCount(t *testing.T) {
	s := icmp.NewStats()
	feedRTTs(s, time.Now(), 10, 20, 30, 40)
	snap := s.Snapshot()
	require.InDelta(t, 25, snap.MedianMS, 0.5)
}

func TestSnapshotMinMaxAvg(t *testing.T) {
	s := icmp.NewStats()
	feedRTTs(s, time.Now(), 10, 20, 30)
	snap := s.Snapshot()
	require.InDelta(t, 10, snap.MinMS, 0.5)
	require.InDelta(t, 30, snap.MaxMS, 0.5)
	require.InDelta(t, 20, snap.AvgMS, 0.5)
}

func TestSnapshotStdDevOfConstantSamplesIsZero(t *testing.T) {
	s := icmp.NewStats()
	feedRTTs(s, time.Now(), 15, 15, 15)
	snap := s.Snapshot()
	require.InDelta(t, 0, snap.StdDevMS, 0.01)
}

func TestSnapshotJitterIsMeanAbsoluteConsecutiveDifference(t *testing.T) {
	s := icmp.NewStats()
	// consecutive diffs: |20-10|=10, |15-20|=5 -> mean 7.5
	feedRTTs(s, time.Now(), 10, 20, 15)
	snap := s.Snapshot()
	require.InDelta(t, 7.5, snap.JitterMS, 0.5)
}

func TestPercentileNearestRank(t *testing.T) {
	s := icmp.NewStats()
	feedRTTs(s, time.Now(), 10, 20, 30, 40, 50)
	require.InDelta(t, 10, s.Percentile(0), 0.5)
	require.InDelta(t, 50, s.Percentile(100), 0.5)
	require.InDelta(t, 30, s.Percentile(50), 0.5)
}

func TestPacketLossPercent(t *testing.T) {
	s := icmp.NewStats()
	s.AddSent(1, 1, time.Now().Add(-2*time.Second))
	s.AddSent(2, 1, time.Now())
	s.SweepTimeouts(time.Second)

	snap := s.Snapshot()
	require.EqualValues(t, 2, snap.Sent)
	require.EqualValues(t, 1, snap.Lost)
	require.InDelta(t, 50, snap.PacketLossPercent(), 0.01)
}

func TestSnapshotEmptyHistoryHasZeroedAggregates(t *testing.T) {
	s := icmp.NewStats()
	snap := s.Snapshot()
	require.Zero(t, snap.MinMS)
	require.Zero(t, snap.MaxMS)
	require.Zero(t, snap.AvgMS)
	require.Zero(t, snap.MedianMS)
	require.Zero(t, snap.JitterMS)
}

func TestSnapshotHistogramBucketsByTenMillisecondWidth(t *testing.T) {
	s := icmp.NewStats()
	feedRTTs(s, time.Now(), 5, 12, 25)
	snap := s.Snapshot()
	require.Equal(t, uint64(1), snap.Histogram[0])
	require.Equal(t, uint64(1), snap.Histogram[10])
	require.Equal(t, uint64(1), snap.Histogram[20])
}
