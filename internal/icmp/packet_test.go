package icmp_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/icmp"
)

func TestBuildEchoRequestV4RoundTrips(t *testing.T) {
	pkt := icmp.BuildEchoRequestV4(0x1234, 7, []byte("hello"))
	parsed, ok := icmp.ParseReply(pkt)
	require.True(t, ok)
	require.Equal(t, uint16(0x1234), parsed.ID)
	require.Equal(t, uint16(7), parsed.Seq)
	require.Equal(t, byte(8), parsed.Type)
	require.Equal(t, []byte("hello"), parsed.Data)
}

func TestBuildEchoRequestV4ChecksumVerifies(t *testing.T) {
	pkt := icmp.BuildEchoRequestV4(1, 1, []byte("payload-data"))
	// Summing the whole packet, checksum field included, one's-complement
	// style, must complement to zero: that's what makes the checksum valid.
	var sum uint32
	data := append([]byte(nil), pkt...)
	if len(data)%2 != 0 {
		data = append(data, 0)
	}
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	require.Equal(t, uint16(0), ^uint16(sum))
}

func TestBuildEchoRequestV6IncludesPseudoHeader(t *testing.T) {
	src := net.ParseIP("2001:db8::1")
	dst := net.ParseIP("2001:db8::2")
	pkt := icmp.BuildEchoRequestV6(src, dst, 99, 1, []byte("x"))
	parsed, ok := icmp.ParseReply(pkt)
	require.True(t, ok)
	require.Equal(t, byte(128), parsed.Type)
	require.Equal(t, uint16(99), parsed.ID)
}

func TestStripIPv4HeaderRejectsShortBuffer(t *testing.T) {
	_, ok := icmp.StripIPv4Header([]byte{0x45, 0x00})
	require.False(t, ok)
}

func TestStripIPv4HeaderUsesIHL(t *testing.T) {
	header := make([]byte, 20)
	header[0] = 0x45 // version 4, IHL 5 (20 bytes)
	body := append(header, []byte("icmp-payload")...)
	stripped, ok := icmp.StripIPv4Header(body)
	require.True(t, ok)
	require.Equal(t, []byte("icmp-payload"), stripped)
}
