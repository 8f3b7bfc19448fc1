package dataset

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serializePacket builds a decodable Ethernet/IPv4 packet around the given
// transport layer.
func serializePacket(t *testing.T, ip *layers.IPv4, transport gopacket.SerializableLayer, payload []byte) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(payload)))
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestPacketFeaturesTCP(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	tcp := &layers.TCP{SrcPort: 443, DstPort: 51234, SYN: true, ACK: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	pkt := serializePacket(t, ip, tcp, []byte("hello"))

	features, ts := packetFeatures(pkt, time.Time{})
	require.Len(t, features, len(PacketFeatureNames))

	assert.Equal(t, float64(len(pkt.Data())), features[0])
	assert.Zero(t, features[1], "no timestamps, no inter-arrival")
	assert.Equal(t, 6.0, features[2])
	assert.Equal(t, 443.0, features[3])
	assert.Equal(t, 51234.0, features[4])
	assert.Equal(t, 3.0, features[5], "SYN+ACK")
	assert.Equal(t, 64.0, features[6])
	assert.Equal(t, 5.0, features[7])
	assert.True(t, ts.IsZero())
}

func TestPacketFeaturesUDP(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      128,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 1, 1),
		DstIP:    net.IPv4(192, 168, 1, 2),
	}
	udp := &layers.UDP{SrcPort: 53, DstPort: 33000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	pkt := serializePacket(t, ip, udp, []byte("q"))

	features, _ := packetFeatures(pkt, time.Time{})
	assert.Equal(t, 17.0, features[2])
	assert.Equal(t, 53.0, features[3])
	assert.Equal(t, 33000.0, features[4])
	assert.Zero(t, features[5], "no TCP flags on UDP")
	assert.Equal(t, 128.0, features[6])
	assert.Equal(t, 1.0, features[7])
}

func TestPacketFeaturesInterArrival(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	tcp := &layers.TCP{SrcPort: 80, DstPort: 40000}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	pkt := serializePacket(t, ip, tcp, nil)

	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	pkt.Metadata().Timestamp = base.Add(250 * time.Millisecond)

	features, ts := packetFeatures(pkt, base)
	assert.InDelta(t, 0.25, features[1], 1e-9)
	assert.Equal(t, base.Add(250*time.Millisecond), ts)
}

func TestEncodeTCPFlags(t *testing.T) {
	tests := []struct {
		name string
		tcp  layers.TCP
		want float64
	}{
		{name: "none", tcp: layers.TCP{}, want: 0},
		{name: "syn", tcp: layers.TCP{SYN: true}, want: 1},
		{name: "syn ack", tcp: layers.TCP{SYN: true, ACK: true}, want: 3},
		{name: "fin rst", tcp: layers.TCP{FIN: true, RST: true}, want: 12},
		{name: "psh urg", tcp: layers.TCP{PSH: true, URG: true}, want: 48},
		{name: "all", tcp: layers.TCP{SYN: true, ACK: true, FIN: true, RST: true, PSH: true, URG: true}, want: 63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeTCPFlags(&tt.tcp))
		})
	}
}

func TestLoadPCAPMissingFile(t *testing.T) {
	_, err := LoadPCAP(filepath.Join(t.TempDir(), "nope.pcap"))
	assert.Error(t, err)
}
