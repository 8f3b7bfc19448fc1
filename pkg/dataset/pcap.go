package dataset

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PacketFeatureNames are the columns of a packet-capture sample matrix.
var PacketFeatureNames = []string{
	"packet_size",
	"inter_arrival_time",
	"protocol",
	"src_port",
	"dst_port",
	"tcp_flags",
	"ip_ttl",
	"payload_size",
}

// LoadPCAP converts a packet capture into a sample matrix so network-traffic
// training sets (e.g. for intrusion-detection models) can be screened for
// poisoning like any other dataset. Packet order is preserved, so suspicious
// indices map back to capture positions.
func LoadPCAP(path string) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	// pcapgo keeps the build CGO-free; try the classic pcap format first and
	// fall back to pcapng, matching pcap.OpenOffline's format support.
	var (
		src      gopacket.PacketDataSource
		linkType layers.LinkType
	)
	if r, rErr := pcapgo.NewReader(f); rErr == nil {
		src, linkType = r, r.LinkType()
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("open capture: %w", err)
		}
		ng, ngErr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
		if ngErr != nil {
			return nil, fmt.Errorf("open capture: %w", ngErr)
		}
		src, linkType = ng, ng.LinkType()
	}

	var (
		m    Matrix
		last time.Time
	)
	source := gopacket.NewPacketSource(src, linkType)
	for packet := range source.Packets() {
		features, ts := packetFeatures(packet, last)
		if !ts.IsZero() {
			last = ts
		}
		m = append(m, features)
	}

	if len(m) == 0 {
		return nil, ErrEmptyMatrix
	}
	return m, nil
}

// packetFeatures extracts the numeric feature vector for one packet.
func packetFeatures(packet gopacket.Packet, last time.Time) ([]float64, time.Time) {
	features := make([]float64, len(PacketFeatureNames))
	features[0] = float64(len(packet.Data()))

	var ts time.Time
	if md := packet.Metadata(); md != nil && !md.Timestamp.IsZero() {
		ts = md.Timestamp
		if !last.IsZero() {
			features[1] = ts.Sub(last).Seconds()
		}
	}

	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		features[2] = 6
		features[3] = float64(tcp.SrcPort)
		features[4] = float64(tcp.DstPort)
		features[5] = encodeTCPFlags(tcp)
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		features[2] = 17
		features[3] = float64(udp.SrcPort)
		features[4] = float64(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil {
		features[2] = 1
	}

	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		features[6] = float64(ipLayer.(*layers.IPv4).TTL)
	}
	if appLayer := packet.ApplicationLayer(); appLayer != nil {
		features[7] = float64(len(appLayer.Payload()))
	}

	return features, ts
}

func encodeTCPFlags(tcp *layers.TCP) float64 {
	var flags float64
	if tcp.SYN {
		flags += 1
	}
	if tcp.ACK {
		flags += 2
	}
	if tcp.FIN {
		flags += 4
	}
	if tcp.RST {
		flags += 8
	}
	if tcp.PSH {
		flags += 16
	}
	if tcp.URG {
		flags += 32
	}
	return flags
}
