package device

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"
)

// TracePacket logs a one line summary of a bridged IP packet at trace
// level. direction is a short marker like "snx => tun0".
func TracePacket(direction string, data []byte) {
	if !log.IsLevelEnabled(log.TraceLevel) {
		return
	}
	log.Tracef("%s: %s", direction, summarizePacket(data))
}

func summarizePacket(data []byte) string {
	if len(data) == 0 {
		return "empty packet"
	}
	if data[0]>>4 != 4 {
		return fmt.Sprintf("%d bytes", len(data))
	}
	packet := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.NoCopy)
	ip, ok := packet.NetworkLayer().(*layers.IPv4)
	if !ok {
		return fmt.Sprintf("%d bytes", len(data))
	}
	return fmt.Sprintf("%s -> %s %s %d bytes", ip.SrcIP, ip.DstIP, ip.Protocol, len(data))
}
