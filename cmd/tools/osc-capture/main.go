//go:build pcap
// +build pcap

// Command osc-capture decodes OSC/VMC traffic from a pcap capture and
// prints per-address message statistics. Useful for verifying what a
// receiving avatar application actually saw on the wire.
//
// Build with the 'pcap' tag (requires libpcap):
//
//	go build -tags pcap ./cmd/tools/osc-capture
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/hypebeast/go-osc/osc"
)

var (
	pcapFile = flag.String("file", "", "Path to pcap file (required)")
	udpPort  = flag.Int("port", 39539, "UDP port carrying OSC traffic")
	prefix   = flag.String("prefix", "", "Only count addresses with this prefix")
	dump     = flag.Bool("dump", false, "Print every decoded message")
)

type addressStats struct {
	count    int
	firstArg string
}

func main() {
	flag.Parse()
	if *pcapFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open pcap file %s: %v", *pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", *udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		log.Fatalf("failed to set BPF filter %q: %v", filter, err)
	}

	stats := make(map[string]*addressStats)
	packets := 0
	decodeFailures := 0

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range source.Packets() {
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		packets++

		pkt, err := osc.ParsePacket(string(udp.Payload))
		if err != nil {
			decodeFailures++
			continue
		}
		for _, msg := range flatten(pkt) {
			if *prefix != "" && !strings.HasPrefix(msg.Address, *prefix) {
				continue
			}
			if *dump {
				fmt.Println(msg.String())
			}
			st := stats[msg.Address]
			if st == nil {
				st = &addressStats{firstArg: argSummary(msg)}
				stats[msg.Address] = st
			}
			st.count++
		}
	}

	addresses := make([]string, 0, len(stats))
	for addr := range stats {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	fmt.Printf("packets: %d, decode failures: %d, distinct addresses: %d\n\n",
		packets, decodeFailures, len(addresses))
	for _, addr := range addresses {
		st := stats[addr]
		fmt.Printf("%8d  %-48s %s\n", st.count, addr, st.firstArg)
	}
}

// flatten expands bundles into their member messages.
func flatten(pkt osc.Packet) []*osc.Message {
	switch p := pkt.(type) {
	case *osc.Message:
		return []*osc.Message{p}
	case *osc.Bundle:
		var out []*osc.Message
		for _, msg := range p.Messages {
			out = append(out, msg)
		}
		for _, b := range p.Bundles {
			out = append(out, flatten(b)...)
		}
		return out
	default:
		return nil
	}
}

func argSummary(msg *osc.Message) string {
	if len(msg.Arguments) == 0 {
		return "(no args)"
	}
	parts := make([]string, 0, len(msg.Arguments))
	for _, a := range msg.Arguments {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	if len(parts) > 8 {
		parts = append(parts[:8], "...")
	}
	return strings.Join(parts, " ")
}
