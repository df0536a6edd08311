// File: peer/linkaddr.go
// License: Apache-2.0
//
// Ethernet addresses of bridged frames.

package peer

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EthHeaderLen is the size of an untagged Ethernet header.
const EthHeaderLen = 14

// LinkAddr is a 48-bit Ethernet address.
type LinkAddr [6]byte

// IsUnicast reports whether the group bit is clear.
func (a LinkAddr) IsUnicast() bool {
	return a[0]&1 == 0
}

func (a LinkAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// DestAddress returns the destination address of an Ethernet frame.
func DestAddress(frame []byte) (LinkAddr, error) {
	eth, err := decodeEthernet(frame)
	if err != nil {
		return LinkAddr{}, err
	}
	var a LinkAddr
	copy(a[:], eth.DstMAC)
	return a, nil
}

// SourceAddress returns the source address of an Ethernet frame.
func SourceAddress(frame []byte) (LinkAddr, error) {
	eth, err := decodeEthernet(frame)
	if err != nil {
		return LinkAddr{}, err
	}
	var a LinkAddr
	copy(a[:], eth.SrcMAC)
	return a, nil
}

func decodeEthernet(frame []byte) (*layers.Ethernet, error) {
	if len(frame) < EthHeaderLen {
		return nil, fmt.Errorf("truncated ethernet frame: %d bytes", len(frame))
	}
	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(frame, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("decode ethernet: %w", err)
	}
	return eth, nil
}
