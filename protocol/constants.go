// File: protocol/constants.go
// License: Apache-2.0
//
// Wire protocol constants

package protocol

// PacketType is the first byte of every datagram on the wire.
type PacketType uint8

const (
	PacketUnknown PacketType = iota
	PacketHandshake
	PacketData
)

func (t PacketType) String() string {
	switch t {
	case PacketHandshake:
		return "handshake"
	case PacketData:
		return "data"
	default:
		return "unknown"
	}
}

// ReplyCode is the status carried by a reply.
type ReplyCode uint8

// ReplySuccess is the only defined reply code.
const ReplySuccess ReplyCode = 0

const (
	// Header sizes
	CommonHeaderSize  = 2
	RequestHeaderSize = CommonHeaderSize + 3 // flags, proto, method_len
	ReplyHeaderSize   = CommonHeaderSize + 1

	MaxMethodLen = 255

	// Bit masks for byte 0
	reqIDMask       = 0x3F
	continuationBit = 0x40
	replyBit        = 0x80
)
