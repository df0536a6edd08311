// File: protocol/header.go
// License: Apache-2.0
//
// Outer packet header shared by every handshake packet: decode/encode of the
// common prefix and its request/reply variants.
//
// Byte 0 carries the bit fields with the reply flag in the most significant
// bit, the continuation flag below it and the 6-bit request id in the low
// bits. This is the layout both bit-field orders of the wire format agree on,
// so decoding uses masks and never depends on the host.

package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedHeader is returned for truncated or inconsistent headers.
var ErrMalformedHeader = errors.New("malformed packet header")

// ErrFieldRange is returned when encoding a value that does not fit its wire field.
var ErrFieldRange = errors.New("header field out of range")

// Header is the common prefix of all handshake packets.
type Header struct {
	ReqID        uint8 // 6 bits
	Continuation bool
	Reply        bool
	Reserved     uint8
}

// Request is the handshake request variant.
type Request struct {
	Header
	Flags uint8
	Proto uint8
	// Method aliases the decoded buffer; copy it to keep it past the buffer's lifetime.
	Method []byte
}

// Reply is the reply variant. Codes other than ReplySuccess are passed through.
type Reply struct {
	Header
	Code ReplyCode
}

// DecodeHeader decodes the common prefix.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < CommonHeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrMalformedHeader, len(b), CommonHeaderSize)
	}
	return Header{
		ReqID:        b[0] & reqIDMask,
		Continuation: b[0]&continuationBit != 0,
		Reply:        b[0]&replyBit != 0,
		Reserved:     b[1],
	}, nil
}

// DecodeRequest decodes a request. Method is validated against the remaining bytes.
func DecodeRequest(b []byte) (Request, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Request{}, err
	}
	if len(b) < RequestHeaderSize {
		return Request{}, fmt.Errorf("%w: request of %d bytes, need %d", ErrMalformedHeader, len(b), RequestHeaderSize)
	}
	n := int(b[4])
	rest := b[RequestHeaderSize:]
	if n > len(rest) {
		return Request{}, fmt.Errorf("%w: method_len %d exceeds %d remaining bytes", ErrMalformedHeader, n, len(rest))
	}
	return Request{
		Header: h,
		Flags:  b[2],
		Proto:  b[3],
		Method: rest[:n:n],
	}, nil
}

// DecodeReply decodes a reply.
func DecodeReply(b []byte) (Reply, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Reply{}, err
	}
	if len(b) < ReplyHeaderSize {
		return Reply{}, fmt.Errorf("%w: reply of %d bytes, need %d", ErrMalformedHeader, len(b), ReplyHeaderSize)
	}
	return Reply{Header: h, Code: ReplyCode(b[2])}, nil
}

// AppendHeader appends the common prefix to dst.
func AppendHeader(dst []byte, h Header) ([]byte, error) {
	if h.ReqID > reqIDMask {
		return dst, fmt.Errorf("%w: request id %d", ErrFieldRange, h.ReqID)
	}
	b0 := h.ReqID
	if h.Continuation {
		b0 |= continuationBit
	}
	if h.Reply {
		b0 |= replyBit
	}
	return append(dst, b0, h.Reserved), nil
}

// AppendRequest appends a request, including the method name, to dst.
func AppendRequest(dst []byte, r Request) ([]byte, error) {
	if len(r.Method) > MaxMethodLen {
		return dst, fmt.Errorf("%w: method name of %d bytes", ErrFieldRange, len(r.Method))
	}
	out, err := AppendHeader(dst, r.Header)
	if err != nil {
		return dst, err
	}
	out = append(out, r.Flags, r.Proto, uint8(len(r.Method)))
	return append(out, r.Method...), nil
}

// AppendReply appends a reply to dst.
func AppendReply(dst []byte, r Reply) ([]byte, error) {
	out, err := AppendHeader(dst, r.Header)
	if err != nil {
		return dst, err
	}
	return append(out, uint8(r.Code)), nil
}
