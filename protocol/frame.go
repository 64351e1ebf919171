// Package protocol implements the conversation wire protocol of
// little-endian length-prefixed frames with cookies,
// kinds, flags, and typed bodies, carried over a gorilla/websocket
// connection by the conversation broker.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Kind is a frame's 16-bit discriminator. Bit 15 set means response,
// clear means event.
type Kind uint16

const responseBit = 0x8000

const (
	KindConnected   Kind = 0
	KindNewMessage  Kind = 1
	KindSendMessage Kind = 2
	KindGetHistory  Kind = 3

	KindUnknownEvent    Kind = 0x8000
	KindMessageReceived Kind = 0x8001
	KindMessageInvalid  Kind = 0x8002
	KindHistoryEntries  Kind = 0x8003
)

// IsResponse reports whether k is a response kind (bit 15 set).
func (k Kind) IsResponse() bool { return k&responseBit != 0 }

// Flags is the frame header's bitfield.
type Flags uint16

const (
	MustProcess      Flags = 0x0001
	ResponseRequired Flags = 0x0002
)

// headerLen is the fixed 8-byte frame header: cookie(4) + kind(2) + flags(2).
const headerLen = 8

// Header is the fixed prefix of every frame.
type Header struct {
	Cookie uint32
	Kind   Kind
	Flags  Flags
}

// Frame is a decoded header plus its opaque, kind-specific body bytes.
type Frame struct {
	Header
	Body []byte
}

// ErrShortHeader/ErrMalformed are the close-code-4000 causes.
var (
	ErrShortHeader = fmt.Errorf("protocol: frame shorter than the 8-byte header")
	ErrMalformed   = fmt.Errorf("protocol: malformed frame body")
)

// Encode serializes a header and body into one wire frame.
func Encode(h Header, body []byte) []byte {
	out := make([]byte, headerLen+len(body))
	binary.LittleEndian.PutUint32(out[0:4], h.Cookie)
	binary.LittleEndian.PutUint16(out[4:6], uint16(h.Kind))
	binary.LittleEndian.PutUint16(out[6:8], uint16(h.Flags))
	copy(out[headerLen:], body)
	return out
}

// Decode parses a complete wire frame. The body is the remainder after the
// 8-byte header; kind-specific decoders interpret it further.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < headerLen {
		return Frame{}, ErrShortHeader
	}
	h := Header{
		Cookie: binary.LittleEndian.Uint32(raw[0:4]),
		Kind:   Kind(binary.LittleEndian.Uint16(raw[4:6])),
		Flags:  Flags(binary.LittleEndian.Uint16(raw[6:8])),
	}
	body := make([]byte, len(raw)-headerLen)
	copy(body, raw[headerLen:])
	return Frame{Header: h, Body: body}, nil
}
