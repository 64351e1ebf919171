package protocol

import (
	"bytes"
	"encoding/binary"
	"io"

	"adaptarr.dev/apperror"
)

// knownEntryKinds enumerates the wire kinds a HistoryEntries entry may
// carry; anything else fails with apperror.UnknownKind.
var knownEntryKinds = map[Kind]bool{
	KindConnected: true, KindNewMessage: true, KindSendMessage: true, KindGetHistory: true,
	KindUnknownEvent: true, KindMessageReceived: true, KindMessageInvalid: true, KindHistoryEntries: true,
}

// newMessageFixedLen is the byte count of NewMessage's fixed fields
// (length itself + id + user + timestamp), before the variable body.
const newMessageFixedLen = 2 + 4 + 4 + 8

// NewMessageBody is the event body for kind NewMessage.
type NewMessageBody struct {
	ID        int32
	User      int32
	Timestamp int64
	Body      []byte
}

// EncodeNewMessage serializes b, computing its length prefix.
func EncodeNewMessage(b NewMessageBody) []byte {
	length := newMessageFixedLen + len(b.Body)
	out := make([]byte, length)
	binary.LittleEndian.PutUint16(out[0:2], uint16(length))
	binary.LittleEndian.PutUint32(out[2:6], uint32(b.ID))
	binary.LittleEndian.PutUint32(out[6:10], uint32(b.User))
	binary.LittleEndian.PutUint64(out[10:18], uint64(b.Timestamp))
	copy(out[18:], b.Body)
	return out
}

// DecodeNewMessage parses a NewMessage body, rejecting length < 18 as a
// protocol error.
func DecodeNewMessage(raw []byte) (NewMessageBody, error) {
	if len(raw) < newMessageFixedLen {
		return NewMessageBody{}, ErrMalformed
	}
	length := binary.LittleEndian.Uint16(raw[0:2])
	if length < newMessageFixedLen {
		return NewMessageBody{}, ErrMalformed
	}
	if int(length) > len(raw) {
		return NewMessageBody{}, ErrMalformed
	}
	return NewMessageBody{
		ID:        int32(binary.LittleEndian.Uint32(raw[2:6])),
		User:      int32(binary.LittleEndian.Uint32(raw[6:10])),
		Timestamp: int64(binary.LittleEndian.Uint64(raw[10:18])),
		Body:      append([]byte(nil), raw[18:length]...),
	}, nil
}

// EncodeSendMessage wraps an opaque message body for kind SendMessage.
func EncodeSendMessage(body []byte) []byte { return append([]byte(nil), body...) }

// DecodeSendMessage unwraps a SendMessage body (it carries no structure
// of its own; validation is the broker's job).
func DecodeSendMessage(raw []byte) []byte { return append([]byte(nil), raw...) }

// GetHistoryBody is the request body for kind GetHistory.
type GetHistoryBody struct {
	From   *int32 // nil means "null" (wire value 0)
	Before uint16
	After  uint16
}

// EncodeGetHistory serializes b; From=nil encodes as wire value 0.
func EncodeGetHistory(b GetHistoryBody) []byte {
	out := make([]byte, 8)
	var from int32
	if b.From != nil {
		from = *b.From
	}
	binary.LittleEndian.PutUint32(out[0:4], uint32(from))
	binary.LittleEndian.PutUint16(out[4:6], b.Before)
	binary.LittleEndian.PutUint16(out[6:8], b.After)
	return out
}

// DecodeGetHistory parses a GetHistory body.
func DecodeGetHistory(raw []byte) (GetHistoryBody, error) {
	if len(raw) < 8 {
		return GetHistoryBody{}, ErrMalformed
	}
	from := int32(binary.LittleEndian.Uint32(raw[0:4]))
	b := GetHistoryBody{
		Before: binary.LittleEndian.Uint16(raw[4:6]),
		After:  binary.LittleEndian.Uint16(raw[6:8]),
	}
	if from != 0 {
		b.From = &from
	}
	return b, nil
}

// EncodeMessageReceived serializes a MessageReceived response body.
func EncodeMessageReceived(id int32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(id))
	return out
}

// DecodeMessageReceived parses a MessageReceived response body.
func DecodeMessageReceived(raw []byte) (int32, error) {
	if len(raw) < 4 {
		return 0, ErrMalformed
	}
	return int32(binary.LittleEndian.Uint32(raw[0:4])), nil
}

// EncodeMessageInvalid serializes an optional UTF-8 reason.
func EncodeMessageInvalid(reason string) []byte { return []byte(reason) }

// DecodeMessageInvalid parses a MessageInvalid body (may be empty).
func DecodeMessageInvalid(raw []byte) string { return string(raw) }

// HistoryEntry is one entry within a HistoryEntries response: a
// kind-tagged, length-prefixed sub-body (a ConversationEvent wire form).
type HistoryEntry struct {
	Kind Kind
	Body []byte
}

// HistoryEntriesBody is the response body for kind HistoryEntries.
type HistoryEntriesBody struct {
	CountBefore uint16
	CountAfter  uint16
	Entries     []HistoryEntry
}

// EncodeHistoryEntries serializes b, using a LEB128 (unsigned varint)
// length prefix per entry.
func EncodeHistoryEntries(b HistoryEntriesBody) []byte {
	var buf bytes.Buffer
	var head [4]byte
	binary.LittleEndian.PutUint16(head[0:2], b.CountBefore)
	binary.LittleEndian.PutUint16(head[2:4], b.CountAfter)
	buf.Write(head[:])

	var varintBuf [binary.MaxVarintLen64]byte
	for _, e := range b.Entries {
		var kindBuf [2]byte
		binary.LittleEndian.PutUint16(kindBuf[:], uint16(e.Kind))
		buf.Write(kindBuf[:])
		n := binary.PutUvarint(varintBuf[:], uint64(len(e.Body)))
		buf.Write(varintBuf[:n])
		buf.Write(e.Body)
	}
	return buf.Bytes()
}

// DecodeHistoryEntries parses a HistoryEntries body. An entry whose kind
// is not in the enumerated set fails with apperror.UnknownKind(kind).
func DecodeHistoryEntries(raw []byte) (HistoryEntriesBody, error) {
	if len(raw) < 4 {
		return HistoryEntriesBody{}, ErrMalformed
	}
	out := HistoryEntriesBody{
		CountBefore: binary.LittleEndian.Uint16(raw[0:2]),
		CountAfter:  binary.LittleEndian.Uint16(raw[2:4]),
	}
	total := int(out.CountBefore) + int(out.CountAfter)
	r := bytes.NewReader(raw[4:])
	for i := 0; i < total; i++ {
		var kindBuf [2]byte
		if _, err := io.ReadFull(r, kindBuf[:]); err != nil {
			return HistoryEntriesBody{}, ErrMalformed
		}
		kind := Kind(binary.LittleEndian.Uint16(kindBuf[:]))
		if !knownEntryKinds[kind] {
			return HistoryEntriesBody{}, apperror.UnknownKind(uint16(kind))
		}

		length, err := binary.ReadUvarint(r)
		if err != nil {
			return HistoryEntriesBody{}, ErrMalformed
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return HistoryEntriesBody{}, ErrMalformed
		}
		out.Entries = append(out.Entries, HistoryEntry{Kind: kind, Body: body})
	}
	return out, nil
}
