package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"adaptarr.dev/apperror"
)

func TestNewMessageBodyRoundTrip(t *testing.T) {
	b := NewMessageBody{ID: 7, User: 3, Timestamp: 1690000000, Body: []byte("hi there")}
	got, err := DecodeNewMessage(EncodeNewMessage(b))
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestNewMessageBodyRejectsShort(t *testing.T) {
	_, err := DecodeNewMessage([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSendMessageBodyRoundTrip(t *testing.T) {
	body := []byte("opaque payload")
	require.Equal(t, body, DecodeSendMessage(EncodeSendMessage(body)))
}

func TestGetHistoryBodyRoundTripWithFrom(t *testing.T) {
	from := int32(42)
	b := GetHistoryBody{From: &from, Before: 10, After: 20}
	got, err := DecodeGetHistory(EncodeGetHistory(b))
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestGetHistoryBodyRoundTripNilFrom(t *testing.T) {
	b := GetHistoryBody{Before: 5, After: 0}
	got, err := DecodeGetHistory(EncodeGetHistory(b))
	require.NoError(t, err)
	require.Nil(t, got.From)
	require.Equal(t, b.Before, got.Before)
	require.Equal(t, b.After, got.After)
}

func TestMessageReceivedRoundTrip(t *testing.T) {
	got, err := DecodeMessageReceived(EncodeMessageReceived(99))
	require.NoError(t, err)
	require.EqualValues(t, 99, got)
}

func TestMessageInvalidRoundTrip(t *testing.T) {
	require.Equal(t, "bad body", DecodeMessageInvalid(EncodeMessageInvalid("bad body")))
	require.Equal(t, "", DecodeMessageInvalid(EncodeMessageInvalid("")))
}

func TestHistoryEntriesRoundTrip(t *testing.T) {
	b := HistoryEntriesBody{
		CountBefore: 1,
		CountAfter:  1,
		Entries: []HistoryEntry{
			{Kind: KindNewMessage, Body: []byte("first")},
			{Kind: KindNewMessage, Body: []byte("second, a fair bit longer than the first entry")},
		},
	}
	got, err := DecodeHistoryEntries(EncodeHistoryEntries(b))
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestHistoryEntriesRejectsUnknownKind(t *testing.T) {
	b := HistoryEntriesBody{
		CountBefore: 1,
		Entries:     []HistoryEntry{{Kind: Kind(0x1234), Body: []byte("x")}},
	}
	_, err := DecodeHistoryEntries(EncodeHistoryEntries(b))
	require.Error(t, err)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
}

func TestHistoryEntriesRejectsTruncatedBody(t *testing.T) {
	b := HistoryEntriesBody{
		CountBefore: 1,
		Entries:     []HistoryEntry{{Kind: KindNewMessage, Body: []byte("truncated")}},
	}
	raw := EncodeHistoryEntries(b)
	_, err := DecodeHistoryEntries(raw[:len(raw)-3])
	require.ErrorIs(t, err, ErrMalformed)
}
