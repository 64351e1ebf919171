package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	h := Header{Cookie: 0x1234, Kind: KindSendMessage, Flags: MustProcess | ResponseRequired}
	body := []byte("hello")
	raw := Encode(h, body)

	f, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, h, f.Header)
	require.Equal(t, body, f.Body)
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortHeader)
}

func TestDecodeEmptyBody(t *testing.T) {
	raw := Encode(Header{Cookie: 1, Kind: KindConnected}, nil)
	f, err := Decode(raw)
	require.NoError(t, err)
	require.Empty(t, f.Body)
}

func TestKindIsResponse(t *testing.T) {
	require.False(t, KindSendMessage.IsResponse())
	require.False(t, KindGetHistory.IsResponse())
	require.True(t, KindMessageReceived.IsResponse())
	require.True(t, KindHistoryEntries.IsResponse())
}
