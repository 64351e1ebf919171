package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyMustProcessUnknownKind(t *testing.T) {
	code, shouldClose := Classify(Header{Kind: Kind(0x1234), Flags: MustProcess})
	require.True(t, shouldClose)
	require.Equal(t, CloseMustProcessUnknownKind, code)
}

func TestClassifyUnknownKindWithoutMustProcessIsTolerated(t *testing.T) {
	_, shouldClose := Classify(Header{Kind: Kind(0x1234), Flags: 0})
	require.False(t, shouldClose)
}

func TestClassifyBadFlagBits(t *testing.T) {
	code, shouldClose := Classify(Header{Kind: KindSendMessage, Flags: Flags(0x8000)})
	require.True(t, shouldClose)
	require.Equal(t, CloseBadFlags, code)
}

func TestClassifyBadFlagsTakesPrecedenceOverUnknownKind(t *testing.T) {
	code, shouldClose := Classify(Header{Kind: Kind(0x1234), Flags: MustProcess | Flags(0x8000)})
	require.True(t, shouldClose)
	require.Equal(t, CloseBadFlags, code)
}

func TestClassifyKnownKindIsFine(t *testing.T) {
	_, shouldClose := Classify(Header{Kind: KindSendMessage, Flags: MustProcess | ResponseRequired})
	require.False(t, shouldClose)
}
