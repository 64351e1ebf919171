package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCookieGeneratorOriginBit(t *testing.T) {
	client := NewCookieGenerator(false)
	server := NewCookieGenerator(true)

	c1 := client.Next()
	s1 := server.Next()

	require.False(t, IsServerOriginated(c1))
	require.True(t, IsServerOriginated(s1))
}

func TestCookieGeneratorMonotonic(t *testing.T) {
	g := NewCookieGenerator(false)
	a := g.Next()
	b := g.Next()
	require.Less(t, a, b)
}

func TestCookieGeneratorNeverCollidesWithOriginBit(t *testing.T) {
	g := NewCookieGenerator(false)
	for i := 0; i < 1<<16; i++ {
		c := g.Next()
		require.False(t, IsServerOriginated(c))
	}
}
