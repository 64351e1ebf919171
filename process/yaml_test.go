package process

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStructureYAMLRoundTrip(t *testing.T) {
	s := *validStructure()

	data, err := EncodeStructureYAML(s)
	require.NoError(t, err)

	decoded, err := DecodeStructureYAML(data)
	require.NoError(t, err)
	require.Equal(t, s, decoded)
}

func TestDecodeStructureYAMLRejectsMalformed(t *testing.T) {
	_, err := DecodeStructureYAML([]byte("not: [valid"))
	require.Error(t, err)
}
