package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		have    Bits
		want    Bits
		wantOK  bool
		missing Bits
	}{
		{"exact match", EditBook, EditBook, true, Empty},
		{"superset", EditBook | EditModule, EditBook, true, Empty},
		{"missing one", EditBook, EditBook | EditModule, false, EditModule},
		{"missing all", Empty, EditBook | ManageProcess, false, EditBook | ManageProcess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, missing := tt.have.Require(tt.want)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.missing, missing)
		})
	}
}

func TestFromBitsRejectsUnknown(t *testing.T) {
	_, ok := FromBits(int32(All))
	assert.True(t, ok)

	_, ok = FromBits(int32(1 << 31))
	assert.False(t, ok, "bit 31 is not part of the enumerated namespace")
}

func TestSlugRoundTrip(t *testing.T) {
	b := EditBook | EditProcess | InviteUser
	slugs := b.Slugs()
	assert.Equal(t, []string{"edit-book", "edit-process", "invite-user"}, slugs)

	back, unknown, ok := FromSlugs(slugs)
	require.True(t, ok)
	assert.Empty(t, unknown)
	assert.Equal(t, b, back)
}

func TestFromStrUnknownSlug(t *testing.T) {
	_, ok := FromStr("does-not-exist")
	assert.False(t, ok)
}

func TestIntegerRoundTrip(t *testing.T) {
	b := ManageProcess | EditRole
	back, ok := FromBits(int32(b))
	require.True(t, ok)
	assert.Equal(t, b, back)
}
