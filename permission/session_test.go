package permission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionElevatedDowngradesAfterIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession(EditBook|ManageTeams, Elevated, 15*time.Minute, now)

	assert.True(t, s.Mask(now).Contains(ManageTeams), "elevated session carries manage-teams")

	later := now.Add(16 * time.Minute)
	assert.False(t, s.Mask(later).Contains(ManageTeams), "session auto-downgrades after the idle interval")
	assert.True(t, s.Mask(later).Contains(EditBook), "non-elevated bits survive the downgrade")
}

func TestSessionNormalNeverCarriesElevatedBits(t *testing.T) {
	now := time.Now()
	s := NewSession(ManageUsers|EditBook, Normal, time.Hour, now)
	assert.False(t, s.Mask(now).Contains(ManageUsers))
	assert.True(t, s.Mask(now).Contains(EditBook))
}
