package process

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	adaptarrdb "adaptarr.dev/db"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := adaptarrdb.ConnectSQLite()
	require.NoError(t, err)
	return gdb
}

func TestCreateAndGetStructureRoundTrip(t *testing.T) {
	gdb := openTestDB(t)
	team := adaptarrdb.Team{Name: "Team A"}
	require.NoError(t, gdb.Create(&team).Error)

	proc, err := NewProcess(gdb, team.ID, "Review")
	require.NoError(t, err)

	s := validStructure()
	version, err := Create(gdb, proc, s)
	require.NoError(t, err)

	got, err := GetStructure(gdb, version.ID)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestCreateDuplicateProcessName(t *testing.T) {
	gdb := openTestDB(t)
	team := adaptarrdb.Team{Name: "Team A"}
	require.NoError(t, gdb.Create(&team).Error)

	_, err := NewProcess(gdb, team.ID, "Review")
	require.NoError(t, err)

	_, err = NewProcess(gdb, team.ID, "Review")
	require.Error(t, err)
	_, ok := err.(*ErrDuplicateName)
	require.True(t, ok)
}
