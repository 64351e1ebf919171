package draft

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/process"
	"adaptarr.dev/storage"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := adaptarrdb.ConnectSQLite()
	require.NoError(t, err)
	return gdb
}

// twoStepProcess builds a one-slot process: step "draft" (slot has edit,
// link "finish" to step "published") -> step "published" (no links, the
// final step).
func twoStepProcess(t *testing.T, gdb *gorm.DB, teamID uint) *adaptarrdb.ProcessVersion {
	t.Helper()
	proc, err := process.NewProcess(gdb, teamID, "simple")
	require.NoError(t, err)

	s := &process.Structure{
		Name:  "simple",
		Start: 0,
		Slots: []process.SlotSpec{{Name: "editor"}},
		Steps: []process.StepSpec{
			{
				Name:  "draft",
				Slots: []process.StepSlotSpec{{SlotIndex: 0, Permission: adaptarrdb.PermEdit}},
				Links: []process.LinkSpec{{Name: "finish", ToStep: 1, SlotIndex: 0}},
			},
			{Name: "published"},
		},
	}
	version, err := process.Create(gdb, proc, s)
	require.NoError(t, err)
	return version
}

func seedModule(t *testing.T, gdb *gorm.DB, store *storage.Store, teamID uint) *adaptarrdb.Module {
	t.Helper()
	index, err := store.FromBytes(gdb, []byte("<document/>"), "application/xml")
	require.NoError(t, err)
	module, err := storage.CreateModule(gdb, teamID, "t", "en", index, nil)
	require.NoError(t, err)
	return module
}

func TestBeginProcessAndAdvanceToFinish(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	team := adaptarrdb.Team{Name: "t"}
	require.NoError(t, gdb.Create(&team).Error)
	user := adaptarrdb.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&user).Error)

	version := twoStepProcess(t, gdb, team.ID)
	module := seedModule(t, gdb, store, team.ID)

	var slot adaptarrdb.Slot
	require.NoError(t, gdb.Where("version_id = ?", version.ID).First(&slot).Error)

	d, err := BeginProcess(gdb, store, NopNotifier{}, module.ID, version, []Seating{
		{SlotID: slot.ID, UserID: &user.ID},
	})
	require.NoError(t, err)
	require.Equal(t, version.StartStepID, d.StepID)

	var step adaptarrdb.Step
	require.NoError(t, gdb.Where("version_id = ? AND name = ?", version.ID, "published").First(&step).Error)

	result, err := Advance(gdb, nil, NopNotifier{}, module.ID, user.ID, slot.ID, step.ID)
	require.NoError(t, err)
	require.True(t, result.Finished)

	var remaining int64
	gdb.Model(&adaptarrdb.Draft{}).Where("module_id = ?", module.ID).Count(&remaining)
	require.Zero(t, remaining)

	var updated adaptarrdb.Module
	require.NoError(t, gdb.First(&updated, "id = ?", module.ID).Error)
	require.Equal(t, result.DocumentID, updated.CurrentDocumentID)
}

func TestBeginProcessFailsIfDraftExists(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	team := adaptarrdb.Team{Name: "t"}
	require.NoError(t, gdb.Create(&team).Error)

	version := twoStepProcess(t, gdb, team.ID)
	module := seedModule(t, gdb, store, team.ID)

	_, err = BeginProcess(gdb, store, NopNotifier{}, module.ID, version, nil)
	require.NoError(t, err)

	_, err = BeginProcess(gdb, store, NopNotifier{}, module.ID, version, nil)
	require.Error(t, err)
}

func TestAdvanceRejectsWrongUser(t *testing.T) {
	gdb := openTestDB(t)
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	team := adaptarrdb.Team{Name: "t"}
	require.NoError(t, gdb.Create(&team).Error)
	user := adaptarrdb.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&user).Error)
	other := adaptarrdb.User{Email: "b@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&other).Error)

	version := twoStepProcess(t, gdb, team.ID)
	module := seedModule(t, gdb, store, team.ID)

	var slot adaptarrdb.Slot
	require.NoError(t, gdb.Where("version_id = ?", version.ID).First(&slot).Error)

	_, err = BeginProcess(gdb, store, NopNotifier{}, module.ID, version, []Seating{
		{SlotID: slot.ID, UserID: &user.ID},
	})
	require.NoError(t, err)

	var step adaptarrdb.Step
	require.NoError(t, gdb.Where("version_id = ? AND name = ?", version.ID, "published").First(&step).Error)

	_, err = Advance(gdb, nil, NopNotifier{}, module.ID, other.ID, slot.ID, step.ID)
	require.Error(t, err)
}
