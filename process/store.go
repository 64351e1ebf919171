package process

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
)

// NewProcess inserts the Process row a first version will attach to. Fails
// with *ErrDuplicateName if team already has a process with this name.
func NewProcess(gdb *gorm.DB, teamID uint, name string) (*adaptarrdb.Process, error) {
	proc := adaptarrdb.Process{TeamID: teamID, Name: name}
	if err := gdb.Create(&proc).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &ErrDuplicateName{Name: name}
		}
		return nil, apperror.Internal(err)
	}
	return &proc, nil
}

// Create validates s, then inserts a full ProcessVersion (version, slots,
// steps, step-slots, links) attached to process in one transaction.
// Positional indices in s become row ids; Start is patched in after the
// chosen step is known, since ProcessVersion.StartStepID is not-null.
// If s.Name differs from process.Name, the process is renamed in the same
// transaction. Fails with *ValidateError or *ErrDuplicateName.
func Create(gdb *gorm.DB, process *adaptarrdb.Process, s *Structure) (*adaptarrdb.ProcessVersion, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}

	var version *adaptarrdb.ProcessVersion
	txErr := gdb.Transaction(func(tx *gorm.DB) error {
		proc := *process
		if s.Name != proc.Name {
			proc.Name = s.Name
			if err := tx.Save(&proc).Error; err != nil {
				if isUniqueViolation(err) {
					return &ErrDuplicateName{Name: s.Name}
				}
				return apperror.Internal(err)
			}
		}

		v := adaptarrdb.ProcessVersion{ProcessID: proc.ID, CreatedAt: time.Now(), StartStepID: 0}
		if err := tx.Create(&v).Error; err != nil {
			return apperror.Internal(err)
		}

		slotIDs := make([]uint, len(s.Slots))
		for i, spec := range s.Slots {
			row := adaptarrdb.Slot{VersionID: v.ID, Name: spec.Name, Autofill: spec.Autofill}
			if err := tx.Create(&row).Error; err != nil {
				return apperror.Internal(err)
			}
			slotIDs[i] = row.ID
			for _, roleID := range spec.Roles {
				if err := tx.Create(&adaptarrdb.SlotRole{SlotID: row.ID, RoleID: roleID}).Error; err != nil {
					return apperror.Internal(err)
				}
			}
		}

		stepIDs := make([]uint, len(s.Steps))
		for i, spec := range s.Steps {
			row := adaptarrdb.Step{VersionID: v.ID, Name: spec.Name}
			if err := tx.Create(&row).Error; err != nil {
				return apperror.Internal(err)
			}
			stepIDs[i] = row.ID
		}

		for i, spec := range s.Steps {
			for _, ss := range spec.Slots {
				row := adaptarrdb.StepSlot{StepID: stepIDs[i], SlotID: slotIDs[ss.SlotIndex], Permission: ss.Permission}
				if err := tx.Create(&row).Error; err != nil {
					return apperror.Internal(err)
				}
			}
			for _, link := range spec.Links {
				row := adaptarrdb.Link{
					FromStepID: stepIDs[i],
					ToStepID:   stepIDs[link.ToStep],
					SlotID:     slotIDs[link.SlotIndex],
					Name:       link.Name,
				}
				if err := tx.Create(&row).Error; err != nil {
					return apperror.Internal(err)
				}
			}
		}

		v.StartStepID = stepIDs[s.Start]
		if err := tx.Model(&v).Update("start_step_id", v.StartStepID).Error; err != nil {
			return apperror.Internal(err)
		}

		version = &v
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return version, nil
}

// isUniqueViolation reports whether err came from a unique-constraint
// violation, covering both Postgres and SQLite error text so tests on the
// SQLite backend exercise the same Duplicate path as production.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint")
}

// ByID loads a ProcessVersion by id.
func ByID(gdb *gorm.DB, id uint) (*adaptarrdb.ProcessVersion, error) {
	var v adaptarrdb.ProcessVersion
	if err := gdb.First(&v, id).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return &v, nil
}

// GetSlots returns every Slot belonging to version, ordered by id (their
// original insertion, and thus original positional, order).
func GetSlots(gdb *gorm.DB, versionID uint) ([]adaptarrdb.Slot, error) {
	var slots []adaptarrdb.Slot
	if err := gdb.Where("version_id = ?", versionID).Order("id").Find(&slots).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return slots, nil
}

// GetSlot returns a single Slot by id.
func GetSlot(gdb *gorm.DB, id uint) (*adaptarrdb.Slot, error) {
	var slot adaptarrdb.Slot
	if err := gdb.First(&slot, id).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return &slot, nil
}

// GetSteps returns every Step belonging to version, in insertion order.
func GetSteps(gdb *gorm.DB, versionID uint) ([]adaptarrdb.Step, error) {
	var steps []adaptarrdb.Step
	if err := gdb.Where("version_id = ?", versionID).Order("id").Find(&steps).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return steps, nil
}

// GetStep returns a single Step by id.
func GetStep(gdb *gorm.DB, id uint) (*adaptarrdb.Step, error) {
	var step adaptarrdb.Step
	if err := gdb.First(&step, id).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return &step, nil
}

// GetLink resolves the Link from fromStep usable by slot going to toStep, if
// any — the lookup Draft.advance performs at this step.
func GetLink(gdb *gorm.DB, fromStepID, toStepID, slotID uint) (*adaptarrdb.Link, error) {
	var link adaptarrdb.Link
	err := gdb.Where("from_step_id = ? AND to_step_id = ? AND slot_id = ?", fromStepID, toStepID, slotID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &link, nil
}

// GetStructure round-trips a ProcessVersion back to the positional Structure
// shape Create accepted, re-indexing database ids to slice positions.
func GetStructure(gdb *gorm.DB, versionID uint) (*Structure, error) {
	var version adaptarrdb.ProcessVersion
	if err := gdb.First(&version, versionID).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	var proc adaptarrdb.Process
	if err := gdb.First(&proc, version.ProcessID).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	slots, err := GetSlots(gdb, versionID)
	if err != nil {
		return nil, err
	}
	steps, err := GetSteps(gdb, versionID)
	if err != nil {
		return nil, err
	}

	slotIndex := make(map[uint]int, len(slots))
	s := &Structure{Name: proc.Name, Slots: make([]SlotSpec, len(slots)), Steps: make([]StepSpec, len(steps))}
	for i, slot := range slots {
		slotIndex[slot.ID] = i
		var roles []adaptarrdb.SlotRole
		if err := gdb.Where("slot_id = ?", slot.ID).Find(&roles).Error; err != nil {
			return nil, apperror.Internal(err)
		}
		var roleIDs []uint
		for _, r := range roles {
			roleIDs = append(roleIDs, r.RoleID)
		}
		s.Slots[i] = SlotSpec{Name: slot.Name, Roles: roleIDs, Autofill: slot.Autofill}
	}

	stepIndex := make(map[uint]int, len(steps))
	for i, step := range steps {
		stepIndex[step.ID] = i
		if step.ID == version.StartStepID {
			s.Start = i
		}

		var stepSlots []adaptarrdb.StepSlot
		if err := gdb.Where("step_id = ?", step.ID).Order("slot_id").Find(&stepSlots).Error; err != nil {
			return nil, apperror.Internal(err)
		}
		var ssSpecs []StepSlotSpec
		for _, ss := range stepSlots {
			ssSpecs = append(ssSpecs, StepSlotSpec{SlotIndex: slotIndex[ss.SlotID], Permission: ss.Permission})
		}

		var links []adaptarrdb.Link
		if err := gdb.Where("from_step_id = ?", step.ID).Order("id").Find(&links).Error; err != nil {
			return nil, apperror.Internal(err)
		}
		var linkSpecs []LinkSpec
		for _, link := range links {
			linkSpecs = append(linkSpecs, LinkSpec{Name: link.Name, ToStep: stepIndex[link.ToStepID], SlotIndex: slotIndex[link.SlotID]})
		}

		s.Steps[i] = StepSpec{Name: step.Name, Slots: ssSpecs, Links: linkSpecs}
	}

	return s, nil
}
