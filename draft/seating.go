package draft

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
)

// eligible reports whether user may occupy slot: unrestricted, or the
// user's team-member role is in the slot's permitted-role list.
func eligible(tx *gorm.DB, teamID, slotID, userID uint) (bool, error) {
	var roleCount int64
	if err := tx.Model(&adaptarrdb.SlotRole{}).Where("slot_id = ?", slotID).Count(&roleCount).Error; err != nil {
		return false, apperror.Internal(err)
	}
	if roleCount == 0 {
		return true, nil
	}

	var member adaptarrdb.TeamMember
	err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || member.RoleID == nil {
		return false, nil
	}
	if err != nil {
		return false, apperror.Internal(err)
	}

	var n int64
	if err := tx.Model(&adaptarrdb.SlotRole{}).
		Where("slot_id = ? AND role_id = ?", slotID, *member.RoleID).Count(&n).Error; err != nil {
		return false, apperror.Internal(err)
	}
	return n > 0, nil
}

// FillWithUser seats user into slot on a draft. If the slot was already
// occupied by someone else, the previous occupant is vacated first.
func FillWithUser(gdb *gorm.DB, notify Notifier, draftModuleID uuid.UUID, slotID, userID uint) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var d adaptarrdb.Draft
		if err := tx.First(&d, "module_id = ?", draftModuleID).Error; err != nil {
			return apperror.Internal(err)
		}
		var slot adaptarrdb.Slot
		if err := tx.First(&slot, slotID).Error; err != nil {
			return apperror.Internal(err)
		}

		ok, err := eligible(tx, teamOf(tx, d.ModuleID), slotID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.DraftInsufficientPermission("seat")
		}

		var seat adaptarrdb.DraftSlot
		err = tx.Where("draft_module_id = ? AND slot_id = ?", draftModuleID, slotID).First(&seat).Error
		var prev *uint
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			seat = adaptarrdb.DraftSlot{DraftModuleID: draftModuleID, SlotID: slotID, UserID: &userID}
			if err := tx.Create(&seat).Error; err != nil {
				return apperror.Internal(err)
			}
		case err != nil:
			return apperror.Internal(err)
		default:
			prev = seat.UserID
			if err := tx.Model(&adaptarrdb.DraftSlot{}).
				Where("draft_module_id = ? AND slot_id = ?", draftModuleID, slotID).
				Update("user_id", userID).Error; err != nil {
				return apperror.Internal(err)
			}
		}

		if prev != nil && *prev != userID {
			notify.SlotVacated(draftModuleID, d.DocumentID, slotID, *prev)
		}
		notify.SlotFilled(draftModuleID, d.DocumentID, slotID, userID)
		return nil
	})
}

// teamOf resolves the team a module belongs to. Errors are swallowed into 0,
// which simply fails every SlotRole membership lookup.
func teamOf(tx *gorm.DB, moduleID uuid.UUID) uint {
	var m adaptarrdb.Module
	if err := tx.First(&m, "id = ?", moduleID).Error; err != nil {
		return 0
	}
	return m.TeamID
}

// autofill picks the least-loaded eligible candidate for slot: the pool of
// users whose role matches the slot's allowed roles, tie-broken by fewest
// distinct drafts they currently occupy a seat in.
func autofill(tx *gorm.DB, teamID, slotID uint) (uint, error) {
	var roleIDs []uint
	if err := tx.Model(&adaptarrdb.SlotRole{}).Where("slot_id = ?", slotID).Pluck("role_id", &roleIDs).Error; err != nil {
		return 0, apperror.Internal(err)
	}

	var candidates []uint
	q := tx.Model(&adaptarrdb.TeamMember{}).Where("team_id = ?", teamID)
	if len(roleIDs) > 0 {
		q = q.Where("role_id IN ?", roleIDs)
	}
	if err := q.Pluck("user_id", &candidates).Error; err != nil {
		return 0, apperror.Internal(err)
	}
	if len(candidates) == 0 {
		return 0, apperror.NoEligibleUser()
	}

	type load struct {
		userID uint
		count  int64
	}
	loads := make([]load, len(candidates))
	for i, uid := range candidates {
		var n int64
		tx.Model(&adaptarrdb.DraftSlot{}).
			Where("user_id = ?", uid).
			Distinct("draft_module_id").
			Count(&n)
		loads[i] = load{uid, n}
	}

	best := loads[0]
	for _, l := range loads[1:] {
		if l.count < best.count || (l.count == best.count && l.userID < best.userID) {
			best = l
		}
	}
	return best.userID, nil
}

// fillUnseated seats every still-empty slot at step via autofill. It stops at
// the first slot that cannot be filled and returns a FillSlot error wrapping
// that failure; the remaining slots are not attempted.
func fillUnseated(tx *gorm.DB, teamID uint, draftModuleID uuid.UUID, stepID uint) error {
	var slotIDs []uint
	if err := tx.Model(&adaptarrdb.StepSlot{}).Where("step_id = ?", stepID).
		Distinct("slot_id").Pluck("slot_id", &slotIDs).Error; err != nil {
		return apperror.Internal(err)
	}

	for _, slotID := range slotIDs {
		var seat adaptarrdb.DraftSlot
		err := tx.Where("draft_module_id = ? AND slot_id = ?", draftModuleID, slotID).First(&seat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seat = adaptarrdb.DraftSlot{DraftModuleID: draftModuleID, SlotID: slotID}
			if err := tx.Create(&seat).Error; err != nil {
				return apperror.Internal(err)
			}
		} else if err != nil {
			return apperror.Internal(err)
		}
		if seat.UserID != nil {
			continue
		}

		uid, err := autofill(tx, teamID, slotID)
		if err != nil {
			return apperror.FillSlot(slotID, err)
		}
		if err := tx.Model(&adaptarrdb.DraftSlot{}).
			Where("draft_module_id = ? AND slot_id = ?", draftModuleID, slotID).
			Update("user_id", uid).Error; err != nil {
			return apperror.Internal(err)
		}
	}
	return nil
}
