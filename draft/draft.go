// Package draft implements the editing-process state machine: a
// module's working copy as it is seated, written to, and advanced through a
// ProcessVersion's steps until it reaches a final step or is cancelled.
package draft

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/storage"
)

// Seating is a (slot, user) pair supplied at draft creation; User may be nil
// for a slot left to be filled later.
type Seating struct {
	SlotID uint
	UserID *uint
}

// BeginProcess starts a new Draft for module under version, duplicating its
// current document into a fresh working copy.
func BeginProcess(gdb *gorm.DB, store *storage.Store, notify Notifier, moduleID uuid.UUID, version *adaptarrdb.ProcessVersion, seatings []Seating) (*adaptarrdb.Draft, error) {
	var result *adaptarrdb.Draft
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var existing adaptarrdb.Draft
		err := tx.First(&existing, "module_id = ?", moduleID).Error
		if err == nil {
			return apperror.DraftExists()
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Internal(err)
		}

		for _, s := range seatings {
			var slot adaptarrdb.Slot
			if err := tx.First(&slot, s.SlotID).Error; err != nil {
				return apperror.Internal(err)
			}
			if slot.VersionID != version.ID {
				return apperror.DraftBadSlot()
			}
		}

		var module adaptarrdb.Module
		if err := tx.First(&module, "id = ?", moduleID).Error; err != nil {
			return apperror.Internal(err)
		}
		var currentDoc adaptarrdb.Document
		if err := tx.First(&currentDoc, module.CurrentDocumentID).Error; err != nil {
			return apperror.Internal(err)
		}

		workingDoc, err := storage.DuplicateDocument(tx, &currentDoc)
		if err != nil {
			return err
		}

		d := adaptarrdb.Draft{
			ModuleID:   moduleID,
			VersionID:  version.ID,
			StepID:     version.StartStepID,
			DocumentID: workingDoc.ID,
		}
		if err := tx.Create(&d).Error; err != nil {
			return apperror.Internal(err)
		}

		for _, s := range seatings {
			row := adaptarrdb.DraftSlot{DraftModuleID: moduleID, SlotID: s.SlotID, UserID: s.UserID}
			if err := tx.Create(&row).Error; err != nil {
				return apperror.Internal(err)
			}
			if s.UserID != nil {
				notify.Assigned(moduleID, workingDoc.ID, s.SlotID, *s.UserID)
			}
		}

		result = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Perms returns the set of StepPermission a user holds on a draft at its
// current step, by way of the slots they occupy.
func Perms(gdb *gorm.DB, draftModuleID uuid.UUID, userID uint) ([]adaptarrdb.StepPermission, error) {
	var d adaptarrdb.Draft
	if err := gdb.First(&d, "module_id = ?", draftModuleID).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	var slotIDs []uint
	if err := gdb.Model(&adaptarrdb.DraftSlot{}).
		Where("draft_module_id = ? AND user_id = ?", draftModuleID, userID).
		Pluck("slot_id", &slotIDs).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	if len(slotIDs) == 0 {
		return nil, nil
	}

	var perms []adaptarrdb.StepPermission
	if err := gdb.Model(&adaptarrdb.StepSlot{}).
		Where("step_id = ? AND slot_id IN ?", d.StepID, slotIDs).
		Distinct("permission").Pluck("permission", &perms).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return perms, nil
}

func hasPerm(perms []adaptarrdb.StepPermission, p adaptarrdb.StepPermission) bool {
	for _, x := range perms {
		if x == p {
			return true
		}
	}
	return false
}

// HasAccess reports whether a user may view draftModuleID: occupying a
// slot, holding process-management permission, or able to self-assign to a
// free slot.
func HasAccess(gdb *gorm.DB, draftModuleID uuid.UUID, userID uint, hasProcessManagement bool) (bool, error) {
	if hasProcessManagement {
		return true, nil
	}
	var seated int64
	if err := gdb.Model(&adaptarrdb.DraftSlot{}).
		Where("draft_module_id = ? AND user_id = ?", draftModuleID, userID).
		Count(&seated).Error; err != nil {
		return false, apperror.Internal(err)
	}
	if seated > 0 {
		return true, nil
	}

	var d adaptarrdb.Draft
	if err := gdb.First(&d, "module_id = ?", draftModuleID).Error; err != nil {
		return false, apperror.Internal(err)
	}
	var freeSlots []uint
	if err := gdb.Model(&adaptarrdb.DraftSlot{}).
		Where("draft_module_id = ? AND user_id IS NULL", draftModuleID).
		Pluck("slot_id", &freeSlots).Error; err != nil {
		return false, apperror.Internal(err)
	}
	teamID := teamOf(gdb, d.ModuleID)
	for _, slotID := range freeSlots {
		ok, err := eligible(gdb, teamID, slotID, userID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// WriteFile upserts name in draftModuleID's working document, subject to
// the writer holding edit (or, for index.cnxml, propose-changes/accept-
// changes) at the current step, and to ifMatch (if non-empty) comparing
// equal to the current stored file's ETag.
func WriteFile(gdb *gorm.DB, store *storage.Store, draftModuleID uuid.UUID, userID uint, name string, data []byte, mimeType, ifMatch string) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var d adaptarrdb.Draft
		if err := tx.First(&d, "module_id = ?", draftModuleID).Error; err != nil {
			return apperror.Internal(err)
		}

		perms, err := Perms(tx, draftModuleID, userID)
		if err != nil {
			return err
		}

		isIndex := name == "index.cnxml"
		allowed := hasPerm(perms, adaptarrdb.PermEdit)
		if isIndex {
			allowed = allowed || hasPerm(perms, adaptarrdb.PermProposeChanges) || hasPerm(perms, adaptarrdb.PermAcceptChanges)
		}
		if !allowed {
			return apperror.DraftInsufficientPermission("edit")
		}

		if ifMatch != "" {
			current, err := currentFile(tx, d.DocumentID, name, isIndex)
			if err != nil {
				return err
			}
			if current != nil && storage.ETag(current) != ifMatch {
				return apperror.New("draft:write-file:precondition-failed", apperror.StatusConflict, "file has changed since If-Match was read")
			}
		}

		file, err := store.FromBytes(tx, data, mimeType)
		if err != nil {
			return err
		}

		if isIndex {
			return tx.Model(&adaptarrdb.Document{}).Where("id = ?", d.DocumentID).
				Update("index_file_id", file.ID).Error
		}

		var existing adaptarrdb.DocumentFile
		err = tx.Where("document_id = ? AND name = ?", d.DocumentID, name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := adaptarrdb.DocumentFile{DocumentID: d.DocumentID, Name: name, FileID: file.ID}
			return tx.Create(&row).Error
		}
		if err != nil {
			return apperror.Internal(err)
		}
		return tx.Model(&adaptarrdb.DocumentFile{}).
			Where("document_id = ? AND name = ?", d.DocumentID, name).
			Update("file_id", file.ID).Error
	})
}

// currentFile loads the File currently stored under name, or nil if absent.
func currentFile(tx *gorm.DB, documentID uint, name string, isIndex bool) (*adaptarrdb.File, error) {
	if isIndex {
		var doc adaptarrdb.Document
		if err := tx.First(&doc, documentID).Error; err != nil {
			return nil, apperror.Internal(err)
		}
		var f adaptarrdb.File
		if err := tx.First(&f, doc.IndexFileID).Error; err != nil {
			return nil, apperror.Internal(err)
		}
		return &f, nil
	}
	f, err := storage.GetSideFile(tx, documentID, name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFile removes a non-index side file, requiring edit at the current
// step.
func DeleteFile(gdb *gorm.DB, draftModuleID uuid.UUID, userID uint, name string) error {
	if name == "index.cnxml" {
		return apperror.New("draft:delete-file:is-index", apperror.StatusBadRequest, "index.cnxml cannot be deleted")
	}
	return gdb.Transaction(func(tx *gorm.DB) error {
		var d adaptarrdb.Draft
		if err := tx.First(&d, "module_id = ?", draftModuleID).Error; err != nil {
			return apperror.Internal(err)
		}
		perms, err := Perms(tx, draftModuleID, userID)
		if err != nil {
			return err
		}
		if !hasPerm(perms, adaptarrdb.PermEdit) {
			return apperror.DraftInsufficientPermission("edit")
		}
		return tx.Where("document_id = ? AND name = ?", d.DocumentID, name).
			Delete(&adaptarrdb.DocumentFile{}).Error
	})
}

// GetFile returns the File stored under name on draftModuleID's working
// document, to any user with access.
func GetFile(gdb *gorm.DB, draftModuleID uuid.UUID, userID uint, hasProcessManagement bool, name string) (*adaptarrdb.File, error) {
	ok, err := HasAccess(gdb, draftModuleID, userID, hasProcessManagement)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InsufficientPermissions("draft:access")
	}

	var d adaptarrdb.Draft
	if err := gdb.First(&d, "module_id = ?", draftModuleID).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return currentFile(gdb, d.DocumentID, name, name == "index.cnxml")
}

// Result is the outcome of Advance: either the draft moved to an
// intermediate step, or the process finished and the module was updated.
type Result struct {
	Finished   bool
	ModuleID   uuid.UUID
	DocumentID uint
}

// Advance moves a draft from its current step to target via the link the
// occupant of slotID holds, finishing the process if target has no
// outgoing links.
func Advance(gdb *gorm.DB, indexer func(documentID uint), notify Notifier, draftModuleID uuid.UUID, userID, slotID, targetStepID uint) (Result, error) {
	var result Result
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var d adaptarrdb.Draft
		if err := tx.First(&d, "module_id = ?", draftModuleID).Error; err != nil {
			return apperror.Internal(err)
		}

		var seat adaptarrdb.DraftSlot
		err := tx.Where("draft_module_id = ? AND slot_id = ?", draftModuleID, slotID).First(&seat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.AdvanceBadSlot()
		}
		if err != nil {
			return apperror.Internal(err)
		}
		if seat.UserID == nil || *seat.UserID != userID {
			return apperror.AdvanceBadUser()
		}

		var link adaptarrdb.Link
		err = tx.Where("from_step_id = ? AND to_step_id = ? AND slot_id = ?", d.StepID, targetStepID, slotID).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.AdvanceBadLink()
		}
		if err != nil {
			return apperror.Internal(err)
		}

		var outgoing int64
		if err := tx.Model(&adaptarrdb.Link{}).Where("from_step_id = ?", targetStepID).Count(&outgoing).Error; err != nil {
			return apperror.Internal(err)
		}

		if outgoing == 0 {
			seated, err := seatedUsers(tx, draftModuleID)
			if err != nil {
				return err
			}

			var module adaptarrdb.Module
			if err := tx.First(&module, "id = ?", draftModuleID).Error; err != nil {
				return apperror.Internal(err)
			}
			if err := tx.Model(&module).Update("current_document_id", d.DocumentID).Error; err != nil {
				return apperror.Internal(err)
			}
			v := adaptarrdb.ModuleVersion{ModuleID: module.ID, DocumentID: d.DocumentID}
			if err := tx.Create(&v).Error; err != nil {
				return apperror.Internal(err)
			}
			if err := tx.Where("draft_module_id = ?", draftModuleID).Delete(&adaptarrdb.DraftSlot{}).Error; err != nil {
				return apperror.Internal(err)
			}
			if err := tx.Delete(&d).Error; err != nil {
				return apperror.Internal(err)
			}

			for _, u := range seated {
				notify.ProcessEnded(draftModuleID, d.DocumentID, u)
			}
			result = Result{Finished: true, ModuleID: draftModuleID, DocumentID: d.DocumentID}
			return nil
		}

		teamID := teamOf(tx, draftModuleID)
		snapshot, err := permsByUserAtStep(tx, draftModuleID, targetStepID)
		if err != nil {
			return err
		}
		if err := fillUnseated(tx, teamID, draftModuleID, targetStepID); err != nil {
			return err
		}
		if err := tx.Model(&d).Update("step_id", targetStepID).Error; err != nil {
			return apperror.Internal(err)
		}

		for uid, perms := range snapshot {
			notify.DraftAdvanced(draftModuleID, d.DocumentID, targetStepID, uid, perms)
		}
		result = Result{Finished: false, ModuleID: draftModuleID, DocumentID: d.DocumentID}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if result.Finished && indexer != nil {
		indexer(result.DocumentID)
	}
	return result, nil
}

// Terminate cancels a draft outright: a process manager's emergency stop,
// distinct from reaching a final step.
func Terminate(gdb *gorm.DB, notify Notifier, draftModuleID uuid.UUID) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		seated, err := seatedUsers(tx, draftModuleID)
		if err != nil {
			return err
		}
		if err := tx.Where("draft_module_id = ?", draftModuleID).Delete(&adaptarrdb.DraftSlot{}).Error; err != nil {
			return apperror.Internal(err)
		}
		if err := tx.Delete(&adaptarrdb.Draft{}, "module_id = ?", draftModuleID).Error; err != nil {
			return apperror.Internal(err)
		}
		for _, u := range seated {
			notify.ProcessCancelled(draftModuleID, u)
		}
		return nil
	})
}

func seatedUsers(tx *gorm.DB, draftModuleID uuid.UUID) ([]uint, error) {
	var ids []uint
	if err := tx.Model(&adaptarrdb.DraftSlot{}).
		Where("draft_module_id = ? AND user_id IS NOT NULL", draftModuleID).
		Distinct("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return ids, nil
}

// permsByUserAtStep groups the StepPermissions each currently-seated user
// would hold once the draft reaches step, keyed by user id. Used to
// snapshot DraftAdvanced payloads before fillUnseated changes seating.
func permsByUserAtStep(tx *gorm.DB, draftModuleID uuid.UUID, stepID uint) (map[uint][]string, error) {
	var seats []adaptarrdb.DraftSlot
	if err := tx.Where("draft_module_id = ? AND user_id IS NOT NULL", draftModuleID).Find(&seats).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	out := make(map[uint][]string)
	for _, seat := range seats {
		var perms []string
		if err := tx.Model(&adaptarrdb.StepSlot{}).
			Where("step_id = ? AND slot_id = ?", stepID, seat.SlotID).
			Pluck("permission", &perms).Error; err != nil {
			return nil, apperror.Internal(err)
		}
		if len(perms) > 0 {
			out[*seat.UserID] = append(out[*seat.UserID], perms...)
		}
	}
	return out, nil
}
