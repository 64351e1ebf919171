package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
)

// CreateModule wraps a freshly created Document in a new Module with a
// generated uuid, and appends its first ModuleVersion.
func CreateModule(gdb *gorm.DB, teamID uint, title, language string, index *adaptarrdb.File, sides []SideFile) (*adaptarrdb.Module, error) {
	var module *adaptarrdb.Module
	err := gdb.Transaction(func(tx *gorm.DB) error {
		doc, err := NewDocument(tx, title, language, index, sides)
		if err != nil {
			return err
		}

		m := adaptarrdb.Module{ID: uuid.New(), TeamID: teamID, CurrentDocumentID: doc.ID}
		if err := tx.Create(&m).Error; err != nil {
			return apperror.Internal(err)
		}

		v := adaptarrdb.ModuleVersion{ModuleID: m.ID, DocumentID: doc.ID, CreatedAt: time.Now()}
		if err := tx.Create(&v).Error; err != nil {
			return apperror.Internal(err)
		}

		module = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return module, nil
}

// ReplaceModule creates a new Document and repoints module to it, appending
// a ModuleVersion, but only if module has no active Draft. Fails with
// apperror.ModuleHasDrafts otherwise.
func ReplaceModule(gdb *gorm.DB, module *adaptarrdb.Module, title, language string, index *adaptarrdb.File, sides []SideFile) (*adaptarrdb.Document, error) {
	var doc *adaptarrdb.Document
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var draft adaptarrdb.Draft
		err := tx.Where("module_id = ?", module.ID).First(&draft).Error
		if err == nil {
			return apperror.ModuleHasDrafts()
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Internal(err)
		}

		d, err := NewDocument(tx, title, language, index, sides)
		if err != nil {
			return err
		}

		module.CurrentDocumentID = d.ID
		if err := tx.Model(module).Update("current_document_id", d.ID).Error; err != nil {
			return apperror.Internal(err)
		}

		v := adaptarrdb.ModuleVersion{ModuleID: module.ID, DocumentID: d.ID, CreatedAt: time.Now()}
		if err := tx.Create(&v).Error; err != nil {
			return apperror.Internal(err)
		}

		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetModule loads a Module by uuid, failing with apperror.ModuleNotFound.
func GetModule(gdb *gorm.DB, id uuid.UUID) (*adaptarrdb.Module, error) {
	var m adaptarrdb.Module
	if err := gdb.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ModuleNotFound()
		}
		return nil, apperror.Internal(err)
	}
	return &m, nil
}
