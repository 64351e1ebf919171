package storage

import (
	"errors"

	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
)

// SideFile is one named side entry accompanying a Document's index file.
type SideFile struct {
	Name string
	File *adaptarrdb.File
}

// NewDocument inserts a Document with its index file and side files. The
// pair (document, name) is unique among DocumentFile rows. xrefs_ready
// starts false; the xref package flips it once indexing completes.
func NewDocument(tx *gorm.DB, title, language string, index *adaptarrdb.File, sides []SideFile) (*adaptarrdb.Document, error) {
	doc := adaptarrdb.Document{Title: title, Language: language, IndexFileID: index.ID, XrefsReady: false}
	if err := tx.Create(&doc).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	for _, side := range sides {
		row := adaptarrdb.DocumentFile{DocumentID: doc.ID, Name: side.Name, FileID: side.File.ID}
		if err := tx.Create(&row).Error; err != nil {
			return nil, apperror.Internal(err)
		}
	}
	return &doc, nil
}

// DuplicateDocument copies a Document's index pointer and side files into a
// new, independent Document row: the starting point for a draft's working
// copy, since Documents are otherwise immutable snapshots.
func DuplicateDocument(tx *gorm.DB, src *adaptarrdb.Document) (*adaptarrdb.Document, error) {
	var sides []adaptarrdb.DocumentFile
	if err := tx.Where("document_id = ?", src.ID).Find(&sides).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	doc := adaptarrdb.Document{Title: src.Title, Language: src.Language, IndexFileID: src.IndexFileID, XrefsReady: false}
	if err := tx.Create(&doc).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	for _, s := range sides {
		row := adaptarrdb.DocumentFile{DocumentID: doc.ID, Name: s.Name, FileID: s.FileID}
		if err := tx.Create(&row).Error; err != nil {
			return nil, apperror.Internal(err)
		}
	}
	return &doc, nil
}

// GetSideFile returns the File stored under name for document, or nil if
// absent.
func GetSideFile(gdb *gorm.DB, documentID uint, name string) (*adaptarrdb.File, error) {
	var row adaptarrdb.DocumentFile
	err := gdb.Where("document_id = ? AND name = ?", documentID, name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	var file adaptarrdb.File
	if err := gdb.First(&file, row.FileID).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return &file, nil
}
