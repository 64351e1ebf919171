// Package book implements the BookPart tree: a book's contents are a nested
// tree of groups (ordered collections of parts) and module leaves, dense and
// unique on (book, parent, index) among siblings.
package book

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
)

// NewBook creates a book together with its root group, the undeletable,
// unreparentable part named by Book.RootPartID.
func NewBook(gdb *gorm.DB, title string) (*adaptarrdb.Book, error) {
	var book adaptarrdb.Book
	err := gdb.Transaction(func(tx *gorm.DB) error {
		book = adaptarrdb.Book{Title: title}
		if err := tx.Create(&book).Error; err != nil {
			return apperror.Internal(err)
		}

		root := adaptarrdb.BookPart{BookID: book.ID, ParentID: nil, Index: 0, Title: title}
		if err := tx.Create(&root).Error; err != nil {
			return apperror.Internal(err)
		}

		book.RootPartID = root.ID
		if err := tx.Model(&book).Update("root_part_id", root.ID).Error; err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// CreateGroup inserts a new group at index under parent, shifting parent's
// existing children at or past index up by one to keep indices dense and
// unique. Fails with apperror.BookPartCreateIsModule if parent is a module.
func CreateGroup(gdb *gorm.DB, parentID uint, index int, title string) (*adaptarrdb.BookPart, error) {
	return createAt(gdb, parentID, index, title, nil)
}

// CreateModule inserts a module leaf at index under parent, with the same
// sibling-shifting rule as CreateGroup.
func CreateModule(gdb *gorm.DB, parentID uint, index int, title string, moduleID uuid.UUID) (*adaptarrdb.BookPart, error) {
	return createAt(gdb, parentID, index, title, &moduleID)
}

func createAt(gdb *gorm.DB, parentID uint, index int, title string, moduleID *uuid.UUID) (*adaptarrdb.BookPart, error) {
	var created adaptarrdb.BookPart
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var parent adaptarrdb.BookPart
		if err := tx.First(&parent, parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.BookPartNotFound()
			}
			return apperror.Internal(err)
		}
		if parent.ModuleID != nil {
			return apperror.BookPartCreateIsModule()
		}

		if err := tx.Model(&adaptarrdb.BookPart{}).
			Where("book_id = ? AND parent_id = ? AND index >= ?", parent.BookID, parent.ID, index).
			UpdateColumn("index", gorm.Expr("index + 1")).Error; err != nil {
			return apperror.Internal(err)
		}

		created = adaptarrdb.BookPart{
			BookID:   parent.BookID,
			ParentID: &parent.ID,
			Index:    index,
			Title:    title,
			ModuleID: moduleID,
		}
		if err := tx.Create(&created).Error; err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Delete removes part and its subtree. The book's root part (Book.RootPartID)
// cannot be deleted; delete the book itself instead.
func Delete(gdb *gorm.DB, partID uint) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var part adaptarrdb.BookPart
		if err := tx.First(&part, partID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.BookPartNotFound()
			}
			return apperror.Internal(err)
		}

		var book adaptarrdb.Book
		if err := tx.First(&book, part.BookID).Error; err != nil {
			return apperror.Internal(err)
		}
		if book.RootPartID == part.ID {
			return apperror.BookPartIsRoot()
		}

		if err := deleteSubtree(tx, part.ID); err != nil {
			return err
		}

		if err := tx.Model(&adaptarrdb.BookPart{}).
			Where("book_id = ? AND parent_id = ? AND index > ?", part.BookID, part.ParentID, part.Index).
			UpdateColumn("index", gorm.Expr("index - 1")).Error; err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
}

func deleteSubtree(tx *gorm.DB, partID uint) error {
	var children []adaptarrdb.BookPart
	if err := tx.Where("parent_id = ?", partID).Find(&children).Error; err != nil {
		return apperror.Internal(err)
	}
	for _, c := range children {
		if err := deleteSubtree(tx, c.ID); err != nil {
			return err
		}
	}
	if err := tx.Delete(&adaptarrdb.BookPart{}, partID).Error; err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// Reparent moves part to be a child of newParentID at index, shifting the new
// parent's siblings to make room and then closing the gap left in the old
// parent. Fails with apperror.BookPartIsModule if newParentID names a module,
// and with "bookpart:reparent:is-root" if part is the book's root part.
func Reparent(gdb *gorm.DB, partID, newParentID uint, index int) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var part adaptarrdb.BookPart
		if err := tx.First(&part, partID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.BookPartNotFound()
			}
			return apperror.Internal(err)
		}

		var book adaptarrdb.Book
		if err := tx.First(&book, part.BookID).Error; err != nil {
			return apperror.Internal(err)
		}
		if book.RootPartID == part.ID {
			return apperror.New("bookpart:reparent:is-root", apperror.StatusBadRequest, "cannot reparent the root part of a book")
		}

		var newParent adaptarrdb.BookPart
		if err := tx.First(&newParent, newParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.BookPartNotFound()
			}
			return apperror.Internal(err)
		}
		if newParent.ModuleID != nil {
			return apperror.BookPartIsModule()
		}

		oldParentID := part.ParentID
		oldIndex := part.Index

		if err := tx.Model(&adaptarrdb.BookPart{}).
			Where("book_id = ? AND parent_id = ? AND index >= ?", newParent.BookID, newParent.ID, index).
			UpdateColumn("index", gorm.Expr("index + 1")).Error; err != nil {
			return apperror.Internal(err)
		}

		part.ParentID = &newParent.ID
		part.BookID = newParent.BookID
		part.Index = index
		if err := tx.Model(&part).Select("book_id", "parent_id", "index").Updates(part).Error; err != nil {
			return apperror.Internal(err)
		}

		if err := tx.Model(&adaptarrdb.BookPart{}).
			Where("book_id = ? AND parent_id = ? AND index > ?", part.BookID, oldParentID, oldIndex).
			UpdateColumn("index", gorm.Expr("index - 1")).Error; err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
}

// GetParts returns the immediate children of a group, ordered by index.
// Fails with apperror.BookPartGetPartsIsModule if partID names a module leaf.
func GetParts(gdb *gorm.DB, partID uint) ([]adaptarrdb.BookPart, error) {
	var part adaptarrdb.BookPart
	if err := gdb.First(&part, partID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.BookPartNotFound()
		}
		return nil, apperror.Internal(err)
	}
	if part.ModuleID != nil {
		return nil, apperror.BookPartGetPartsIsModule()
	}

	var children []adaptarrdb.BookPart
	if err := gdb.Where("book_id = ? AND parent_id = ?", part.BookID, part.ID).
		Order("index").Find(&children).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return children, nil
}

// GetPart loads a single BookPart by id.
func GetPart(gdb *gorm.DB, partID uint) (*adaptarrdb.BookPart, error) {
	var part adaptarrdb.BookPart
	if err := gdb.First(&part, partID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.BookPartNotFound()
		}
		return nil, apperror.Internal(err)
	}
	return &part, nil
}
