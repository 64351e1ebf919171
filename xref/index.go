package xref

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/storage"
)

// walker carries the DFS state threaded through a single document's index:
// the currently active context pointer (an element id, or nil at the
// document root) and the per-tag counters it has assigned so far.
type walker struct {
	counters map[string]int
	targets  []adaptarrdb.XrefTarget
}

// Index parses a document's index file, walks its element tree, and
// replaces that document's XrefTarget rows with the ones found. It is
// idempotent: re-running it against the same content produces the same
// rows. On success it marks the document ready.
func Index(gdb *gorm.DB, store *storage.Store, documentID uint) error {
	var doc adaptarrdb.Document
	if err := gdb.Preload("IndexFile").First(&doc, documentID).Error; err != nil {
		return apperror.Internal(err)
	}

	data, err := store.ReadAll(&doc.IndexFile)
	if err != nil {
		return err
	}

	root, err := ParseCNXML(data)
	if err != nil {
		return apperror.New("xref:parse", apperror.StatusInternal, "malformed index.cnxml").WithField("cause", err.Error())
	}

	w := &walker{counters: make(map[string]int)}
	w.walk(root, nil)

	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&adaptarrdb.XrefTarget{}).Error; err != nil {
			return apperror.Internal(err)
		}
		for i := range w.targets {
			w.targets[i].DocumentID = documentID
		}
		if len(w.targets) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "document_id"}, {Name: "element_id"}},
				UpdateAll: true,
			}).Create(&w.targets).Error; err != nil {
				return apperror.Internal(err)
			}
		}
		if err := tx.Model(&adaptarrdb.Document{}).Where("id = ?", documentID).
			Update("xrefs_ready", true).Error; err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
}

// walk visits n and its subtree. context is the id of the nearest enclosing
// exercise/figure, or nil outside of one.
func (w *walker) walk(n *Node, context *string) {
	id, hasID := n.Attrs["id"]

	ownContext := context
	childContext := context
	switch {
	case n.Name == "exercise" || n.Name == "figure":
		childContext = nil
		if hasID {
			childContext = &id
		}
		ownContext = nil
	case ownedKinds[n.Name]:
		// inherits context and childContext as-is
	default:
		ownContext = nil
		childContext = nil
	}

	if typ, ok := elementType(n); ok && hasID {
		w.counters[n.Name]++
		counter := w.counters[n.Name]

		var desc *string
		if d := description(n); d != "" {
			desc = &d
		}

		w.targets = append(w.targets, adaptarrdb.XrefTarget{
			ElementID:   id,
			Type:        typ,
			Description: desc,
			Context:     ownContext,
			Counter:     counter,
		})
	}

	if n.Name == "exercise" {
		delete(w.counters, "solution")
	}
	if n.Name == "figure" {
		delete(w.counters, "subfigure")
	}

	for _, c := range n.Children {
		w.walk(c, childContext)
	}
}

// List returns a document's indexed targets, failing with
// apperror.XrefNotReady while the index hasn't completed yet.
func List(gdb *gorm.DB, documentID uint) ([]adaptarrdb.XrefTarget, error) {
	var doc adaptarrdb.Document
	if err := gdb.First(&doc, documentID).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	if !doc.XrefsReady {
		return nil, apperror.XrefNotReady()
	}

	var targets []adaptarrdb.XrefTarget
	if err := gdb.Where("document_id = ?", documentID).Find(&targets).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return targets, nil
}

// Sweep indexes every document whose xrefs are not yet ready, e.g. on
// startup after a crash mid-index. Failures on individual documents are
// logged by the caller and do not stop the sweep.
func Sweep(gdb *gorm.DB, store *storage.Store, onErr func(documentID uint, err error)) error {
	var ids []uint
	if err := gdb.Model(&adaptarrdb.Document{}).Where("xrefs_ready = ?", false).Pluck("id", &ids).Error; err != nil {
		return apperror.Internal(err)
	}
	for _, id := range ids {
		if err := Index(gdb, store, id); err != nil && onErr != nil {
			onErr(id, err)
		}
	}
	return nil
}
