package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
)

// ExpandedEvent is the renderable form a mail template consumes: an
// Event row's payload plus the human-facing names the template can't
// resolve itself (module/document title, slot/step/author names).
type ExpandedEvent struct {
	Kind        Kind
	CreatedAt   time.Time
	Title       string // module or document title, where applicable
	SlotName    string
	StepName    string
	Permissions []string
	AuthorName  string
	Body        string
}

// MailSender dispatches one grouped digest to a single user.
type MailSender interface {
	SendDigest(userID uint, events []ExpandedEvent) error
}

// LogMailSender is the narrow stand-in for a real mail transport: it logs
// what would have been sent instead of delivering it. Mail transport itself
// is out of scope; this keeps RunDigest exercisable without one.
type LogMailSender struct {
	Log *logrus.Entry
}

func (s LogMailSender) SendDigest(userID uint, events []ExpandedEvent) error {
	s.Log.WithFields(logrus.Fields{"user_id": userID, "count": len(events)}).Info("digest mail (stub transport)")
	return nil
}

// RunDigest selects every unread event created since the watermark's last
// tick, groups by user, expands and mails each group, and advances the
// watermark to now — all within one transaction, so a failure mid-digest
// leaves the watermark unmoved and loses no batch. Digests already handed to
// the sender before the failure are sent again on the next run.
func RunDigest(db *gorm.DB, sender MailSender, log *logrus.Entry, now time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var wm adaptarrdb.NotificationWatermark
		if err := tx.First(&wm, 1).Error; err != nil {
			return apperror.Internal(err)
		}

		var rows []adaptarrdb.Event
		if err := tx.Where("unread = ? AND created_at > ?", true, wm.LastTick).
			Order("user_id").Find(&rows).Error; err != nil {
			return apperror.Internal(err)
		}

		order := make([]uint, 0)
		grouped := make(map[uint][]adaptarrdb.Event)
		for _, r := range rows {
			if _, seen := grouped[r.UserID]; !seen {
				order = append(order, r.UserID)
			}
			grouped[r.UserID] = append(grouped[r.UserID], r)
		}

		for _, userID := range order {
			expanded := make([]ExpandedEvent, 0, len(grouped[userID]))
			for _, row := range grouped[userID] {
				ev, err := expand(tx, row)
				if err != nil {
					return err
				}
				expanded = append(expanded, ev)
			}
			if err := sender.SendDigest(userID, expanded); err != nil {
				log.WithError(err).WithField("user_id", userID).Error("failed to send digest mail")
				return apperror.Internal(err)
			}
		}

		return tx.Model(&wm).Update("last_tick", now).Error
	})
}

// expand decodes row's payload per its kind and resolves display names.
// An unrecognized kind is an error, never silently skipped.
func expand(tx *gorm.DB, row adaptarrdb.Event) (ExpandedEvent, error) {
	out := ExpandedEvent{Kind: Kind(row.Kind), CreatedAt: row.CreatedAt}

	switch Kind(row.Kind) {
	case KindAssigned:
		var p Assigned
		if err := unmarshal(row.Data, &p); err != nil {
			return out, err
		}
		out.Title = documentTitle(tx, p.DocumentID)
		out.SlotName = slotName(tx, p.SlotID)
	case KindSlotFilled:
		var p SlotFilled
		if err := unmarshal(row.Data, &p); err != nil {
			return out, err
		}
		out.Title = documentTitle(tx, p.DocumentID)
		out.SlotName = slotName(tx, p.SlotID)
	case KindSlotVacated:
		var p SlotVacated
		if err := unmarshal(row.Data, &p); err != nil {
			return out, err
		}
		out.Title = documentTitle(tx, p.DocumentID)
		out.SlotName = slotName(tx, p.SlotID)
	case KindDraftAdvanced:
		var p DraftAdvanced
		if err := unmarshal(row.Data, &p); err != nil {
			return out, err
		}
		out.Title = documentTitle(tx, p.DocumentID)
		out.StepName = stepName(tx, p.StepID)
		out.Permissions = p.Permissions
	case KindProcessEnded:
		var p ProcessEnded
		if err := unmarshal(row.Data, &p); err != nil {
			return out, err
		}
		out.Title = documentTitle(tx, p.DocumentID)
	case KindProcessCancelled:
		var p ProcessCancelled
		if err := unmarshal(row.Data, &p); err != nil {
			return out, err
		}
	case KindNewMessage:
		var p NewMessage
		if err := unmarshal(row.Data, &p); err != nil {
			return out, err
		}
		out.AuthorName = userName(tx, p.AuthorID)
		out.Body = p.Body
	default:
		return out, apperror.New("event:unknown-kind", apperror.StatusInternal, fmt.Sprintf("unrecognized event kind %q", row.Kind))
	}

	return out, nil
}

func unmarshal(data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func documentTitle(tx *gorm.DB, documentID uint) string {
	var doc adaptarrdb.Document
	if err := tx.First(&doc, documentID).Error; err != nil {
		return ""
	}
	return doc.Title
}

func slotName(tx *gorm.DB, slotID uint) string {
	var slot adaptarrdb.Slot
	if err := tx.First(&slot, slotID).Error; err != nil {
		return ""
	}
	return slot.Name
}

func stepName(tx *gorm.DB, stepID uint) string {
	var step adaptarrdb.Step
	if err := tx.First(&step, stepID).Error; err != nil {
		return ""
	}
	return step.Name
}

func userName(tx *gorm.DB, userID uint) string {
	var u adaptarrdb.User
	if err := tx.First(&u, userID).Error; err != nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
