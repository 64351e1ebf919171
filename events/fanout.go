package events

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	adaptarrdb "adaptarr.dev/db"
)

// Fanout is the process-wide notification service ("Global mutable
// state": constructed once at startup and passed by reference). It
// implements draft.Notifier and the conversation broker's offline-member
// path, so both subsystems reach the notification service through the same narrow surface.
type Fanout struct {
	db       *gorm.DB
	registry *Registry
	log      *logrus.Entry
}

// New builds a Fanout over db, delivering live pushes through registry.
func New(db *gorm.DB, registry *Registry, log *logrus.Entry) *Fanout {
	return &Fanout{db: db, registry: registry, log: log}
}

// notify inserts one durable Event row per target user and, for any user
// with a live recipient, attempts immediate delivery. A delivery failure
// never rolls back the insert: the row is the source of truth, the live
// push only an optimization.
func (f *Fanout) notify(target Target, kind Kind, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		f.log.WithError(err).WithField("kind", kind).Error("failed to encode event payload")
		return
	}

	for _, userID := range target.UserIDs() {
		row := adaptarrdb.Event{UserID: userID, Kind: string(kind), Unread: true, Data: data}
		if err := f.db.Create(&row).Error; err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{"kind": kind, "user_id": userID}).
				Error("failed to persist event")
			continue
		}
		f.registry.deliver(userID, kind, data)
	}
}

func (f *Fanout) Assigned(moduleID uuid.UUID, documentID uint, slotID, userID uint) {
	f.notify(UserID(userID), KindAssigned, Assigned{ModuleID: moduleID.String(), DocumentID: documentID, SlotID: slotID})
}

func (f *Fanout) SlotFilled(moduleID uuid.UUID, documentID uint, slotID, userID uint) {
	f.notify(UserID(userID), KindSlotFilled, SlotFilled{ModuleID: moduleID.String(), DocumentID: documentID, SlotID: slotID})
}

func (f *Fanout) SlotVacated(moduleID uuid.UUID, documentID uint, slotID, userID uint) {
	f.notify(UserID(userID), KindSlotVacated, SlotVacated{ModuleID: moduleID.String(), DocumentID: documentID, SlotID: slotID})
}

func (f *Fanout) DraftAdvanced(moduleID uuid.UUID, documentID uint, stepID uint, userID uint, perms []string) {
	f.notify(UserID(userID), KindDraftAdvanced, DraftAdvanced{
		ModuleID: moduleID.String(), DocumentID: documentID, StepID: stepID, Permissions: perms,
	})
}

func (f *Fanout) ProcessEnded(moduleID uuid.UUID, documentID uint, userID uint) {
	f.notify(UserID(userID), KindProcessEnded, ProcessEnded{ModuleID: moduleID.String(), DocumentID: documentID})
}

func (f *Fanout) ProcessCancelled(moduleID uuid.UUID, userID uint) {
	f.notify(UserID(userID), KindProcessCancelled, ProcessCancelled{ModuleID: moduleID.String()})
}

// NewMessageOffline notifies a conversation member with no live listener
// that a message was posted; the conversation broker calls this for
// every member it cannot deliver to directly.
func (f *Fanout) NewMessageOffline(conversationID, authorID, recipientID uint, body string) {
	f.notify(UserID(recipientID), KindNewMessage, NewMessage{
		ConversationID: conversationID, AuthorID: authorID, Body: body,
	})
}

// Live reports whether userID currently has a live recipient registered.
func (f *Fanout) Live(userID uint) bool {
	return f.registry.Live(userID)
}

// Registry exposes the underlying live-recipient registry so gateway
// connections can Register/Unregister themselves.
func (f *Fanout) Registry() *Registry { return f.registry }
