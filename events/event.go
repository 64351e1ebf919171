// Package events implements the event/notification fan-out: durable
// per-user Event rows, a live-recipient registry for immediate delivery,
// and a periodic mail digest.
package events

import "encoding/json"

// Kind discriminates the closed sum of notification payloads. Decoding
// is total over this set; an unrecognized kind from the database is an
// error, never silently skipped.
type Kind string

const (
	KindAssigned         Kind = "assigned"
	KindProcessEnded     Kind = "process-ended"
	KindProcessCancelled Kind = "process-cancelled"
	KindSlotFilled       Kind = "slot-filled"
	KindSlotVacated      Kind = "slot-vacated"
	KindDraftAdvanced    Kind = "draft-advanced"
	KindNewMessage       Kind = "new-message"
)

// Assigned is emitted when a user is first seated into a draft at
// creation time.
type Assigned struct {
	ModuleID   string `json:"module_id"`
	DocumentID uint   `json:"document_id"`
	SlotID     uint   `json:"slot_id"`
}

// SlotFilled is emitted when a user takes an already-created draft's seat,
// replacing whoever (if anyone) held it.
type SlotFilled struct {
	ModuleID   string `json:"module_id"`
	DocumentID uint   `json:"document_id"`
	SlotID     uint   `json:"slot_id"`
}

// SlotVacated is emitted to the user who is displaced by a SlotFilled.
type SlotVacated struct {
	ModuleID   string `json:"module_id"`
	DocumentID uint   `json:"document_id"`
	SlotID     uint   `json:"slot_id"`
}

// DraftAdvanced is emitted to every user seated at a draft's new step,
// carrying the permissions they hold there.
type DraftAdvanced struct {
	ModuleID    string   `json:"module_id"`
	DocumentID  uint     `json:"document_id"`
	StepID      uint     `json:"step_id"`
	Permissions []string `json:"permissions"`
}

// ProcessEnded is emitted to every previously seated user once a draft
// reaches a final step and is promoted into a module version.
type ProcessEnded struct {
	ModuleID   string `json:"module_id"`
	DocumentID uint   `json:"document_id"`
}

// ProcessCancelled is emitted to every seated user when a draft is
// terminated by a process manager.
type ProcessCancelled struct {
	ModuleID string `json:"module_id"`
}

// NewMessage is emitted to conversation members with no live listener when
// a message is posted.
type NewMessage struct {
	ConversationID uint   `json:"conversation_id"`
	AuthorID       uint   `json:"author_id"`
	Body           string `json:"body"`
}

// encode marshals a payload for the Event.Data column; the kind itself is
// stored separately in Event.Kind.
func encode(payload interface{}) ([]byte, error) {
	return json.Marshal(payload)
}
