package draft

import "github.com/google/uuid"

// Notifier is how the draft runtime reaches the event fan-out without
// importing it directly; events.Fanout implements this.
type Notifier interface {
	Assigned(moduleID uuid.UUID, documentID uint, slotID, userID uint)
	SlotFilled(moduleID uuid.UUID, documentID uint, slotID, userID uint)
	SlotVacated(moduleID uuid.UUID, documentID uint, slotID, userID uint)
	DraftAdvanced(moduleID uuid.UUID, documentID uint, stepID uint, userID uint, perms []string)
	ProcessEnded(moduleID uuid.UUID, documentID uint, userID uint)
	ProcessCancelled(moduleID uuid.UUID, userID uint)
}

// NopNotifier discards every event; useful in tests that don't care about
// the fan-out side effects.
type NopNotifier struct{}

func (NopNotifier) Assigned(uuid.UUID, uint, uint, uint)                {}
func (NopNotifier) SlotFilled(uuid.UUID, uint, uint, uint)              {}
func (NopNotifier) SlotVacated(uuid.UUID, uint, uint, uint)             {}
func (NopNotifier) DraftAdvanced(uuid.UUID, uint, uint, uint, []string) {}
func (NopNotifier) ProcessEnded(uuid.UUID, uint, uint)                  {}
func (NopNotifier) ProcessCancelled(uuid.UUID, uint)                    {}
