package process

import (
	"testing"

	"github.com/stretchr/testify/assert"

	adaptarrdb "adaptarr.dev/db"
)

// validStructure returns the two-step, one-slot-per-link structure used as
// the baseline for every negative test below: mutate one field to provoke
// exactly one rule violation.
func validStructure() *Structure {
	return &Structure{
		Name:  "Review",
		Start: 0,
		Slots: []SlotSpec{{Name: "Slot"}, {Name: "Another slot"}},
		Steps: []StepSpec{
			{
				Name:  "Start",
				Slots: []StepSlotSpec{{SlotIndex: 0, Permission: adaptarrdb.PermEdit}},
				Links: []LinkSpec{{Name: "Link", ToStep: 1, SlotIndex: 0}},
			},
			{Name: "End"},
		},
	}
}

func TestValidateAcceptsBaseline(t *testing.T) {
	assert.Nil(t, Validate(validStructure()))
}

func TestValidateCompleteness(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Structure)
		want   ErrorKind
	}{
		{"empty process name", func(s *Structure) { s.Name = "" }, EmptyProcessName},
		{"empty slot name", func(s *Structure) { s.Slots[0].Name = "" }, EmptySlotName},
		{"empty step name", func(s *Structure) { s.Steps[1].Name = "" }, EmptyStepName},
		{"empty link name", func(s *Structure) { s.Steps[0].Links[0].Name = "" }, EmptyLinkName},
		{"duplicate slot name", func(s *Structure) { s.Slots[1].Name = s.Slots[0].Name }, DuplicateSlotName},
		{"duplicate step name", func(s *Structure) { s.Steps[1].Name = s.Steps[0].Name }, DuplicateStepName},
		{"duplicate link name", func(s *Structure) {
			s.Steps[0].Links = append(s.Steps[0].Links, LinkSpec{Name: "Link", ToStep: 1, SlotIndex: 0})
		}, DuplicateLinkName},
		{"invalid start step", func(s *Structure) { s.Start = 99 }, InvalidStartStep},
		{"invalid step slot", func(s *Structure) { s.Steps[0].Slots[0].SlotIndex = 99 }, InvalidStepSlot},
		{"invalid link target", func(s *Structure) { s.Steps[0].Links[0].ToStep = 99 }, InvalidLinkTarget},
		{"looped link", func(s *Structure) { s.Steps[0].Links[0].ToStep = 0 }, LoopedLink},
		{"invalid link slot", func(s *Structure) { s.Steps[0].Links[0].SlotIndex = 99 }, InvalidLinkSlot},
		{"unusable link", func(s *Structure) { s.Steps[0].Links[0].SlotIndex = 1 }, UnusableLink},
		{"permission duplication", func(s *Structure) {
			s.Steps[0].Slots = append(s.Steps[0].Slots, StepSlotSpec{SlotIndex: 1, Permission: adaptarrdb.PermEdit})
		}, PermissionDuplication},
		{"conflicting permissions", func(s *Structure) {
			s.Steps[0].Slots = append(s.Steps[0].Slots, StepSlotSpec{SlotIndex: 1, Permission: adaptarrdb.PermProposeChanges})
		}, ConflictingPermissions},
		{"missing required permission", func(s *Structure) {
			s.Steps[0].Slots = []StepSlotSpec{{SlotIndex: 0, Permission: adaptarrdb.PermProposeChanges}}
		}, MissingRequiredPermission},
		{"unreachable state", func(s *Structure) {
			s.Steps = append(s.Steps, StepSpec{Name: "Orphan"})
		}, UnreachableState},
		{"isolated step", func(s *Structure) {
			// Steps 2 and 3 form a cycle with no exit: both reachable from
			// start, neither can reach the final step 1.
			s.Steps = append(s.Steps,
				StepSpec{
					Name:  "Loop1",
					Slots: []StepSlotSpec{{SlotIndex: 1, Permission: adaptarrdb.PermView}},
					Links: []LinkSpec{{Name: "ToLoop2", ToStep: 3, SlotIndex: 1}},
				},
				StepSpec{
					Name:  "Loop2",
					Slots: []StepSlotSpec{{SlotIndex: 1, Permission: adaptarrdb.PermView}},
					Links: []LinkSpec{{Name: "ToLoop1", ToStep: 2, SlotIndex: 1}},
				},
			)
			s.Steps[0].Links = append(s.Steps[0].Links, LinkSpec{Name: "ToLoop1From0", ToStep: 2, SlotIndex: 0})
		}, IsolatedStep},
		{"start is final", func(s *Structure) { s.Steps = s.Steps[1:]; s.Start = 0 }, StartIsFinal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStructure()
			tt.mutate(s)
			err := Validate(s)
			if assert.NotNil(t, err, "expected %s to fail validation", tt.name) {
				assert.Equal(t, tt.want, err.Kind)
			}
		})
	}
}
