// Package process implements the editing-process structure validator
// and the immutable process version store.
package process

import adaptarrdb "adaptarr.dev/db"

// Structure is the input shape to Create: a tree of slots and steps indexed
// positionally. Positions are translated to database ids on create and
// recovered by GetStructure for the round-trip property.
type Structure struct {
	Name  string
	Start int
	Slots []SlotSpec
	Steps []StepSpec
}

// SlotSpec describes one slot: its name, the role ids permitted to occupy
// it (empty meaning unrestricted), and whether it autofills on advancement.
type SlotSpec struct {
	Name     string
	Roles    []uint `yaml:",omitempty"`
	Autofill bool
}

// StepSpec describes one step: the permissions it grants to slots, and the
// links it offers to later steps.
type StepSpec struct {
	Name  string
	Slots []StepSlotSpec `yaml:",omitempty"`
	Links []LinkSpec     `yaml:",omitempty"`
}

// StepSlotSpec grants SlotIndex the given permission at the owning step.
type StepSlotSpec struct {
	SlotIndex  int
	Permission adaptarrdb.StepPermission
}

// LinkSpec is a named transition from the owning step to ToStep, usable by
// whoever occupies SlotIndex.
type LinkSpec struct {
	Name      string
	ToStep    int
	SlotIndex int
}
