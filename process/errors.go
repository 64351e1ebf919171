package process

import "fmt"

// ErrorKind enumerates every validator rule violation, in the order
// Validate checks them. Each carries the positional indices of the
// offending input.
type ErrorKind int

const (
	EmptyProcessName ErrorKind = iota
	EmptySlotName
	EmptyStepName
	EmptyLinkName
	DuplicateSlotName
	DuplicateStepName
	DuplicateLinkName
	InvalidStartStep
	InvalidStepSlot
	InvalidLinkTarget
	LoopedLink
	InvalidLinkSlot
	UnusableLink
	PermissionDuplication
	ConflictingPermissions
	MissingRequiredPermission
	UnreachableState
	IsolatedStep
	StartIsFinal
)

var kindNames = map[ErrorKind]string{
	EmptyProcessName:          "EmptyProcessName",
	EmptySlotName:             "EmptySlotName",
	EmptyStepName:             "EmptyStepName",
	EmptyLinkName:             "EmptyLinkName",
	DuplicateSlotName:         "DuplicateSlotName",
	DuplicateStepName:         "DuplicateStepName",
	DuplicateLinkName:         "DuplicateLinkName",
	InvalidStartStep:          "InvalidStartStep",
	InvalidStepSlot:           "InvalidStepSlot",
	InvalidLinkTarget:         "InvalidLinkTarget",
	LoopedLink:                "LoopedLink",
	InvalidLinkSlot:           "InvalidLinkSlot",
	UnusableLink:              "UnusableLink",
	PermissionDuplication:     "PermissionDuplication",
	ConflictingPermissions:    "ConflictingPermissions",
	MissingRequiredPermission: "MissingRequiredPermission",
	UnreachableState:          "UnreachableState",
	IsolatedStep:              "IsolatedStep",
	StartIsFinal:              "StartIsFinal",
}

func (k ErrorKind) String() string { return kindNames[k] }

// ValidateError is a single validator failure, carrying whichever of Step,
// Slot, Link indices are relevant to Kind (negative when not applicable).
type ValidateError struct {
	Kind ErrorKind
	Step int
	Slot int
	Link int
}

func (e *ValidateError) Error() string {
	return fmt.Sprintf("%s (step=%d slot=%d link=%d)", e.Kind, e.Step, e.Slot, e.Link)
}

func newErr(kind ErrorKind) *ValidateError {
	return &ValidateError{Kind: kind, Step: -1, Slot: -1, Link: -1}
}

// ErrDuplicateName is returned by Create when a process name collides with
// an existing one for the team.
type ErrDuplicateName struct{ Name string }

func (e *ErrDuplicateName) Error() string { return fmt.Sprintf("process name %q already exists", e.Name) }
