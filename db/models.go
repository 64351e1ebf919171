// Package db holds the GORM schema for every entity in adaptarr's data model
// and the connection/migration helpers used to reach it. Domain packages
// (permission, process, storage, draft, events, xref, conversation) depend on
// the models here but never on each other's persistence details.
package db

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated principal: an account created by registration or
// invite. Deletion is not modeled; accounts are permanent once created.
type User struct {
	ID           uint `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	DisplayName  string `gorm:"not null"`
	Language     string `gorm:"not null;default:en"`
	Super        bool   `gorm:"not null;default:false"`
	PasswordHash string `gorm:"not null"` // bcrypt digest; bcrypt embeds its own salt
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Team scopes roles, members, processes, books and modules.
type Team struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

// Role carries a team-scoped permission bitset reusable across members.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	TeamID      uint `gorm:"not null;uniqueIndex:idx_role_team_name"`
	Name        string `gorm:"not null;uniqueIndex:idx_role_team_name"`
	Permissions uint32 `gorm:"not null"`
}

// TeamMember is the (team, user) membership row. Effective team permission
// bits are Permissions ∪ the referenced Role's bits, resolved by callers
// rather than stored denormalized.
type TeamMember struct {
	TeamID      uint `gorm:"primaryKey"`
	UserID      uint `gorm:"primaryKey"`
	Permissions uint32 `gorm:"not null"`
	RoleID      *uint
}

// File is a content-addressed blob. Hash uniqueness coalesces repeat writes
// of identical bytes onto one row and one stored path.
type File struct {
	ID   uint   `gorm:"primaryKey"`
	MIME string `gorm:"not null"`
	Path string `gorm:"not null"`
	Hash []byte `gorm:"uniqueIndex;not null"` // 64-byte BLAKE2b digest
}

// Document is an immutable snapshot of CNXML plus named side files, once it
// is referenced by a ModuleVersion.
type Document struct {
	ID          uint `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Language    string `gorm:"not null"`
	IndexFileID uint   `gorm:"not null"`
	IndexFile   File   `gorm:"foreignKey:IndexFileID"`
	XrefsReady  bool   `gorm:"not null;default:false"`
}

// DocumentFile is a named side file attached to a Document. The pair
// (document, name) is unique.
type DocumentFile struct {
	DocumentID uint   `gorm:"primaryKey"`
	Name       string `gorm:"primaryKey"`
	FileID     uint   `gorm:"not null"`
	File       File   `gorm:"foreignKey:FileID"`
}

// Module is a stable-identified unit of authored content pointing at its
// current Document. The uuid is stable across document replacement.
type Module struct {
	ID                uuid.UUID `gorm:"primaryKey;type:uuid"`
	TeamID            uint      `gorm:"not null"`
	CurrentDocumentID uint      `gorm:"not null"`
	CurrentDocument   Document  `gorm:"foreignKey:CurrentDocumentID"`
}

// ModuleVersion is an append-only history row; the latest by CreatedAt is the
// current version whenever no Draft exists for the module.
type ModuleVersion struct {
	ID         uint      `gorm:"primaryKey"`
	ModuleID   uuid.UUID `gorm:"not null;index;type:uuid"`
	DocumentID uint      `gorm:"not null"`
	CreatedAt  time.Time
}

// Book is the root of a BookPart tree. RootPartID names the group part that
// cannot be deleted or reparented.
type Book struct {
	ID         uint   `gorm:"primaryKey"`
	Title      string `gorm:"not null"`
	RootPartID uint
}

// BookPart is either a group (ModuleID nil, has children) or a module leaf.
// Index is unique and dense among siblings sharing (BookID, ParentID).
type BookPart struct {
	ID       uint       `gorm:"primaryKey"`
	BookID   uint       `gorm:"not null;uniqueIndex:idx_bookpart_sibling_index"`
	ParentID *uint      `gorm:"uniqueIndex:idx_bookpart_sibling_index"`
	Index    int        `gorm:"not null;uniqueIndex:idx_bookpart_sibling_index"`
	Title    string     `gorm:"not null"`
	ModuleID *uuid.UUID `gorm:"type:uuid"`
}

// Process is the authoring-layer container for its immutable ProcessVersions.
type Process struct {
	ID     uint `gorm:"primaryKey"`
	TeamID uint `gorm:"not null;uniqueIndex:idx_process_team_name"`
	Name   string `gorm:"not null;uniqueIndex:idx_process_team_name"`
}

// ProcessVersion is an immutable snapshot of a process's wiring.
type ProcessVersion struct {
	ID          uint `gorm:"primaryKey"`
	ProcessID   uint `gorm:"not null;index"`
	CreatedAt   time.Time
	StartStepID uint `gorm:"not null"`
}

// Slot is an abstract role within a version, seated per-draft by a user.
// Roles, when non-empty, restrict who may self-assign or be autofilled.
type Slot struct {
	ID        uint `gorm:"primaryKey"`
	VersionID uint `gorm:"not null;index;uniqueIndex:idx_slot_version_name"`
	Name      string `gorm:"not null;uniqueIndex:idx_slot_version_name"`
	Autofill  bool   `gorm:"not null;default:false"`
}

// SlotRole restricts a Slot to members holding one of the listed roles. A
// slot with no SlotRole rows is unrestricted.
type SlotRole struct {
	SlotID uint `gorm:"primaryKey"`
	RoleID uint `gorm:"primaryKey"`
}

// Step is a node in a ProcessVersion.
type Step struct {
	ID        uint `gorm:"primaryKey"`
	VersionID uint `gorm:"not null;index;uniqueIndex:idx_step_version_name"`
	Name      string `gorm:"not null;uniqueIndex:idx_step_version_name"`
}

// StepPermission enumerates the permissions a StepSlot may grant.
type StepPermission string

const (
	PermView            StepPermission = "view"
	PermEdit            StepPermission = "edit"
	PermProposeChanges  StepPermission = "propose-changes"
	PermAcceptChanges   StepPermission = "accept-changes"
)

// StepSlot grants a slot a permission at a step.
type StepSlot struct {
	StepID     uint           `gorm:"primaryKey"`
	SlotID     uint           `gorm:"primaryKey"`
	Permission StepPermission `gorm:"primaryKey"`
}

// Link is a directed transition: a user occupying Slot at FromStep may
// advance the draft to ToStep.
type Link struct {
	ID         uint `gorm:"primaryKey"`
	FromStepID uint `gorm:"not null;index"`
	ToStepID   uint `gorm:"not null"`
	SlotID     uint `gorm:"not null"`
	Name       string `gorm:"not null"`
}

// Draft is the mutable working state of a module under an editing process.
// Exactly one draft may exist per module; ModuleID is its own primary key.
type Draft struct {
	ModuleID   uuid.UUID `gorm:"primaryKey;type:uuid"`
	VersionID  uint      `gorm:"not null"`
	StepID     uint      `gorm:"not null"`
	DocumentID uint      `gorm:"not null"`
}

// DraftSlot is a seat: a Slot on a Draft, optionally occupied by a user.
type DraftSlot struct {
	DraftModuleID uuid.UUID `gorm:"primaryKey;type:uuid"`
	SlotID        uint      `gorm:"primaryKey"`
	UserID        *uint
}

// Conversation is a per-group chat log; membership lives in
// ConversationMember.
type Conversation struct {
	ID uint `gorm:"primaryKey"`
}

// ConversationMember is the (conversation, user) membership row.
type ConversationMember struct {
	ConversationID uint `gorm:"primaryKey"`
	UserID         uint `gorm:"primaryKey"`
}

// ConversationEvent is one entry in a conversation's append-only log: either
// a user message or a system notification, ordered by insertion.
type ConversationEvent struct {
	ID             uint `gorm:"primaryKey"`
	ConversationID uint `gorm:"not null;index"`
	Kind           string `gorm:"not null"`
	CreatedAt      time.Time
	AuthorID       *uint
	Data           []byte
}

// Event is a user-facing notification row, expanded into mail digests by the
// periodic job in the events package.
type Event struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index"`
	CreatedAt time.Time
	Kind      string `gorm:"not null"`
	Unread    bool   `gorm:"not null;default:true;index"`
	Data      []byte
}

// XrefTarget is one addressable, indexed element inside a Document.
type XrefTarget struct {
	DocumentID  uint   `gorm:"primaryKey"`
	ElementID   string `gorm:"primaryKey"`
	Type        string `gorm:"not null"`
	Description *string
	Context     *string
	Counter     int `gorm:"not null"`
}

// NotificationWatermark is the single-row table tracking the last digest
// tick; updated in the same transaction as the mail dispatch it guards.
type NotificationWatermark struct {
	ID       uint `gorm:"primaryKey"`
	LastTick time.Time
}

// AllModels lists every model for AutoMigrate, in an order that satisfies
// foreign-key dependencies.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Team{}, &Role{}, &TeamMember{},
		&File{}, &Document{}, &DocumentFile{},
		&Module{}, &ModuleVersion{},
		&Book{}, &BookPart{},
		&Process{}, &ProcessVersion{}, &Slot{}, &SlotRole{}, &Step{}, &StepSlot{}, &Link{},
		&Draft{}, &DraftSlot{},
		&Conversation{}, &ConversationMember{}, &ConversationEvent{},
		&Event{}, &XrefTarget{}, &NotificationWatermark{},
	}
}
