package apperror

// Constructors below enumerate the slug catalog, grouped
// by subsystem. Each returns a distinct *Error so callers can both log a
// stable slug and, where the rule carries data (missing permissions, a
// validator variant, a cause), attach it via WithField.

// Identity
func UserNotFound() *Error { return New("user:not-found", StatusNotFound, "user not found") }
func BadPassword() *Error {
	return New("user:authenticate:bad-password", StatusUnauthorized, "incorrect password")
}
func InsufficientPermissions(missing interface{}) *Error {
	return New("user:insufficient-permissions", StatusForbidden, "insufficient permissions").WithField("missing", missing)
}
func SessionRequired() *Error {
	return New("user:session:required", StatusUnauthorized, "session required")
}
func SessionRejected() *Error {
	return New("user:session:rejected", StatusUnauthorized, "session rejected")
}

// Process authoring
func ProcessExists() *Error {
	return New("edit-process:new:exists", StatusConflict, "a process with this name already exists")
}
func InvalidDescription(variant string) *Error {
	return New("edit-process:new:invalid-description", StatusBadRequest, "invalid process structure").WithField("variant", variant)
}
func DuplicateSlotName() *Error {
	return New("edit-process:slot:name:duplicate", StatusBadRequest, "duplicate slot name")
}
func DuplicateStepName() *Error {
	return New("edit-process:step:name:duplicate", StatusBadRequest, "duplicate step name")
}

// Draft runtime
func DraftExists() *Error {
	return New("draft:create:exists", StatusConflict, "a draft already exists for this module")
}
func DraftBadSlot() *Error {
	return New("draft:create:bad-slot", StatusBadRequest, "slot does not belong to this process version")
}
func DraftInsufficientPermission(perm string) *Error {
	return New("draft:process:insufficient-permission", StatusForbidden, "missing required permission").WithField("permission", perm)
}
func AdvanceBadSlot() *Error {
	return New("draft:advance:bad-slot", StatusBadRequest, "no such seat on this draft")
}
func AdvanceBadUser() *Error {
	return New("draft:advance:bad-user", StatusForbidden, "slot is occupied by a different user")
}
func AdvanceBadLink() *Error {
	return New("draft:advance:bad-link", StatusBadRequest, "no such link from the current step")
}
func NoEligibleUser() *Error {
	return New("draft:autofill:no-user", StatusConflict, "no eligible user to autofill this slot")
}
func FillSlot(slotID uint, cause error) *Error {
	return New("draft:advance:fill-slot", StatusConflict, "could not seat a required slot").
		WithField("slot_id", slotID).WithField("cause", cause.Error())
}

// Content
func ModuleNotFound() *Error {
	return New("module:not-found", StatusNotFound, "module not found")
}
func XrefNotReady() *Error {
	return New("module:xref:not-ready", StatusConflict, "cross-reference index is not ready yet")
}
func ModuleHasDrafts() *Error {
	return New("module:replace:has-draft", StatusConflict, "module has an active draft")
}
func BookPartIsRoot() *Error {
	return New("bookpart:delete:is-root", StatusBadRequest, "cannot delete the root part of a book")
}
func BookPartIsModule() *Error {
	return New("bookpart:reparent:is-module", StatusBadRequest, "cannot reparent a module part as a group")
}
func BookPartCreateIsModule() *Error {
	return New("bookpart:create-part:is-module", StatusBadRequest, "cannot create a part under a module")
}
func BookPartGetPartsIsModule() *Error {
	return New("bookpart:get-parts:is-module", StatusBadRequest, "a module has no parts of its own")
}
func BookPartNotFound() *Error {
	return New("bookpart:not-found", StatusNotFound, "book part not found")
}

// Protocol
func UnknownKind(kind uint16) *Error {
	return New("protocol:unknown-kind", StatusBadRequest, "unknown frame kind").WithField("kind", kind)
}

// Conversation
func ConversationNotFound() *Error {
	return New("conversation:not-found", StatusNotFound, "conversation does not exist")
}
func InvalidMessage(reason string) *Error {
	return New("conversation:message:invalid", StatusBadRequest, reason)
}
func BadHistoryReference() *Error {
	return New("conversation:history:bad-reference", StatusBadRequest, "reference event not found")
}
