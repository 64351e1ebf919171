// Package permission implements the permission algebra:
// a finite 32-bit flag set over two disjoint namespaces, system-wide and
// team-scoped, with integer and human (slug) serialization and a session
// mask that can auto-downgrade from an elevated to a normal profile.
package permission

import "sort"

// Bits is a finite set over the enumerated permission namespace. The zero
// value is Empty.
type Bits uint32

// System-wide bits: granted independent of any team.
const (
	InviteUser Bits = 1 << iota
	EditRoles
	ManageTeams
	ManageUsers
)

// Team-scoped bits: meaningful only within a TeamMember's bitset.
const (
	AddMember Bits = 1 << (iota + 16)
	RemoveMember
	EditMember
	EditRole
	EditBook
	EditModule
	EditProcess
	ManageProcess
	ManageResources
)

// slugs is the total mapping between bits and their human names. from_str is
// total over exactly this list; unknown slugs fail.
var slugs = []struct {
	bit  Bits
	slug string
}{
	{InviteUser, "invite-user"},
	{EditRoles, "edit-roles"},
	{ManageTeams, "manage-teams"},
	{ManageUsers, "manage-users"},
	{AddMember, "add-member"},
	{RemoveMember, "remove-member"},
	{EditMember, "edit-member"},
	{EditRole, "edit-role"},
	{EditBook, "edit-book"},
	{EditModule, "edit-module"},
	{EditProcess, "edit-process"},
	{ManageProcess, "manage-process"},
	{ManageResources, "manage-resources"},
}

// All is the union of every known bit; from_bits rejects any bit outside it.
var All Bits = func() Bits {
	var b Bits
	for _, s := range slugs {
		b |= s.bit
	}
	return b
}()

// Empty is the permission set with no bits granted.
const Empty Bits = 0

// Contains reports whether b holds every bit set in other.
func (b Bits) Contains(other Bits) bool {
	return b&other == other
}

// Insert returns b with every bit of other also set.
func (b Bits) Insert(other Bits) Bits {
	return b | other
}

// Missing returns the subset of other not held by b.
func (b Bits) Missing(other Bits) Bits {
	return other &^ b
}

// Require returns (true, 0) if b holds all of other, else (false, missing).
func (b Bits) Require(other Bits) (bool, Bits) {
	missing := b.Missing(other)
	return missing == Empty, missing
}

// FromBits converts a raw int32 into Bits, rejecting any bit outside the
// known namespace.
func FromBits(raw int32) (Bits, bool) {
	b := Bits(uint32(raw))
	if b&^All != 0 {
		return 0, false
	}
	return b, true
}

// FromStr parses a single slug into its bit. Total over the slug list above;
// unknown slugs report ok=false.
func FromStr(slug string) (Bits, bool) {
	for _, s := range slugs {
		if s.slug == slug {
			return s.bit, true
		}
	}
	return 0, false
}

// Slugs returns the sorted slug names of every bit set in b.
func (b Bits) Slugs() []string {
	var out []string
	for _, s := range slugs {
		if b&s.bit != 0 {
			out = append(out, s.slug)
		}
	}
	sort.Strings(out)
	return out
}

// FromSlugs builds a Bits value from an array of slugs, as produced by a
// human-facing form. Returns the first unknown slug encountered, if any.
func FromSlugs(names []string) (Bits, string, bool) {
	var b Bits
	for _, n := range names {
		bit, ok := FromStr(n)
		if !ok {
			return 0, n, false
		}
		b = b.Insert(bit)
	}
	return b, "", true
}
