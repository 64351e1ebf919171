package permission

import "time"

// Profile selects which slice of a user's aggregated permissions a session
// mask carries: Normal excludes manage-* and system-wide bits requiring a
// fresh authentication; Elevated carries the full aggregated set.
type Profile int

const (
	Normal Profile = iota
	Elevated
)

// elevatedOnly are bits only available to an Elevated session, regardless of
// the user's aggregated permissions.
const elevatedOnly = ManageTeams | ManageUsers | EditRoles | ManageProcess | ManageResources

// Session carries an immutable mask derived at login time from a user's
// aggregated permissions intersected with a profile, plus a timed
// auto-downgrade from Elevated back to Normal after an idle interval.
type Session struct {
	aggregated    Bits
	profile       Profile
	idleDowngrade time.Duration
	lastActivity  time.Time
}

// NewSession derives a session mask for aggregated at the given profile.
func NewSession(aggregated Bits, profile Profile, idleDowngrade time.Duration, now time.Time) *Session {
	return &Session{aggregated: aggregated, profile: profile, idleDowngrade: idleDowngrade, lastActivity: now}
}

// mask is the profile-filtered view of the aggregated permissions.
func (s *Session) mask() Bits {
	if s.profile == Elevated {
		return s.aggregated
	}
	return s.aggregated &^ elevatedOnly
}

// Touch records activity at now, used to reset the idle-downgrade clock.
func (s *Session) Touch(now time.Time) {
	s.lastActivity = now
}

// Mask returns the session's effective permission bits as of now, applying
// the elevated-to-normal auto-downgrade if the idle interval has elapsed.
func (s *Session) Mask(now time.Time) Bits {
	if s.profile == Elevated && now.Sub(s.lastActivity) >= s.idleDowngrade {
		s.profile = Normal
	}
	return s.mask()
}

// CurrentProfile reports the session's current profile as of now, applying the
// same auto-downgrade as Mask.
func (s *Session) CurrentProfile(now time.Time) Profile {
	s.Mask(now)
	return s.profile
}
