package auth

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/permission"
)

// Authenticate looks up a user by email and validates password against the
// stored bcrypt hash, returning apperror.UserNotFound for an unknown email and
// apperror.BadPassword for a wrong password.
func Authenticate(gdb *gorm.DB, email, password string) (*adaptarrdb.User, error) {
	var user adaptarrdb.User
	if err := gdb.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.UserNotFound()
		}
		return nil, apperror.Internal(err)
	}
	if err := ValidatePassword(password, user.PasswordHash); err != nil {
		return nil, apperror.BadPassword()
	}
	return &user, nil
}

// AggregatePermissions computes a team member's effective permission bits:
// their own member bits unioned with their role's bits, if any.
func AggregatePermissions(gdb *gorm.DB, teamID, userID uint) (permission.Bits, error) {
	var member adaptarrdb.TeamMember
	if err := gdb.Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return permission.Empty, nil
		}
		return 0, apperror.Internal(err)
	}

	bits := permission.Bits(member.Permissions)
	if member.RoleID != nil {
		var role adaptarrdb.Role
		if err := gdb.First(&role, *member.RoleID).Error; err != nil {
			return 0, apperror.Internal(err)
		}
		bits = bits.Insert(permission.Bits(role.Permissions))
	}
	return bits, nil
}

// NewLoginSession derives a session mask for user at login, starting in the
// Normal profile; elevation to Elevated happens through a separate
// reauthentication step not modeled here.
func NewLoginSession(aggregated permission.Bits, idleDowngrade time.Duration) *permission.Session {
	return permission.NewSession(aggregated, permission.Normal, idleDowngrade, time.Now())
}
