package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	"adaptarr.dev/auth"
	"adaptarr.dev/permission"
)

const sessionCookieName = "sesid"

// RequireSession validates the sealed session cookie and stores the
// authenticated user id on the request context. Unlike a signed-in-at-login
// permission mask, bits are recomputed per request by RequireTeamPermission
// so role/member changes take effect immediately.
func RequireSession(tokens *auth.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				return writeAppError(c, apperror.SessionRequired())
			}
			claims, err := tokens.ValidateToken(cookie.Value)
			if err != nil {
				return writeAppError(c, apperror.SessionRejected())
			}
			SetAuth(c, claims.UserID, nil)
			return next(c)
		}
	}
}

// RequireTeamPermission returns middleware enforcing that the authenticated
// user's aggregated permissions for the team named by the ":team_id" path
// parameter contain every bit in required. A request may elevate its
// session for this check by sending "?elevated=true", mirroring the
// reauthentication step auth.NewLoginSession defers to its caller.
func RequireTeamPermission(gdb *gorm.DB, required permission.Bits) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := UserID(c)
			if !ok {
				return writeAppError(c, apperror.SessionRequired())
			}
			teamID, err := strconv.ParseUint(c.Param("team_id"), 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid team_id")
			}

			aggregated, err := auth.AggregatePermissions(gdb, uint(teamID), userID)
			if err != nil {
				return writeAppError(c, err)
			}

			profile := permission.Normal
			if c.QueryParam("elevated") == "true" {
				profile = permission.Elevated
			}
			// The session lives for this one request, so any positive idle
			// interval keeps a requested elevation in force for it.
			now := time.Now()
			sess := permission.NewSession(aggregated, profile, time.Minute, now)
			SetAuth(c, userID, sess)

			if ok, missing := sess.Mask(now).Require(required); !ok {
				return writeAppError(c, apperror.InsufficientPermissions(missing.Slugs()))
			}
			return next(c)
		}
	}
}

// writeAppError maps an *apperror.Error (or a wrapped one) to its HTTP
// status; anything else surfaces as an opaque 500.
func writeAppError(c echo.Context, err error) error {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		ae = apperror.Internal(err)
	}
	return c.JSON(int(ae.Status), map[string]interface{}{
		"error":  ae.Slug,
		"detail": ae.Message,
		"fields": ae.Fields,
	})
}
