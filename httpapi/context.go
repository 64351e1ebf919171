// Package httpapi is a thin, illustrative Echo skeleton wiring the core
// packages into a running process: a login endpoint that issues the sealed
// session cookie, and a WebSocket upgrade endpoint that hands connections
// off to gateway.Session. The REST surface proper is out of scope; this
// exists only so the engine has an entrypoint, the way every teacher repo
// ships a main.go somewhere that actually starts a server.
package httpapi

import (
	"github.com/labstack/echo/v4"

	"adaptarr.dev/permission"
)

const (
	contextKeyUserID  = "user_id"
	contextKeySession = "perm_session"
)

// SetAuth stores the authenticated user id and permission session on c.
func SetAuth(c echo.Context, userID uint, sess *permission.Session) {
	c.Set(contextKeyUserID, userID)
	c.Set(contextKeySession, sess)
}

// UserID returns the authenticated user id, or 0 with ok=false if c has no
// authenticated session.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(contextKeyUserID).(uint)
	return id, ok
}

// PermSession returns the request's permission.Session, or nil with
// ok=false if c has no authenticated session.
func PermSession(c echo.Context) (*permission.Session, bool) {
	sess, ok := c.Get(contextKeySession).(*permission.Session)
	return sess, ok
}
