package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	"adaptarr.dev/auth"
	"adaptarr.dev/conversation"
	"adaptarr.dev/events"
	"adaptarr.dev/gateway"
	"adaptarr.dev/permission"
)

// Server holds the dependencies routes need, set up once at startup by cmd.
type Server struct {
	DB       *gorm.DB
	Tokens   *auth.TokenService
	Broker   *conversation.Broker
	Registry *events.Registry
	Log      *logrus.Entry

	upgrader websocket.Upgrader
}

// New builds the Echo instance and registers routes. Called once from
// cmd/adaptarrd.
func New(s *Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	s.upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.POST("/login", s.handleLogin)

	conversations := e.Group("/conversations/:conversation_id/ws", RequireSession(s.Tokens))
	conversations.GET("", s.handleConversationSocket)

	teams := e.Group("/teams/:team_id", RequireSession(s.Tokens))
	teams.GET("/permissions", s.handlePermissions, RequireTeamPermission(s.DB, permission.Empty))

	return e
}

// handlePermissions reports the caller's effective permission slugs for the
// team named by the path, exercising RequireTeamPermission with no required
// bits (any team member may read their own permissions).
func (s *Server) handlePermissions(c echo.Context) error {
	sess, ok := PermSession(c)
	if !ok {
		return writeAppError(c, apperror.SessionRequired())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"permissions": sess.Mask(time.Now()).Slugs(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin authenticates email/password and sets the sealed session
// cookie. A real deployment would also rate-limit and audit-log this path;
// out of scope here.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	user, err := auth.Authenticate(s.DB, req.Email, req.Password)
	if err != nil {
		return writeAppError(c, err)
	}
	token, err := s.Tokens.GenerateToken(user.ID)
	if err != nil {
		return writeAppError(c, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return c.NoContent(http.StatusNoContent)
}

// handleConversationSocket upgrades to a WebSocket and hands the connection
// off to a gateway.Session bound to the path's conversation id, per the
// cooperative-suspension actor model the wire protocol assumes.
func (s *Server) handleConversationSocket(c echo.Context) error {
	userID, ok := UserID(c)
	if !ok {
		return writeAppError(c, apperror.SessionRequired())
	}
	conversationID, err := strconv.ParseUint(c.Param("conversation_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation_id")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.Log.WithError(err).Warn("websocket upgrade failed")
		return nil
	}

	addr := c.Request().RemoteAddr
	sess := gateway.NewSession(conn, userID, addr, s.Broker, s.Registry, s.Log)
	if err := sess.Attach(uint(conversationID)); err != nil {
		s.Log.WithError(err).Warn("conversation attach failed")
		conn.Close()
		return nil
	}
	defer sess.Detach()

	sess.Run()
	return nil
}
