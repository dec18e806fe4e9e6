package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pulsechat/pulse/internal/auth"
	"github.com/pulsechat/pulse/internal/repository"
	"go.uber.org/zap"
)

// Handler performs the authenticated WebSocket handshake and hands
// admitted connections to the hub.
type Handler struct {
	hub          *Hub
	users        repository.UserRepository
	accessSecret string
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

func NewHandler(hub *Hub, users repository.UserRepository, accessSecret string, logger *zap.Logger) *Handler {
	return &Handler{
		hub:          hub,
		users:        users,
		accessSecret: accessSecret,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the fronting proxy; browsers
			// cannot set Authorization headers on WebSocket connects, so
			// the token rides in the query string instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /v1/ws?token=<access token>.
//
// Everything that can refuse the connection happens before the upgrade:
// token presence, signature/expiry/class verification, and one store
// lookup proving the user still exists (which also fetches the profile
// fields bound to the connection for message denormalization). A refused
// handshake creates no state anywhere.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := auth.ParseToken(token, h.accessSecret, auth.TokenTypeAccess)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("handshake user lookup failed",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws, *user)
	h.hub.Connect(conn)

	go conn.writePump()
	h.hub.readLoop(conn)
}
