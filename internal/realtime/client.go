package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/middleware"
)

// ErrForbidden is returned by an AuthorizeFunc when the user may not watch the set.
var ErrForbidden = errors.New("not authorized for this qr code set")

// AuthorizeFunc validates a staff token for a set and returns the user.
type AuthorizeFunc func(ctx context.Context, token string, setID uuid.UUID) (uuid.UUID, error)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one dashboard connection watching a QR code set. The feed is read-only:
// the only client message handled is "ping".
type Client struct {
	ID     string
	SetID  uuid.UUID
	UserID uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
}

// NewUpgrader returns a websocket upgrader accepting the given origins ("*" allows all).
func NewUpgrader(allowedOrigins string) *websocket.Upgrader {
	origins := middleware.ParseOrigins(allowedOrigins)
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origins.Allows(origin)
		},
	}
}

// ServeWs handles GET /ws?qr_code_set_id=&token= and runs the client loop.
func ServeWs(hub *Hub, upgrader *websocket.Upgrader, authorize AuthorizeFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		setIDStr := c.Query("qr_code_set_id")
		token := c.Query("token")
		if setIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "qr_code_set_id and token required"})
			return
		}
		setID, err := uuid.Parse(setIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid qr_code_set_id"})
			return
		}
		userID, err := authorize(c.Request.Context(), token, setID)
		if errors.Is(err, ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			SetID:  setID,
			UserID: userID,
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, 256),
			logger: logger,
		}
		hub.Register(client)
		hub.sendTo(client, EventConnected, map[string]interface{}{
			"qr_code_set_id": setID,
			"viewers":        hub.Viewers(setID),
		})
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.Error(err), zap.String("client_id", c.ID))
			}
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		if msg.Event == "ping" {
			c.hub.sendTo(c, EventPong, map[string]int64{"at": time.Now().Unix()})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
