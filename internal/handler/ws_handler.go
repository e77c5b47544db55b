package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/emobox/emobox-api/internal/ws"
	"github.com/emobox/emobox-api/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// WSHandler attaches WebSocket clients to their room: devices join
// device:<id> via ?device_id=, owners join owner:<uuid> via ?token=.
type WSHandler struct {
	hub        *ws.Hub
	jwtManager *auth.JWTManager
}

func NewWSHandler(hub *ws.Hub, jwtManager *auth.JWTManager) *WSHandler {
	return &WSHandler{hub: hub, jwtManager: jwtManager}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection.
// Devices connect with: ws://host/ws?device_id=<id>
// Browsers connect with: ws://host/ws?token=<jwt>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	var room string

	if deviceID := c.Query("device_id"); deviceID != "" {
		room = ws.DeviceRoom(deviceID)
	} else if tokenString := c.Query("token"); tokenString != "" {
		claims, err := h.jwtManager.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		room = ws.OwnerRoom(claims.UserID.String())
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id or token required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, room)
	h.hub.Register(client)

	log.Printf("✅ WS attached to room %s", room)

	go client.WritePump()
	go client.ReadPump(h.handleWSMessage)
}

// handleWSMessage processes incoming WebSocket frames. Devices only listen;
// the single inbound frame we accept is a socket-borne acknowledgment echo,
// which is ignored here because acks go through the HTTP endpoint.
func (h *WSHandler) handleWSMessage(client *ws.Client, event model.WSEvent) {
	log.Printf("📩 WS received from room %s: %s", client.Room, event.Type)
}
