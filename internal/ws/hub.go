package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "emobox:events"

// DeviceRoom returns the room name a device joins
func DeviceRoom(deviceID string) string { return "device:" + deviceID }

// OwnerRoom returns the room name an owner's browser sessions join
func OwnerRoom(ownerID string) string { return "owner:" + ownerID }

// Hub manages all WebSocket connections grouped into rooms.
// Rooms are addressed by name (device:<id> or owner:<uuid>) and events fan
// out across instances through Redis Pub/Sub.
type Hub struct {
	// Map of room -> set of client connections
	rooms map[string]map[*Client]bool
	mu    sync.RWMutex

	// Channels for registering/unregistering clients
	register   chan *Client
	unregister chan *Client

	// Redis client for Pub/Sub (horizontal scaling)
	rdb *redis.Client

	// Callback when a room gains its first / loses its last connection
	onRoomChange func(room string, attached bool)
}

// NewHub creates a new WebSocket Hub
func NewHub(rdb *redis.Client, onRoomChange func(room string, attached bool)) *Hub {
	return &Hub{
		rooms:        make(map[string]map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		rdb:          rdb,
		onRoomChange: onRoomChange,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	// Start Redis subscriber in a goroutine
	go h.subscribeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// addClient registers a new client connection
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
		// Room just gained its first connection
		if h.onRoomChange != nil {
			go h.onRoomChange(client.Room, true)
		}
	}
	h.rooms[client.Room][client] = true
	log.Printf("✅ Client joined room %s (connections: %d)", client.Room, len(h.rooms[client.Room]))
}

// removeClient unregisters a client connection. Safe to call twice for the
// same client (eviction and the ReadPump's unregister can both race here):
// the send channel is closed only while the client is still a room member.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.Room]
	if !ok {
		return
	}
	if _, member := clients[client]; !member {
		return
	}

	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.rooms, client.Room)
		if h.onRoomChange != nil {
			go h.onRoomChange(client.Room, false)
		}
	}
	log.Printf("❌ Client left room %s", client.Room)
}

// EmitToRoom sends an event to every connection in a room, on any instance
func (h *Hub) EmitToRoom(room string, event *model.WSEvent) {
	h.publishToRedis(&RoomEvent{
		Room:  room,
		Event: event,
	})
}

// Broadcast sends an event to every connected client, on any instance
func (h *Hub) Broadcast(event *model.WSEvent) {
	h.publishToRedis(&RoomEvent{Event: event})
}

// HasRoom reports whether a room has connections on this instance
func (h *Hub) HasRoom(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room]
	return ok
}

// emitToLocalRoom delivers an event to a room's clients on this instance.
// Clients whose send buffer is full are evicted after the read lock is
// released, through removeClient, so the room maps only mutate under the
// write lock and each send channel closes exactly once.
func (h *Hub) emitToLocalRoom(room string, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
			// Client's send buffer is full, drop the connection
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.removeClient(client)
	}
}

// broadcastToLocal delivers an event to every local client
func (h *Hub) broadcastToLocal(event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling broadcast event: %v", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for _, clients := range h.rooms {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				slow = append(slow, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.removeClient(client)
	}
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// RoomEvent wraps an event with its target room for Redis Pub/Sub.
// An empty room means broadcast.
type RoomEvent struct {
	Room  string         `json:"room,omitempty"`
	Event *model.WSEvent `json:"event"`
}

// publishToRedis publishes an event to Redis for cross-instance delivery
func (h *Hub) publishToRedis(data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling for Redis: %v", err)
		return
	}

	if err := h.rdb.Publish(context.Background(), redisChannel, jsonData).Err(); err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

// subscribeRedis subscribes to Redis and delivers events to local clients
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Println("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			var roomEvent RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &roomEvent); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}

			if roomEvent.Event == nil {
				continue
			}
			if roomEvent.Room != "" {
				h.emitToLocalRoom(roomEvent.Room, roomEvent.Event)
			} else {
				h.broadcastToLocal(roomEvent.Event)
			}
		}
	}
}
