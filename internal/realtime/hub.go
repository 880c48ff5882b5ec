package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Room names. Officers join their station's room at connect time; admins all
// share one global room.
const (
	RoomAdmin         = "admin"
	stationRoomPrefix = "station:"
)

// StationRoom returns the room name for a station
func StationRoom(stationID string) string {
	return stationRoomPrefix + stationID
}

// Event is the wire envelope pushed to subscribers
type Event struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active connections grouped by room and delivers
// best-effort push events. It is not a durability layer: a subscriber that is
// not connected when an event is emitted receives nothing.
type Hub struct {
	logger     *slog.Logger
	jwtSecret  []byte
	redis      *redis.Client
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// Client represents one WebSocket subscriber pinned to a single room
type Client struct {
	ID   string
	Room string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type joinClaims struct {
	Role      string `json:"role"`
	StationID string `json:"station_id"`
	jwt.RegisteredClaims
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub creates a new hub. The redis client may be nil, in which case events
// are delivered to local subscribers only.
func NewHub(logger *slog.Logger, jwtSecret string, redisClient *redis.Client) *Hub {
	return &Hub{
		logger:     logger,
		jwtSecret:  []byte(jwtSecret),
		redis:      redisClient,
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes client registration until the context is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mutex.Lock()
			if h.rooms[client.Room] == nil {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.mutex.Unlock()
			h.logger.Info("Client joined room", "client_id", client.ID, "room", client.Room)

		case client := <-h.unregister:
			h.mutex.Lock()
			if members, ok := h.rooms[client.Room]; ok {
				if _, ok := members[client]; ok {
					delete(members, client)
					close(client.send)
					if len(members) == 0 {
						delete(h.rooms, client.Room)
					}
				}
			}
			h.mutex.Unlock()
			h.logger.Info("Client left room", "client_id", client.ID, "room", client.Room)
		}
	}
}

// Emit delivers an event to every subscriber currently in the room and, when
// Redis is configured, publishes it for other instances. Rooms with zero
// subscribers are a valid target; the event is simply dropped.
func (h *Hub) Emit(room, event string, payload interface{}) error {
	envelope := Event{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.deliverLocal(room, data)

	if h.redis != nil {
		if err := h.publishToRedis(room, data); err != nil {
			return fmt.Errorf("failed to publish event to redis: %w", err)
		}
	}

	return nil
}

// deliverLocal fans an encoded event out to local room members. Subscribers
// with a full send buffer are skipped rather than blocked on.
func (h *Hub) deliverLocal(room string, data []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping event for slow client", "client_id", client.ID, "room", room)
		}
	}
}

// publishToRedis publishes an event for other service instances
func (h *Hub) publishToRedis(room string, data []byte) error {
	channel := "realtime:" + room
	return h.redis.Publish(context.Background(), channel, data).Err()
}

// SubscribeToRedis routes events published by other instances into local rooms
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.PSubscribe(ctx, "realtime:*")
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			room := strings.TrimPrefix(msg.Channel, "realtime:")
			h.deliverLocal(room, []byte(msg.Payload))
		}
	}
}

// RoomSize returns the number of local subscribers in a room
func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

// HandleWebSocket upgrades the connection and places the client into the room
// matching its token claims: officers land in their station's room, admins in
// the global admin room.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	room, err := h.roomFromToken(c)
	if err != nil {
		h.logger.Warn("Rejected websocket join", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := &Client{
		ID:   fmt.Sprintf("client_%d", time.Now().UnixNano()),
		Room: room,
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// roomFromToken validates the join token and maps its claims to a room
func (h *Hub) roomFromToken(c *gin.Context) (string, error) {
	// An empty secret would verify any token signed with the empty key.
	if len(h.jwtSecret) == 0 {
		return "", fmt.Errorf("jwt secret not configured")
	}

	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		return "", fmt.Errorf("missing token")
	}

	var claims joinClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	switch claims.Role {
	case "officer":
		if claims.StationID == "" {
			return "", fmt.Errorf("officer token missing station_id")
		}
		return StationRoom(claims.StationID), nil
	case "admin":
		return RoomAdmin, nil
	default:
		return "", fmt.Errorf("unknown role: %q", claims.Role)
	}
}

// readPump drains inbound frames and detects disconnects
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Websocket read error", "client_id", c.ID, "error", err)
			}
			return
		}
	}
}

// writePump pushes hub events to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
