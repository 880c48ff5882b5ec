package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestHub() *Hub {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(logger, testSecret, nil)
}

func newTestClient(room string) *Client {
	return &Client{
		ID:   "client-" + room,
		Room: room,
		send: make(chan []byte, 8),
	}
}

func joinRoom(t *testing.T, h *Hub, client *Client) {
	t.Helper()
	h.register <- client
	require.Eventually(t, func() bool {
		return h.RoomSize(client.Room) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestHubEmitDeliversToRoomMembers(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	officer := newTestClient(StationRoom("station-1"))
	officer.hub = h
	admin := newTestClient(RoomAdmin)
	admin.hub = h
	joinRoom(t, h, officer)
	joinRoom(t, h, admin)

	err := h.Emit(StationRoom("station-1"), "WATCHLIST_HIT", map[string]string{"alert_id": "a1"})
	require.NoError(t, err)

	select {
	case data := <-officer.send:
		var envelope Event
		require.NoError(t, json.Unmarshal(data, &envelope))
		assert.Equal(t, "WATCHLIST_HIT", envelope.Event)
		assert.False(t, envelope.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("officer never received the event")
	}

	// The admin room was not targeted.
	select {
	case <-admin.send:
		t.Fatal("admin received an event for another room")
	default:
	}
}

func TestHubEmitToEmptyRoomSucceeds(t *testing.T) {
	h := newTestHub()
	assert.NoError(t, h.Emit(StationRoom("nobody-home"), "WATCHLIST_HIT", nil))
}

func TestHubSkipsSlowClients(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	slow := &Client{ID: "slow", Room: RoomAdmin, hub: h, send: make(chan []byte)}
	joinRoom(t, h, slow)

	// Nobody drains slow.send; Emit must not block.
	done := make(chan struct{})
	go func() {
		h.Emit(RoomAdmin, "WATCHLIST_HIT_ADMIN", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow client")
	}
}

func TestHubUnregisterEmptiesRoom(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := newTestClient(StationRoom("station-2"))
	client.hub = h
	joinRoom(t, h, client)

	h.unregister <- client
	require.Eventually(t, func() bool {
		return h.RoomSize(client.Room) == 0
	}, time.Second, 5*time.Millisecond)
}

func signToken(t *testing.T, claims joinClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func ginContextWithToken(token string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/ws?token="+token, nil)
	return c
}

func TestRoomFromToken(t *testing.T) {
	h := newTestHub()

	t.Run("officer joins station room", func(t *testing.T) {
		token := signToken(t, joinClaims{Role: "officer", StationID: "station-7"})
		room, err := h.roomFromToken(ginContextWithToken(token))
		require.NoError(t, err)
		assert.Equal(t, StationRoom("station-7"), room)
	})

	t.Run("admin joins admin room", func(t *testing.T) {
		token := signToken(t, joinClaims{Role: "admin"})
		room, err := h.roomFromToken(ginContextWithToken(token))
		require.NoError(t, err)
		assert.Equal(t, RoomAdmin, room)
	})

	t.Run("officer without station rejected", func(t *testing.T) {
		token := signToken(t, joinClaims{Role: "officer"})
		_, err := h.roomFromToken(ginContextWithToken(token))
		assert.Error(t, err)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		token := signToken(t, joinClaims{Role: "hotel"})
		_, err := h.roomFromToken(ginContextWithToken(token))
		assert.Error(t, err)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		_, err := h.roomFromToken(ginContextWithToken(""))
		assert.Error(t, err)
	})

	t.Run("unconfigured secret rejects every join", func(t *testing.T) {
		bare := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), "", nil)
		token := signToken(t, joinClaims{Role: "admin"})
		_, err := bare.roomFromToken(ginContextWithToken(token))
		assert.Error(t, err)

		// Including a token signed with the empty key itself.
		empty := jwt.NewWithClaims(jwt.SigningMethodHS256, joinClaims{Role: "admin"})
		signed, err := empty.SignedString([]byte(""))
		require.NoError(t, err)
		_, err = bare.roomFromToken(ginContextWithToken(signed))
		assert.Error(t, err)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, joinClaims{Role: "admin"})
		signed, err := token.SignedString([]byte("someone-elses-secret"))
		require.NoError(t, err)
		_, err = h.roomFromToken(ginContextWithToken(signed))
		assert.Error(t, err)
	})
}
