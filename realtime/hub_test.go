package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func dialRoom(t *testing.T, hub *Hub, room string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn, room)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount(room) == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHubPublishReachesRoom(t *testing.T) {
	hub := newTestHub(t)
	conn := dialRoom(t, hub, "user_alice")

	hub.Publish("MATCH_JOINED", map[string]string{"match_id": "m1"}, "match_m1", "user_alice")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
		RoomID  string            `json:"room_id"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "MATCH_JOINED", msg.Type)
	assert.Equal(t, "user_alice", msg.RoomID)
	assert.Equal(t, "m1", msg.Payload["match_id"])
}

func TestHubDropsClientOnDisconnect(t *testing.T) {
	hub := newTestHub(t)
	conn := dialRoom(t, hub, "match_x")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount("match_x") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishToEmptyRoomIsNoop(t *testing.T) {
	hub := newTestHub(t)
	assert.NotPanics(t, func() {
		hub.Publish("MATCH_DELETED", nil, "user_nobody")
	})
}

type countingPayload struct {
	calls *int32
}

func (p countingPayload) MarshalJSON() ([]byte, error) {
	atomic.AddInt32(p.calls, 1)
	return []byte(`{"match_id":"m1"}`), nil
}

func TestPublishEncodesPayloadOncePerEvent(t *testing.T) {
	hub := newTestHub(t)
	userConn := dialRoom(t, hub, "user_alice")
	matchConn := dialRoom(t, hub, "match_m1")

	var calls int32
	hub.Publish("MATCH_EDITED", countingPayload{calls: &calls}, "user_alice", "match_m1", "user_nobody")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	for room, conn := range map[string]*websocket.Conn{"user_alice": userConn, "match_m1": matchConn} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
			RoomID  string            `json:"room_id"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "MATCH_EDITED", msg.Type)
		assert.Equal(t, "m1", msg.Payload["match_id"])
		assert.Equal(t, room, msg.RoomID)
	}
}
