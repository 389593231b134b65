package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/services"
)

// serve registers every upgraded connection for the user id given in the query.
func serve(t *testing.T, h *Hub, userID uint) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Register(conn, userID, models.RoleCustomer)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSinkDeliversToUserSockets(t *testing.T) {
	h := New()
	srv := serve(t, h, 20)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return h.Online(20) == 1 }, time.Second, 5*time.Millisecond)

	err := NewSink(h).Deliver(context.Background(), 20, services.OrderUpdateEvent{
		OrderID: 3, Status: models.OrderStatusReady, ConcessionName: "Kape",
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event   string                 `json:"event"`
		Title   string                 `json:"title"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "order_update", msg.Event)
	assert.Equal(t, "Your order #3 from Kape is ready for pickup.", msg.Message)
	assert.Equal(t, "ready", msg.Data["status"])
}

func TestSendToOfflineUser(t *testing.T) {
	h := New()
	n, err := h.SendToUser(context.Background(), 99, Message{Event: "order_update"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnregister(t *testing.T) {
	h := New()
	srv := serve(t, h, 7)
	dial(t, srv)
	require.Eventually(t, func() bool { return h.Online(7) == 1 }, time.Second, 5*time.Millisecond)

	h.mutex.RLock()
	var conn *websocket.Conn
	for c := range h.clients {
		conn = c
	}
	h.mutex.RUnlock()

	h.Unregister(conn)
	assert.Zero(t, h.Online(7))
}
