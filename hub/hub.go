package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
)

type Message struct {
	Event string      `json:"event"`
	Title string      `json:"title"`
	Body  string      `json:"message"`
	Data  interface{} `json:"data"`
}

type client struct {
	userID uint
	role   string
	// gorilla connections support a single concurrent writer
	writeMu sync.Mutex
}

// Hub keeps the live websocket connections of signed-in users.
type Hub struct {
	mutex   sync.RWMutex
	clients map[*websocket.Conn]*client
}

func New() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// Register adds a connection for the user
func (h *Hub) Register(conn *websocket.Conn, userID uint, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = &client{userID: userID, role: role}
	utils.InfoLogger.Printf("ws client registered user=%d role=%s (%d online)", userID, role, len(h.clients))
}

// Unregister removes the connection and closes it
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.clients, conn)
	h.mutex.Unlock()
	conn.Close()
}

// Online returns the number of open connections for a user.
func (h *Hub) Online(userID uint) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.userID == userID {
			n++
		}
	}
	return n
}

// SendToUser writes msg to every connection of userID and returns how many got it.
func (h *Hub) SendToUser(ctx context.Context, userID uint, msg Message) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	h.mutex.RLock()
	targets := make(map[*websocket.Conn]*client)
	for conn, c := range h.clients {
		if c.userID == userID {
			targets[conn] = c
		}
	}
	h.mutex.RUnlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}

	sent := 0
	for conn, c := range targets {
		c.writeMu.Lock()
		_ = conn.SetWriteDeadline(deadline)
		err := conn.WriteMessage(websocket.TextMessage, data)
		c.writeMu.Unlock()
		if err != nil {
			utils.ErrorLogger.Printf("Error sending message to user %d: %v", userID, err)
			h.Unregister(conn)
			continue
		}
		sent++
	}
	return sent, nil
}

// Sink pushes notification events to the user's open sockets. Users without
// a connection simply read them later from the notification inbox.
type Sink struct {
	hub *Hub
}

func NewSink(h *Hub) *Sink {
	return &Sink{hub: h}
}

func (s *Sink) Name() string { return "websocket" }

func (s *Sink) Deliver(ctx context.Context, userID uint, ev services.Event) error {
	_, err := s.hub.SendToUser(ctx, userID, Message{
		Event: string(ev.Type()),
		Title: ev.Title(),
		Body:  ev.Message(),
		Data:  ev,
	})
	return err
}
