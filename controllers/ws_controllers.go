package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/campus-food/hub"
)

type WSController struct {
	Hub      *hub.Hub
	upgrader websocket.Upgrader
}

func NewWSController(h *hub.Hub, allowedOrigin string) *WSController {
	return &WSController{
		Hub: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// Connect upgrades to a websocket that receives the caller's notifications.
func (wc *WSController) Connect(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	wc.Hub.Register(ws, userID, role)
	defer wc.Hub.Unregister(ws)

	// clients only send pings; reading keeps the close handshake working
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(90 * time.Second))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(90 * time.Second))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(90 * time.Second))
	}
}
