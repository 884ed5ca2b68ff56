package api

import (
	"net/http"
	"sync"

	"tornado_miniapp/internal/model"
	"tornado_miniapp/pkg/auth"
	"tornado_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotificationHub fans notifications out to every open socket a user holds.
// Delivery is best effort; a dead connection is dropped on the first failed
// write.
type NotificationHub struct {
	mu    sync.Mutex
	conns map[int64][]*websocket.Conn
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		conns: make(map[int64][]*websocket.Conn),
	}
}

func (h *NotificationHub) Notify(userID int64, msg model.Notification) {
	log := logger.Logger()

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal notification", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	alive := h.conns[userID][:0]
	for _, conn := range h.conns[userID] {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			continue
		}
		alive = append(alive, conn)
	}
	if len(alive) == 0 {
		delete(h.conns, userID)
		return
	}
	h.conns[userID] = alive
}

func (h *NotificationHub) add(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID] = append(h.conns[userID], conn)
}

func (h *NotificationHub) remove(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[userID]
	for i, c := range conns {
		if c == conn {
			h.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

type notificationRoutes struct {
	hub *NotificationHub
}

func NewNotificationRoutes(handler *gin.RouterGroup, hub *NotificationHub, a *auth.TelegramAuth) {
	r := &notificationRoutes{hub: hub}
	h := handler.Group("/notifications")
	h.Use(a.TelegramAuthMiddleware())
	h.GET("/ws", r.handleWebSocket)
}

func (r *notificationRoutes) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	r.hub.add(user.ID, conn)

	// Reads only serve to notice the peer going away.
	go func() {
		defer func() {
			r.hub.remove(user.ID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
