package services

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// wsClient is one open notification stream
type wsClient struct {
	id   string
	keys []string
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *NotificationHub
}

// NotificationHub pushes newly created notifications to connected inboxes
type NotificationHub struct {
	clients  map[string]map[*wsClient]bool
	mutex    sync.RWMutex
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewNotificationHub creates a hub. An empty allowedOrigins list accepts any origin.
func NewNotificationHub(allowedOrigins []string, log *logrus.Logger) *NotificationHub {
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &NotificationHub{
		clients: make(map[string]map[*wsClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		log: log,
	}
}

// inboxKey groups connections that share an inbox. Untargeted admin
// notifications share one key; those aimed at one admin use that admin's id.
func inboxKey(t models.RecipientType, userID, guestEmail string) string {
	switch t {
	case models.RecipientUser:
		return "user:" + userID
	case models.RecipientGuest:
		return "guest:" + guestEmail
	}
	if userID != "" {
		return "admin:" + userID
	}
	return "admin"
}

// subscriptionKeys lists every key a connection for r listens on.
func subscriptionKeys(r models.Recipient) []string {
	if r.Type == models.RecipientAdmin && r.UserID != "" {
		return []string{"admin", inboxKey(r.Type, r.UserID, "")}
	}
	return []string{inboxKey(r.Type, r.UserID, r.GuestEmail)}
}

// Serve upgrades the request and streams notifications for r until the
// client disconnects.
func (h *NotificationHub) Serve(w http.ResponseWriter, r *http.Request, recipient models.Recipient) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		id:   uuid.NewString(),
		keys: subscriptionKeys(recipient),
		conn: conn,
		send: make(chan WebSocketMessage, 64),
		hub:  h,
	}
	h.register(client)

	go client.writePump()
	client.readPump()
	return nil
}

// Publish fans n out to every connection of its inbox. Slow clients are dropped.
func (h *NotificationHub) Publish(n *models.Notification) {
	userID := ""
	if n.UserID != nil {
		userID = n.UserID.Hex()
	}
	key := inboxKey(n.RecipientType, userID, n.GuestEmail)
	msg := WebSocketMessage{Type: "notification", Data: n}

	var slow []*wsClient
	h.mutex.RLock()
	for c := range h.clients[key] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mutex.RUnlock()

	for _, c := range slow {
		h.log.WithField("client", c.id).Warn("websocket client too slow, disconnecting")
		h.unregister(c)
	}
}

// ConnectionCount returns the number of open streams.
func (h *NotificationHub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	seen := map[*wsClient]bool{}
	for _, set := range h.clients {
		for c := range set {
			seen[c] = true
		}
	}
	return len(seen)
}

func (h *NotificationHub) register(c *wsClient) {
	h.mutex.Lock()
	for _, key := range c.keys {
		if h.clients[key] == nil {
			h.clients[key] = make(map[*wsClient]bool)
		}
		h.clients[key][c] = true
	}
	h.mutex.Unlock()

	c.send <- WebSocketMessage{Type: "connected", Message: "Listening for notifications"}
}

func (h *NotificationHub) unregister(c *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.clients[c.keys[0]][c] {
		return
	}
	for _, key := range c.keys {
		delete(h.clients[key], c)
		if len(h.clients[key]) == 0 {
			delete(h.clients, key)
		}
	}
	close(c.send)
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var message WebSocketMessage
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("websocket read error")
			}
			return
		}
		if message.Type == "ping" {
			c.hub.mutex.RLock()
			if c.hub.clients[c.keys[0]][c] {
				select {
				case c.send <- WebSocketMessage{Type: "pong"}:
				default:
				}
			}
			c.hub.mutex.RUnlock()
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.log.WithError(err).Debug("websocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
