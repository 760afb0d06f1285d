package main

import (
	"net/http"
	"sync"
	"time"

	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// ServerEvent represents a server-sent event
type ServerEvent struct {
	Type string `json:"type"` // "notification_count"
	Data any    `json:"data,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan ServerEvent
}

// Hub tracks the open notification sockets of each user.
type Hub struct {
	clientsByUser map[int]map[*Client]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[int]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
	WebsocketConnections.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		if _, ok := peers[c]; ok {
			delete(peers, c)
			WebsocketConnections.Dec()
		}
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

func (h *Hub) connected(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID]) > 0
}

func (h *Hub) sendToUser(userID int, evt ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clientsByUser[userID] {
		select {
		case c.send <- evt:
		default:
			// Drop event if the client's buffer is full
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     originAllowed,
}

var notificationHub = newHub()

// /ws/notifications
func wsNotificationsHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		count, err := b.NotificationCount(r.Context(), userID)
		if err != nil {
			writeStoreError(w, r, err, "notification count")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			requestLogger(r).Warn("websocket upgrade failed", zap.Int("user_id", userID), zap.Error(err))
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan ServerEvent, 16),
		}
		notificationHub.register(client)

		client.send <- ServerEvent{Type: "notification_count", Data: count}

		go clientWriter(client)
		clientReader(client)
	}
}

// clientReader only services control frames; the channel is push-only.
func clientReader(c *Client) {
	defer func() {
		notificationHub.unregister(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func clientWriter(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GET /notifications
func notificationsHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		me := currentUserID(r)

		incoming, err := b.PendingIncoming(ctx, me)
		if err != nil {
			writeStoreError(w, r, err, "pending requests")
			return
		}
		outcomes, err := b.Outcomes(ctx, me)
		if err != nil {
			writeStoreError(w, r, err, "request outcomes")
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Incoming []store.IncomingRequest `json:"incoming"`
			Outcomes []store.Outcome         `json:"outcomes"`
		}{incoming, outcomes})
	}
}

// GET /notifications/count
func notificationCountHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := b.NotificationCount(r.Context(), currentUserID(r))
		if err != nil {
			writeStoreError(w, r, err, "notification count")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}
