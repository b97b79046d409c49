package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"cashback_platform/internal/logger"
)

// Hub tracks live connections per user and pushes notifications to them.
// It implements service.Notifier.
type Hub struct {
	mu     sync.RWMutex
	users  map[int64]map[*Client]struct{}
	admins map[*Client]struct{}
	log    *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		users:  make(map[int64]map[*Client]struct{}),
		admins: make(map[*Client]struct{}),
		log:    logger.With("component", "ws_hub"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.users[c.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.users[c.UserID] = conns
	}
	conns[c] = struct{}{}
	if c.Admin {
		h.admins[c] = struct{}{}
	}
	h.log.Debug("client registered", "user_id", c.UserID, "admin", c.Admin, "conns", len(conns))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove expects h.mu held.
func (h *Hub) remove(c *Client) {
	conns, ok := h.users[c.UserID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.users, c.UserID)
	}
	delete(h.admins, c)
	close(c.Send)
}

// Online reports whether the user has at least one open connection.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

func (h *Hub) Notify(ctx context.Context, userID int64, kind string, payload any) error {
	msg, err := encodeNotification(kind, payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[userID] {
		h.deliver(c, msg)
	}
	return nil
}

func (h *Hub) NotifyAdmins(ctx context.Context, kind string, payload any) error {
	msg, err := encodeNotification(kind, payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.admins {
		h.deliver(c, msg)
	}
	return nil
}

// deliver drops a client whose send buffer is full. Expects h.mu held.
func (h *Hub) deliver(c *Client, msg []byte) {
	select {
	case c.Send <- msg:
	default:
		h.log.Warn("dropping slow client", "user_id", c.UserID)
		h.remove(c)
	}
}

func encodeNotification(kind string, payload any) ([]byte, error) {
	return json.Marshal(Message{
		Type:    MsgNotification,
		Kind:    kind,
		Payload: payload,
		At:      time.Now().UTC(),
	})
}
