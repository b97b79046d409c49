package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

type Client struct {
	UserID int64
	Admin  bool
	Conn   *websocket.Conn
	Send   chan []byte

	Hub  *Hub
	Done chan struct{}
}

func NewClient(userID int64, admin bool, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID: userID,
		Admin:  admin,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    hub,
		Done:   make(chan struct{}),
	}
}

// Run registers the client and blocks until the connection closes.
func (c *Client) Run() {
	c.Hub.Register(c)
	go c.writePump()

	// handshake so clients know the subscription is live
	c.queue(Message{Type: MsgReady, At: time.Now().UTC()})

	c.readPump()
}

func (c *Client) queue(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if _, live := c.Hub.users[c.UserID][c]; !live {
		return
	}
	select {
	case c.Send <- b:
	default:
	}
}

//read
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		_ = c.Conn.Close()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(1024)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		var in InboundMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			c.queue(Message{Type: MsgError, Payload: ErrorPayload{Message: "invalid message"}, At: time.Now().UTC()})
			continue
		}
		if in.Type == MsgPing {
			c.queue(Message{Type: MsgPong, At: time.Now().UTC()})
		}
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
