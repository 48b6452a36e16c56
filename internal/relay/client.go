package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages

	// sendQueueSize bounds the outbound queue before a client counts as stuck.
	sendQueueSize = 256
)

// messageTypeMalformed stands in for a frame that did not decode.
const messageTypeMalformed = "malformed"

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	// ID is the participant ID assigned on connect.
	ID string

	// DisplayName is peer supplied and untrusted.
	DisplayName string

	// ClientType is "cli" or "web".
	ClientType string

	// RoomID is the room the client is in. Owned by the hub goroutine.
	RoomID string

	hub  *Hub
	conn *websocket.Conn

	// Send is a buffered channel for all outbound messages.
	// The hub writes to it, WritePump drains it to the websocket.
	Send chan *signaling.Message
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, id, displayName string) *Client {
	return &Client{
		ID:          id,
		DisplayName: sanitizeDisplayName(displayName),
		ClientType:  signaling.ClientTypeWeb,
		hub:         hub,
		conn:        conn,
		Send:        make(chan *signaling.Message, sendQueueSize),
	}
}

func (c *Client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "participant", c.ID, "error", err)
			}
			return
		}

		// A malformed message is dropped; the connection stays up.
		var msg signaling.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("malformed signaling message", "participant", c.ID, "error", err)
			c.hub.dispatch(c, &signaling.Message{Type: messageTypeMalformed})
			continue
		}

		c.hub.dispatch(c, &msg)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				slog.Warn("websocket write failed", "participant", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
