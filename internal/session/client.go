package session

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one WebSocket session: a client_id bound to this daemon's
// local peer_id, an inbound reader and an outbound queue.
type Client struct {
	id     uuid.UUID
	peerID uuid.UUID
	conn   *websocket.Conn
	send   chan models.ServerMessage
	hub    *Hub
}

// ServeWS upgrades an HTTP request to a WebSocket session and wires it
// into the hub. It returns right away, either when the upgrade fails or
// once the pumps have been started in their own goroutines.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session: upgrade failed: %v", err)
		return
	}

	c := &Client{
		id:     uuid.New(),
		peerID: hub.local.ID,
		conn:   conn,
		send:   make(chan models.ServerMessage, outboundQueueSize),
		hub:    hub,
	}

	hub.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("session: client %s closed unexpectedly: %v", c.id, err)
			}
			return
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			select {
			case c.send <- models.NewError("malformed message"):
			default:
			}
			continue
		}

		c.hub.dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
