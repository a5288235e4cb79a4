package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// frameWriteTimeout bounds a single telemetry write
	frameWriteTimeout = 10 * time.Second

	// peerTimeout drops a viewer that stops answering pings
	peerTimeout = 60 * time.Second

	// keepalivePeriod must be shorter than peerTimeout
	keepalivePeriod = (peerTimeout * 9) / 10

	// maxInbound caps inbound frames; viewers only send control frames
	maxInbound = 4 * 1024

	// sendBuffer is the number of events queued per viewer before it is dropped
	sendBuffer = 256
)

// Client is one telemetry viewer. Subscribe clients have no connection and
// are read straight from send.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers a websocket viewer with the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	hub.register <- client
	return client
}

// Run streams events to the viewer until it disconnects or the hub stops.
// It blocks, so call it from the websocket handler.
func (c *Client) Run() {
	go c.stream()
	c.watch()
}

// watch discards inbound frames and unregisters the viewer once the
// connection fails or pongs stop arriving.
func (c *Client) watch() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInbound)
	c.conn.SetReadDeadline(time.Now().Add(peerTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(peerTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// stream is the only writer on the connection. Events already queued behind
// the current one are flushed in the same pass so a lagging viewer catches
// up to the latest frame.
func (c *Client) stream() {
	keepalive := time.NewTicker(keepalivePeriod)
	defer func() {
		keepalive.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message.Data); err != nil {
				return
			}
			for pending := len(c.send); pending > 0; pending-- {
				message, ok = <-c.send
				if !ok {
					c.write(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.write(websocket.TextMessage, message.Data); err != nil {
					return
				}
			}

		case <-keepalive.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
	return c.conn.WriteMessage(kind, data)
}
