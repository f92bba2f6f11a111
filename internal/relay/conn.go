// ABOUTME: Per-connection state and the outbound write pump
// ABOUTME: Buffered send channel drained by one writer goroutine per socket
package relay

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/CineSync/cinesync-go/internal/protocol"
	"github.com/gorilla/websocket"
)

// Conn represents one connected client channel. The relay identifies
// members and hosts by Conn ID.
type Conn struct {
	ID   string
	Name string

	sock     *websocket.Conn
	sendChan chan protocol.Message

	mu     sync.Mutex
	closed bool
}

func newConn(id, name string, sock *websocket.Conn) *Conn {
	return &Conn{
		ID:       id,
		Name:     name,
		sock:     sock,
		sendChan: make(chan protocol.Message, 64),
	}
}

// send queues a message for delivery. Broadcasts are fire-and-forget: a
// full buffer or a closed connection drops the message with an error
// rather than blocking or panicking; a broadcast may hold a member
// snapshot taken before the connection was torn down.
func (c *Conn) send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s closed", c.ID)
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full for %s", c.ID)
	}
}

// closeSend stops the write pump. Idempotent.
func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendChan)
}

// writeLoop drains the send channel onto the socket and keeps the
// connection alive with periodic pings. Runs until the send channel is
// closed or a write fails.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.sock.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.sock.WriteJSON(msg); err != nil {
				log.Printf("Error writing to %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			if err := c.sock.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
