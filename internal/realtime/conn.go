package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pulsechat/pulse/internal/models"
)

const (
	// writeWait bounds a single WebSocket write; a peer that cannot
	// accept a frame within it is treated as gone.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// loop gives up on it. Pings go out at pingPeriod, which must be
	// shorter than pongWait so a healthy peer always answers in time.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 4096

	// sendQueueSize bounds the per-connection outbound queue. A full
	// queue marks the connection as stalled and it gets dropped, so a
	// slow client costs at most this much buffered memory.
	sendQueueSize = 256
)

// Conn is one live WebSocket connection bound to an authenticated user.
// The user binding is set at handshake time and never changes; a user with
// several devices or tabs holds several Conns.
type Conn struct {
	id   uuid.UUID
	user models.User

	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, user models.User) *Conn {
	return &Conn{
		id:   uuid.New(),
		user: user,
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() uuid.UUID     { return c.id }
func (c *Conn) UserID() uuid.UUID { return c.user.ID }
func (c *Conn) User() models.User { return c.user }

// enqueue places a frame on the outbound queue without blocking. It
// reports false when the connection is closing or the queue is full;
// the caller decides whether that means dropping the connection.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// closing reports whether teardown has begun for this connection.
func (c *Conn) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// shutdown begins teardown. Safe to call any number of times from any
// goroutine; only the first call has an effect.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// writePump drains the outbound queue onto the socket and keeps the
// connection alive with periodic pings. It exits when a write fails or
// teardown begins; the read side notices the closed socket and runs the
// full disconnect path.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}
