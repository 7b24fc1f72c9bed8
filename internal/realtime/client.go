package realtime

import (
	"sync"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// textFrame is the websocket text opcode.
const textFrame = 1

// Socket is the transport under a client. The fiber websocket connection
// satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Identity is the authenticated user behind a connection, if any.
type Identity struct {
	UserID uuid.UUID
	Name   string
}

// Client is the hub's view of one socket: a bounded outbound queue drained
// by a single writer goroutine.
type Client struct {
	id       string
	identity *Identity
	socket   Socket
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	drawing  *rate.Limiter
	timeout  time.Duration
}

func newClient(socket Socket, identity *Identity, opts Options) *Client {
	limit := rate.Limit(opts.DrawingRate)
	if opts.DrawingRate <= 0 {
		limit = rate.Inf
	}
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		socket:   socket,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		drawing:  rate.NewLimiter(limit, opts.DrawingBurst),
		timeout:  opts.WriteTimeout,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Identity() *Identity { return c.identity }

// Send never blocks; a slow reader loses frames instead of stalling the
// broadcaster.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		logger.Warn("realtime_send_dropped", map[string]interface{}{
			"conn_id": c.id,
			"reason":  "send buffer full",
		})
		return false
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if c.timeout > 0 {
				_ = c.socket.SetWriteDeadline(time.Now().Add(c.timeout))
			}
			if err := c.socket.WriteMessage(textFrame, frame); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) allowDrawing() bool {
	return c.drawing.Allow()
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.socket.Close()
	})
}
