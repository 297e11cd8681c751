package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"jyotish-chat/internal/domain/chat"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// ConnState is the lifecycle position of one connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// Client is a single websocket connection. Identity is bound once at
// authentication and never changes. Send is closed only by the Hub.
type Client struct {
	ID       string
	Identity chat.Identity
	Send     chan []byte

	conn    *websocket.Conn
	limiter *ClientRateLimiter

	mu           sync.RWMutex
	rooms        map[string]bool
	state        ConnState
	lastActivity time.Time
}

// NewClient wraps conn. A nil conn gives a detached client whose outbound
// frames are only visible on Send.
func NewClient(conn *websocket.Conn, identity chat.Identity) *Client {
	return &Client{
		ID:           uuid.NewString(),
		Identity:     identity,
		Send:         make(chan []byte, sendBuffer),
		conn:         conn,
		limiter:      NewClientRateLimiter(),
		rooms:        make(map[string]bool),
		state:        StateAuthenticated,
		lastActivity: time.Now(),
	}
}

func (c *Client) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// transition moves the client to next unless it is already closed. It reports
// whether the state changed.
func (c *Client) transition(next ConnState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed || c.state == next {
		return false
	}
	c.state = next
	return true
}

func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// SendMessage queues payload without blocking. A client too slow to drain its
// buffer loses the frame.
func (c *Client) SendMessage(payload []byte) bool {
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleFor() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastActivity)
}

// ReadPump reads frames until the connection fails and hands each one to
// dispatch in arrival order.
func (c *Client) ReadPump(ctx context.Context, dispatch func(ctx context.Context, c *Client, frame InboundFrame), log *WebSocketLogger) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("unexpected_close", c, err)
			}
			return
		}
		c.touch()

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		var frame InboundFrame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			log.Warn("malformed_frame", c, zap.Int("bytes", len(message)))
			continue
		}
		dispatch(ctx, c, frame)
	}
}

// WritePump drains Send onto the socket and keeps the peer alive with pings.
// It returns when Send is closed or a write fails.
func (c *Client) WritePump(log *WebSocketLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("write_failed", c, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if c.idleFor() > pongWait*2 {
				log.Info("idle_timeout", c)
				return
			}
		}
	}
}
