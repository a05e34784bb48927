package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateDisconnected
)

func (s connState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Client is one websocket connection and its per-connection protocol state.
// Inbound events are handled one at a time on the read pump goroutine.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mutex  sync.RWMutex
	state  connState
	userID string
	rooms  map[string]struct{}
}

func NewClient(conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		ID:    uuid.New().String(),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

func (c *Client) UserID() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.userID
}

func (c *Client) authenticated() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.state == stateAuthenticated
}

func (c *Client) setAuthenticated(userID string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.state != stateUnauthenticated {
		return false
	}
	c.state = stateAuthenticated
	c.userID = userID
	return true
}

// markDisconnected moves the client to its terminal state and returns the rooms it was in.
func (c *Client) markDisconnected() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.state = stateDisconnected
	rooms := make([]string, 0, len(c.rooms))
	for chatID := range c.rooms {
		rooms = append(rooms, chatID)
	}
	c.rooms = make(map[string]struct{})
	return rooms
}

func (c *Client) addRoom(chatID string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.state == stateDisconnected {
		return false
	}
	c.rooms[chatID] = struct{}{}
	return true
}

func (c *Client) removeRoom(chatID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.rooms, chatID)
}

func (c *Client) inRoom(chatID string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.rooms[chatID]
	return ok
}

// enqueue hands message to the write pump. A full queue marks the client as
// slow and closes it; the read pump then runs the normal disconnect.
func (c *Client) enqueue(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		c.Close()
		return false
	}
}

// Close stops the write pump and closes the socket. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads messages from the WebSocket connection and dispatches them to the gateway.
func (c *Client) ReadPump(g *Gateway) {
	defer func() {
		g.disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.log.Warn("Unexpected close for client %s (user %s): %v", c.ID, c.UserID(), err)
			}
			return
		}

		g.Dispatch(c, message)
	}
}

// WritePump drains the send queue to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
