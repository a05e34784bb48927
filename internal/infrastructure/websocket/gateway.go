package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"tutorlink/internal/domain/repository"
	"tutorlink/internal/infrastructure/auth"
	"tutorlink/internal/infrastructure/ratelimit"
	"tutorlink/pkg/errors"
	"tutorlink/pkg/logger"
)

const storeTimeout = 10 * time.Second

// room is the set of clients subscribed to one chat. seq serializes accepted
// sends so every subscriber sees them in acceptance order.
type room struct {
	chatID    string
	members   map[*Client]struct{}
	refs      int
	seq       sync.Mutex
	lastStamp time.Time
}

// nextStamp returns a millisecond timestamp strictly after the previous one. Callers hold seq.
func (r *room) nextStamp(now time.Time) time.Time {
	ts := now.UTC().Truncate(time.Millisecond)
	if !ts.After(r.lastStamp) {
		ts = r.lastStamp.Add(time.Millisecond)
	}
	r.lastStamp = ts
	return ts
}

// Gateway runs the realtime protocol for every connection in the process.
type Gateway struct {
	registry *Registry
	verifier auth.TokenVerifier
	chats    repository.ChatRepository
	messages repository.MessageRepository
	limiter  *ratelimit.RateLimiter
	validate *validator.Validate
	log      *logger.Logger

	sendBuffer int
	now        func() time.Time

	mutex sync.Mutex
	rooms map[string]*room
}

type Options struct {
	SendBuffer int
	Limiter    *ratelimit.RateLimiter
}

func NewGateway(
	registry *Registry,
	verifier auth.TokenVerifier,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	opts Options,
) *Gateway {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewRateLimiter()
	}
	return &Gateway{
		registry:   registry,
		verifier:   verifier,
		chats:      chats,
		messages:   messages,
		limiter:    limiter,
		validate:   validator.New(),
		log:        logger.New("gateway"),
		sendBuffer: opts.SendBuffer,
		now:        time.Now,
		rooms:      make(map[string]*room),
	}
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Serve takes ownership of an upgraded connection and blocks until it closes.
func (g *Gateway) Serve(conn *websocket.Conn) {
	client := NewClient(conn, g.sendBuffer)
	g.log.Debug("Client %s connected from %s", client.ID, conn.RemoteAddr())

	go client.WritePump()
	client.ReadPump(g)
}

// Dispatch decodes one inbound envelope and runs the matching transition.
func (g *Gateway) Dispatch(client *Client, raw []byte) {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.sendError(client, "", errors.BadRequest("Invalid message format", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch msg.Type {
	case EventJoin:
		g.handleJoin(ctx, client, msg)
	case EventJoinChat:
		g.handleJoinChat(ctx, client, msg)
	case EventLeaveChat:
		g.handleLeaveChat(client, msg)
	case EventSendMessage:
		g.handleSendMessage(ctx, client, msg)
	case EventTypingStart:
		g.handleTyping(client, msg, true)
	case EventTypingStop:
		g.handleTyping(client, msg, false)
	case EventMarkMessagesRead:
		g.handleMarkMessagesRead(ctx, client, msg)
	case EventEditMessage:
		g.handleEditMessage(ctx, client, msg)
	case EventDeleteMessage:
		g.handleDeleteMessage(ctx, client, msg)
	case EventPing:
		g.sendToClient(client, EventPong, nil)
	default:
		g.log.Debug("Unknown event type '%s' from client %s", msg.Type, client.ID)
		g.sendError(client, msg.Type, errors.BadRequest("Unknown event type", nil))
	}
}

// disconnect is the terminal transition, run once when the read pump exits.
func (g *Gateway) disconnect(client *Client) {
	userID, _ := g.registry.Unregister(client)
	rooms := client.markDisconnected()

	g.mutex.Lock()
	for _, chatID := range rooms {
		g.leaveLocked(chatID, client)
	}
	g.mutex.Unlock()

	if userID == "" || g.registry.IsOnline(userID) {
		return
	}

	status := UserStatusData{UserID: userID, IsOnline: false}
	for _, chatID := range rooms {
		g.broadcast(chatID, EventUserStatusChanged, status, client)
	}
	g.log.Info("User %s disconnected", userID)
}

func (g *Gateway) subscribe(chatID string, client *Client) {
	if !client.addRoom(chatID) {
		return
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	r, ok := g.rooms[chatID]
	if !ok {
		r = &room{chatID: chatID, members: make(map[*Client]struct{})}
		g.rooms[chatID] = r
	}
	r.members[client] = struct{}{}
}

func (g *Gateway) unsubscribe(chatID string, client *Client) {
	client.removeRoom(chatID)

	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.leaveLocked(chatID, client)
}

func (g *Gateway) leaveLocked(chatID string, client *Client) {
	r, ok := g.rooms[chatID]
	if !ok {
		return
	}
	delete(r.members, client)
	g.pruneLocked(r)
}

func (g *Gateway) pruneLocked(r *room) {
	if len(r.members) == 0 && r.refs == 0 {
		delete(g.rooms, r.chatID)
	}
}

// acquire pins the room for chatID so it survives while a send is sequenced through it.
func (g *Gateway) acquire(chatID string) *room {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	r, ok := g.rooms[chatID]
	if !ok {
		r = &room{chatID: chatID, members: make(map[*Client]struct{})}
		g.rooms[chatID] = r
	}
	r.refs++
	return r
}

func (g *Gateway) release(r *room) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	r.refs--
	g.pruneLocked(r)
}

func (g *Gateway) members(chatID string) []*Client {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	r, ok := g.rooms[chatID]
	if !ok {
		return nil
	}
	members := make([]*Client, 0, len(r.members))
	for c := range r.members {
		members = append(members, c)
	}
	return members
}

// broadcast sends an event to every client in the room except the given one (nil excludes nobody).
func (g *Gateway) broadcast(chatID, eventType string, data interface{}, except *Client) int {
	message, err := Encode(eventType, data)
	if err != nil {
		g.log.Error("Failed to encode %s for chat %s: %v", eventType, chatID, err)
		return 0
	}

	sent := 0
	for _, c := range g.members(chatID) {
		if c == except {
			continue
		}
		if c.enqueue(message) {
			sent++
		}
	}
	return sent
}

func (g *Gateway) sendToClient(client *Client, eventType string, data interface{}) {
	message, err := Encode(eventType, data)
	if err != nil {
		g.log.Error("Failed to encode %s for client %s: %v", eventType, client.ID, err)
		return
	}
	client.enqueue(message)
}

func (g *Gateway) sendError(client *Client, event string, err error) {
	logger.LogEventError("gateway", event, client.UserID(), err)
	g.sendToClient(client, EventError, ErrorData{
		Code:    errors.CodeOf(err),
		Message: errors.MessageOf(err),
		Event:   event,
	})
}

// RoomSize reports how many clients are subscribed to chatID.
func (g *Gateway) RoomSize(chatID string) int {
	return len(g.members(chatID))
}
