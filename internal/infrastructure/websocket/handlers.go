package websocket

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"tutorlink/internal/domain/entity"
	"tutorlink/internal/infrastructure/ratelimit"
	"tutorlink/pkg/errors"
)

var errNotAuthenticated = errors.Unauthorized("Not authenticated", nil)

// decode unmarshals and validates an inbound payload.
func (g *Gateway) decode(msg WSMessage, v interface{}) error {
	if err := msg.DecodeData(v); err != nil {
		return errors.BadRequest("Invalid "+msg.Type+" payload", err)
	}
	if err := g.validate.Struct(v); err != nil {
		return errors.BadRequest("Invalid "+msg.Type+" payload", err)
	}
	return nil
}

// participantChat loads chatID and checks that userID may act in it.
func (g *Gateway) participantChat(ctx context.Context, chatID, userID string) (*entity.Chat, error) {
	chat, err := g.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant in this chat", nil)
	}
	return chat, nil
}

func (g *Gateway) sendAuthError(client *Client, message string, err error) {
	g.log.Warn("Join rejected for client %s: %s (%v)", client.ID, message, err)
	g.sendToClient(client, EventAuthError, AuthErrorData{Message: message})
}

func (g *Gateway) handleJoin(ctx context.Context, client *Client, msg WSMessage) {
	if client.authenticated() {
		g.sendError(client, msg.Type, errors.Conflict("Connection is already authenticated"))
		return
	}

	var data JoinData
	if err := g.decode(msg, &data); err != nil {
		g.sendAuthError(client, "userId and token are required", err)
		return
	}

	uid, err := g.verifier.VerifyToken(ctx, data.Token)
	if err != nil {
		g.sendAuthError(client, "Invalid or expired token", err)
		return
	}
	if uid != data.UserID {
		g.sendAuthError(client, "Token does not match user", nil)
		return
	}

	if !client.setAuthenticated(uid) {
		return
	}
	if displaced := g.registry.Register(uid, client); displaced != nil {
		g.log.Debug("User %s re-registered, displacing client %s", uid, displaced.ID)
	}

	chats, err := g.chats.ListByParticipant(ctx, uid)
	if err != nil {
		// The user can still join rooms one by one with join_chat.
		g.log.Error("Failed to list chats for user %s: %v", uid, err)
	}
	for _, chat := range chats {
		g.subscribe(chat.ID, client)
	}

	g.sendToClient(client, EventJoined, JoinedData{Success: true, UserID: uid})

	status := UserStatusData{UserID: uid, IsOnline: true}
	for _, chat := range chats {
		g.broadcast(chat.ID, EventUserStatusChanged, status, client)
	}

	g.log.Info("User %s authenticated on client %s (%d chats)", uid, client.ID, len(chats))
}

func (g *Gateway) handleJoinChat(ctx context.Context, client *Client, msg WSMessage) {
	if !client.authenticated() {
		g.sendError(client, msg.Type, errNotAuthenticated)
		return
	}

	var data ChatRefData
	if err := g.decode(msg, &data); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	chat, err := g.participantChat(ctx, data.ChatID, client.UserID())
	if err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	g.subscribe(chat.ID, client)
	g.sendToClient(client, EventChatJoined, ChatJoinedData{
		ChatID:      chat.ID,
		OnlineUsers: g.registry.OnlineSubset(chat.Participants),
	})
}

func (g *Gateway) handleLeaveChat(client *Client, msg WSMessage) {
	var data ChatRefData
	if err := g.decode(msg, &data); err != nil {
		return
	}
	g.unsubscribe(data.ChatID, client)
}

func (g *Gateway) handleSendMessage(ctx context.Context, client *Client, msg WSMessage) {
	if !client.authenticated() {
		g.sendError(client, msg.Type, errNotAuthenticated)
		return
	}
	userID := client.UserID()

	var data SendMessageData
	if err := g.decode(msg, &data); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}
	if strings.TrimSpace(data.Message) == "" {
		g.sendError(client, msg.Type, errors.BadRequest("Message cannot be empty", nil))
		return
	}

	if allowed, wait := g.limiter.Allow(userID, ratelimit.ActionSendMessage); !allowed {
		g.sendError(client, msg.Type, errors.TooManyRequests("Sending messages too fast", wait))
		return
	}

	if _, err := g.participantChat(ctx, data.ChatID, userID); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	r := g.acquire(data.ChatID)
	defer g.release(r)

	r.seq.Lock()
	defer r.seq.Unlock()

	message := entity.NewMessage(uuid.New().String(), data.ChatID, userID, data.Message, data.Type, r.nextStamp(g.now()))
	if err := g.messages.Append(ctx, message); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	payload := NewMessageData{Message: message, TempID: data.TempID}
	g.broadcast(data.ChatID, EventNewMessage, payload, nil)
	if !client.inRoom(data.ChatID) {
		// The sender always gets its echo so it can reconcile.
		g.sendToClient(client, EventNewMessage, payload)
	}

	g.log.Debug("Message %s accepted from %s in chat %s", message.ID, userID, data.ChatID)
}

// handleTyping drops anything it cannot act on without telling the client.
func (g *Gateway) handleTyping(client *Client, msg WSMessage, isTyping bool) {
	if !client.authenticated() {
		return
	}

	var data ChatRefData
	if err := g.decode(msg, &data); err != nil {
		return
	}
	if !client.inRoom(data.ChatID) {
		return
	}

	userID := client.UserID()
	if allowed, _ := g.limiter.Allow(userID, ratelimit.ActionTyping); !allowed {
		return
	}

	g.broadcast(data.ChatID, EventUserTyping, UserTypingData{
		ChatID:   data.ChatID,
		UserID:   userID,
		IsTyping: isTyping,
	}, client)
}

func (g *Gateway) handleMarkMessagesRead(ctx context.Context, client *Client, msg WSMessage) {
	if !client.authenticated() {
		g.sendError(client, msg.Type, errNotAuthenticated)
		return
	}
	userID := client.UserID()

	var data MarkReadData
	if err := g.decode(msg, &data); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	if _, err := g.participantChat(ctx, data.ChatID, userID); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	marked := make([]string, 0, len(data.MessageIDs))
	seen := make(map[string]struct{}, len(data.MessageIDs))
	for _, id := range data.MessageIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := g.messages.AddReader(ctx, data.ChatID, id, userID); err != nil {
			g.log.Warn("Failed to mark message %s read for %s: %v", id, userID, err)
			continue
		}
		marked = append(marked, id)
	}

	if len(marked) == 0 {
		return
	}

	g.broadcast(data.ChatID, EventMessagesRead, MessagesReadData{
		ChatID:     data.ChatID,
		UserID:     userID,
		MessageIDs: marked,
	}, client)
}

func (g *Gateway) handleEditMessage(ctx context.Context, client *Client, msg WSMessage) {
	if !client.authenticated() {
		g.sendError(client, msg.Type, errNotAuthenticated)
		return
	}
	userID := client.UserID()

	var data EditMessageData
	if err := g.decode(msg, &data); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}
	if strings.TrimSpace(data.NewMessage) == "" {
		g.sendError(client, msg.Type, errors.BadRequest("Message cannot be empty", nil))
		return
	}

	edited, err := g.messages.Edit(ctx, data.ChatID, data.MessageID, userID, data.NewMessage, g.now().UTC())
	if err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	g.broadcast(data.ChatID, EventMessageEdited, MessageEditedData{
		ChatID:     edited.ChatID,
		MessageID:  edited.ID,
		NewMessage: edited.Message,
		EditedAt:   *edited.EditedAt,
		UserID:     userID,
	}, nil)
}

func (g *Gateway) handleDeleteMessage(ctx context.Context, client *Client, msg WSMessage) {
	if !client.authenticated() {
		g.sendError(client, msg.Type, errNotAuthenticated)
		return
	}
	userID := client.UserID()

	var data DeleteMessageData
	if err := g.decode(msg, &data); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	if _, err := g.participantChat(ctx, data.ChatID, userID); err != nil {
		g.sendError(client, msg.Type, err)
		return
	}

	// The record itself is removed over HTTP before this event is sent,
	// so a message that still exists has not been deleted by its sender.
	if _, err := g.messages.GetByID(ctx, data.MessageID); err == nil {
		g.sendError(client, msg.Type, errors.Conflict("Message has not been deleted"))
		return
	} else if !errors.Is(err, errors.CodeNotFound) {
		g.sendError(client, msg.Type, err)
		return
	}

	g.broadcast(data.ChatID, EventMessageDeleted, MessageDeletedData{
		MessageID: data.MessageID,
		ChatID:    data.ChatID,
		UserID:    userID,
		Timestamp: g.now().UTC(),
	}, nil)
}
