package websocket

import (
	"encoding/json"
	"time"

	"tutorlink/internal/domain/entity"
)

// Client -> server events
const (
	EventJoin             = "join"
	EventJoinChat         = "join_chat"
	EventLeaveChat        = "leave_chat"
	EventSendMessage      = "send_message"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventMarkMessagesRead = "mark_messages_read"
	EventEditMessage      = "edit_message"
	EventDeleteMessage    = "delete_message"
	EventPing             = "ping"
)

// Server -> client events
const (
	EventJoined            = "joined"
	EventAuthError         = "auth_error"
	EventChatJoined        = "chat_joined"
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventMessagesRead      = "messages_read"
	EventMessageEdited     = "message_edited"
	EventMessageDeleted    = "message_deleted"
	EventUserStatusChanged = "user_status_changed"
	EventError             = "error"
	EventPong              = "pong"
)

// WSMessage is the envelope used in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Encode wraps data in an envelope stamped with the current time.
func Encode(eventType string, data interface{}) ([]byte, error) {
	msg := WSMessage{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// DecodeData unmarshals the envelope payload into v.
func (m WSMessage) DecodeData(v interface{}) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(m.Data, v)
}

type JoinData struct {
	UserID string `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

// ChatRefData is the payload of join_chat, leave_chat and the typing events.
type ChatRefData struct {
	ChatID string `json:"chatId" validate:"required"`
}

type SendMessageData struct {
	ChatID  string `json:"chatId" validate:"required"`
	Message string `json:"message" validate:"required,max=4000"`
	Type    string `json:"type,omitempty" validate:"omitempty,max=32"`
	TempID  string `json:"tempId,omitempty"`
}

type MarkReadData struct {
	ChatID     string   `json:"chatId" validate:"required"`
	MessageIDs []string `json:"messageIds" validate:"required,min=1,max=200,dive,required"`
}

type EditMessageData struct {
	MessageID  string `json:"messageId" validate:"required"`
	NewMessage string `json:"newMessage" validate:"required,max=4000"`
	ChatID     string `json:"chatId" validate:"required"`
}

type DeleteMessageData struct {
	MessageID string `json:"messageId" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
}

type JoinedData struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type AuthErrorData struct {
	Message string `json:"message"`
}

type ChatJoinedData struct {
	ChatID      string   `json:"chatId"`
	OnlineUsers []string `json:"onlineUsers"`
}

// NewMessageData is the accepted message plus the sender's provisional id, if one was sent.
type NewMessageData struct {
	*entity.Message
	TempID string `json:"tempId,omitempty"`
}

type UserTypingData struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessagesReadData struct {
	ChatID     string   `json:"chatId"`
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds"`
}

type MessageEditedData struct {
	ChatID     string    `json:"chatId"`
	MessageID  string    `json:"messageId"`
	NewMessage string    `json:"newMessage"`
	EditedAt   time.Time `json:"editedAt"`
	UserID     string    `json:"userId"`
}

type MessageDeletedData struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserStatusData struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
