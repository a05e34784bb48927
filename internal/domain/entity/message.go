package entity

import (
	"strings"
	"time"
)

const (
	MessageTypeText = "text"

	// TempIDPrefix marks ids generated client-side before the server assigns one.
	TempIDPrefix = "temp-"
)

type Message struct {
	ID        string     `json:"id" firestore:"id" bson:"_id"`
	ChatID    string     `json:"chatId" firestore:"chatId" bson:"chatId"`
	SenderID  string     `json:"senderId" firestore:"senderId" bson:"senderId"`
	Message   string     `json:"message" firestore:"message" bson:"message"`
	Type      string     `json:"type" firestore:"type" bson:"type"` // "text", extensible
	Timestamp time.Time  `json:"timestamp" firestore:"timestamp" bson:"timestamp"`
	ReadBy    []string   `json:"readBy" firestore:"readBy" bson:"readBy"`
	Edited    bool       `json:"edited" firestore:"edited" bson:"edited"`
	EditedAt  *time.Time `json:"editedAt,omitempty" firestore:"editedAt,omitempty" bson:"editedAt,omitempty"`
}

// NewMessage builds a message accepted at ts. The sender is implicitly a reader.
func NewMessage(id, chatID, senderID, text, msgType string, ts time.Time) *Message {
	if msgType == "" {
		msgType = MessageTypeText
	}
	return &Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Message:   text,
		Type:      msgType,
		Timestamp: ts,
		ReadBy:    []string{senderID},
	}
}

func (m *Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r == userID {
			return true
		}
	}
	return false
}

// AddReader unions userID into ReadBy and reports whether the set grew.
func (m *Message) AddReader(userID string) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// ApplyEdit replaces the content in place; the previous text is not kept.
func (m *Message) ApplyEdit(text string, at time.Time) {
	m.Message = text
	m.Edited = true
	m.EditedAt = &at
}

// Before orders messages within a chat by (timestamp, id).
func (m *Message) Before(other *Message) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return m.ID < other.ID
}

func (m *Message) Summary() *LastMessage {
	return &LastMessage{
		Text:      m.Message,
		SenderID:  m.SenderID,
		Timestamp: m.Timestamp,
		Type:      m.Type,
	}
}

// Clone returns a deep copy so callers can hand messages across goroutines.
func (m *Message) Clone() *Message {
	c := *m
	c.ReadBy = append([]string(nil), m.ReadBy...)
	if m.EditedAt != nil {
		at := *m.EditedAt
		c.EditedAt = &at
	}
	return &c
}
