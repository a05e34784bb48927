package entity

import "time"

const (
	ChatTypeDirect       = "direct"
	ChatTypeTutorSession = "tutor_session"
)

type Chat struct {
	ID           string                 `json:"id" firestore:"id" bson:"_id"`
	Participants []string               `json:"participants" firestore:"participants" bson:"participants"`
	Type         string                 `json:"type" firestore:"type" bson:"type"` // "direct", "tutor_session"
	LastMessage  *LastMessage           `json:"lastMessage,omitempty" firestore:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" firestore:"metadata,omitempty" bson:"metadata,omitempty"` // e.g. bookingId
	CreatedAt    time.Time              `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// LastMessage is the denormalized summary of the most recently accepted message.
type LastMessage struct {
	Text      string    `json:"text" firestore:"text" bson:"text"`
	SenderID  string    `json:"senderId" firestore:"senderId" bson:"senderId"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp" bson:"timestamp"`
	Type      string    `json:"type" firestore:"type" bson:"type"`
}

func (c *Chat) IsParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (c *Chat) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// Accept records msg as the chat's latest message. updatedAt never moves backwards.
func (c *Chat) Accept(msg *Message) {
	c.LastMessage = msg.Summary()
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}
}
