package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMessageIncludesSenderAsReader(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := NewMessage("m1", "c1", "u1", "hi", "", ts)

	assert.Equal(t, MessageTypeText, msg.Type)
	assert.Equal(t, []string{"u1"}, msg.ReadBy)
	assert.False(t, msg.IsProvisional())
}

func TestAddReaderIsIdempotentUnion(t *testing.T) {
	msg := NewMessage("m1", "c1", "u1", "hi", "text", time.Now())

	assert.True(t, msg.AddReader("u2"))
	assert.False(t, msg.AddReader("u2"))
	assert.False(t, msg.AddReader("u1"))
	assert.ElementsMatch(t, []string{"u1", "u2"}, msg.ReadBy)
}

func TestMessageOrderingTieBreaksOnID(t *testing.T) {
	ts := time.Now()
	a := NewMessage("a", "c1", "u1", "x", "text", ts)
	b := NewMessage("b", "c1", "u1", "y", "text", ts)
	later := NewMessage("0", "c1", "u1", "z", "text", ts.Add(time.Millisecond))

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.True(t, b.Before(later))
}

func TestChatAcceptUpdatesSummary(t *testing.T) {
	created := time.Now()
	chat := &Chat{ID: "c1", Participants: []string{"u1", "u2"}, CreatedAt: created, UpdatedAt: created}
	msg := NewMessage("m1", "c1", "u1", "hi", "text", created.Add(time.Second))

	chat.Accept(msg)

	assert.Equal(t, "hi", chat.LastMessage.Text)
	assert.Equal(t, "u1", chat.LastMessage.SenderID)
	assert.Equal(t, msg.Timestamp, chat.UpdatedAt)

	older := NewMessage("m0", "c1", "u2", "late", "text", created.Add(-time.Second))
	chat.Accept(older)
	assert.Equal(t, msg.Timestamp, chat.UpdatedAt)
}

func TestChatParticipants(t *testing.T) {
	chat := &Chat{Participants: []string{"u1", "u2", "u3"}}

	assert.True(t, chat.IsParticipant("u2"))
	assert.False(t, chat.IsParticipant("u9"))
	assert.Equal(t, []string{"u1", "u3"}, chat.OtherParticipants("u2"))
}

func TestCloneIsDeep(t *testing.T) {
	msg := NewMessage("m1", "c1", "u1", "hi", "text", time.Now())
	msg.ApplyEdit("hello", time.Now())

	clone := msg.Clone()
	clone.AddReader("u2")
	*clone.EditedAt = clone.EditedAt.Add(time.Hour)

	assert.Equal(t, []string{"u1"}, msg.ReadBy)
	assert.NotEqual(t, *msg.EditedAt, *clone.EditedAt)
}
