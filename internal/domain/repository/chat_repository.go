package repository

import (
	"context"
	"time"

	"tutorlink/internal/domain/entity"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	ListByParticipant(ctx context.Context, userID string) ([]*entity.Chat, error)
	// FindDirect returns the two-party chat of the given type between userA and userB.
	FindDirect(ctx context.Context, userA, userB, chatType string) (*entity.Chat, error)
}

type MessageRepository interface {
	// Append stores msg and, atomically with it, advances the owning chat's
	// lastMessage and updatedAt. Returns NOT_FOUND when the chat does not exist.
	Append(ctx context.Context, msg *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// ListByChat returns messages oldest first, ordered by (timestamp, id). limit <= 0 means all.
	ListByChat(ctx context.Context, chatID string, limit int) ([]*entity.Message, error)
	// AddReader unions userID into readBy as a single store-side update.
	// Returns NOT_FOUND when the message is missing or belongs to another chat.
	AddReader(ctx context.Context, chatID, messageID, userID string) error
	// Edit replaces the content of a message owned by editorID within chatID.
	Edit(ctx context.Context, chatID, messageID, editorID, content string, at time.Time) (*entity.Message, error)
	Delete(ctx context.Context, id string) error
}
