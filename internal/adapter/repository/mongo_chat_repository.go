package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tutorlink/internal/domain/entity"
	"tutorlink/internal/domain/repository"
	"tutorlink/pkg/errors"
)

type mongoChatRepository struct {
	db *mongo.Database
}

func NewMongoChatRepository(db *mongo.Database) repository.ChatRepository {
	return &mongoChatRepository{db: db}
}

func (r *mongoChatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	if len(chat.Participants) < 2 {
		return errors.BadRequest("A chat needs at least two participants", nil)
	}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	_, err := r.db.Collection(chatsCollection).InsertOne(ctx, chat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("Chat already exists")
		}
		return errors.Internal("Failed to create chat", err)
	}

	return nil
}

func (r *mongoChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	var chat entity.Chat
	err := r.db.Collection(chatsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	return &chat, nil
}

func (r *mongoChatRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := r.db.Collection(chatsCollection).Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, errors.Internal("Failed to fetch chats", err)
	}
	defer cursor.Close(ctx)

	var chats []*entity.Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, errors.Internal("Failed to decode chats", err)
	}

	return chats, nil
}

func (r *mongoChatRepository) FindDirect(ctx context.Context, userA, userB, chatType string) (*entity.Chat, error) {
	filter := bson.M{
		"participants": bson.M{"$all": bson.A{userA, userB}, "$size": 2},
		"type":         chatType,
	}

	var chat entity.Chat
	err := r.db.Collection(chatsCollection).FindOne(ctx, filter).Decode(&chat)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.Internal("Failed to query chats", err)
	}

	return &chat, nil
}
