package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tutorlink/internal/domain/entity"
	"tutorlink/internal/domain/repository"
	"tutorlink/pkg/errors"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
	usersCollection    = "users"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	if len(chat.Participants) < 2 {
		return errors.BadRequest("A chat needs at least two participants", nil)
	}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	_, err := r.client.Collection(chatsCollection).Doc(chat.ID).Create(ctx, chat)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Chat already exists")
		}
		return errors.Internal("Failed to create chat", err)
	}

	return nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	doc, err := r.client.Collection(chatsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}
	chat.ID = doc.Ref.ID

	return &chat, nil
}

func (r *firestoreChatRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Chat, error) {
	query := r.client.Collection(chatsCollection).Where("participants", "array-contains", userID).OrderBy("updatedAt", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var chats []*entity.Chat
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while fetching chats for user %s: %v", userID, err)
			return nil, errors.Internal("Failed to fetch chats", err)
		}

		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			log.Printf("Error parsing chat data for user %s: %v", userID, err)
			continue // Skip bad data instead of failing
		}
		chat.ID = doc.Ref.ID
		chats = append(chats, &chat)
	}

	return chats, nil
}

func (r *firestoreChatRepository) FindDirect(ctx context.Context, userA, userB, chatType string) (*entity.Chat, error) {
	query := r.client.Collection(chatsCollection).
		Where("participants", "array-contains", userA).
		Where("type", "==", chatType)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query chats", err)
	}

	for _, doc := range docs {
		var chat entity.Chat
		if err := doc.DataTo(&chat); err != nil {
			continue // Skip malformed documents
		}
		if len(chat.Participants) == 2 && chat.IsParticipant(userB) {
			chat.ID = doc.Ref.ID
			return &chat, nil
		}
	}

	return nil, errors.NotFound("Chat", nil)
}
