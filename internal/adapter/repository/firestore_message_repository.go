package repository

import (
	"context"
	stderrors "errors"
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

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) Append(ctx context.Context, msg *entity.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	chatRef := r.client.Collection(chatsCollection).Doc(msg.ChatID)
	msgRef := r.client.Collection(messagesCollection).Doc(msg.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(chatRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Chat", err)
			}
			return err
		}
		if err := tx.Create(msgRef, msg); err != nil {
			return err
		}
		return tx.Update(chatRef, []firestore.Update{
			{Path: "lastMessage", Value: msg.Summary()},
			{Path: "updatedAt", Value: msg.Timestamp},
		})
	})

	return wrapTxError("Failed to create message", err)
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.client.Collection(messagesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	return decodeMessage(doc)
}

func (r *firestoreMessageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	direction := firestore.Asc
	if limit > 0 {
		// Newest window first, reversed below.
		direction = firestore.Desc
	}

	query := r.client.Collection(messagesCollection).
		Where("chatId", "==", chatID).
		OrderBy("timestamp", direction).
		OrderBy("id", direction)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for chat %s: %v", chatID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		message, err := decodeMessage(doc)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if direction == firestore.Desc {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, nil
}

func (r *firestoreMessageRepository) AddReader(ctx context.Context, chatID, messageID, userID string) error {
	msgRef := r.client.Collection(messagesCollection).Doc(messageID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(msgRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Message", err)
			}
			return err
		}
		owner, err := doc.DataAt("chatId")
		if err != nil || owner != chatID {
			return errors.NotFound("Message", nil)
		}
		return tx.Update(msgRef, []firestore.Update{
			{Path: "readBy", Value: firestore.ArrayUnion(userID)},
		})
	})

	return wrapTxError("Failed to update message read status", err)
}

func (r *firestoreMessageRepository) Edit(ctx context.Context, chatID, messageID, editorID, content string, at time.Time) (*entity.Message, error) {
	msgRef := r.client.Collection(messagesCollection).Doc(messageID)

	var edited *entity.Message
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(msgRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Message", err)
			}
			return err
		}

		message, err := decodeMessage(doc)
		if err != nil {
			return err
		}
		if message.ChatID != chatID {
			return errors.NotFound("Message", nil)
		}
		if message.SenderID != editorID {
			return errors.Forbidden("Only the sender can edit this message", nil)
		}

		message.ApplyEdit(content, at)
		edited = message
		return tx.Update(msgRef, []firestore.Update{
			{Path: "message", Value: content},
			{Path: "edited", Value: true},
			{Path: "editedAt", Value: at},
		})
	})
	if err != nil {
		return nil, wrapTxError("Failed to edit message", err)
	}

	return edited, nil
}

func (r *firestoreMessageRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(messagesCollection).Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID
	return &message, nil
}

// wrapTxError keeps AppErrors raised inside a transaction and wraps store failures.
func wrapTxError(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return errors.Internal(message, err)
}
