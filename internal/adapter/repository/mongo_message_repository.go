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

type mongoMessageRepository struct {
	db *mongo.Database
}

func NewMongoMessageRepository(db *mongo.Database) repository.MessageRepository {
	return &mongoMessageRepository{db: db}
}

func (r *mongoMessageRepository) Append(ctx context.Context, msg *entity.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return errors.Internal("Failed to start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.db.Collection(chatsCollection).UpdateOne(sc, bson.M{"_id": msg.ChatID}, bson.M{
			"$set": bson.M{"lastMessage": msg.Summary()},
			"$max": bson.M{"updatedAt": msg.Timestamp},
		})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, errors.NotFound("Chat", nil)
		}

		_, err = r.db.Collection(messagesCollection).InsertOne(sc, msg)
		return nil, err
	})

	return wrapTxError("Failed to create message", err)
}

func (r *mongoMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	var message entity.Message
	err := r.db.Collection(messagesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	return &message, nil
}

func (r *mongoMessageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	direction := 1
	if limit > 0 {
		direction = -1
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: direction}, {Key: "_id", Value: direction}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.db.Collection(messagesCollection).Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, errors.Internal("Failed to fetch messages", err)
	}
	defer cursor.Close(ctx)

	var messages []*entity.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, errors.Internal("Failed to decode messages", err)
	}

	if direction < 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, nil
}

func (r *mongoMessageRepository) AddReader(ctx context.Context, chatID, messageID, userID string) error {
	res, err := r.db.Collection(messagesCollection).UpdateOne(ctx,
		bson.M{"_id": messageID, "chatId": chatID},
		bson.M{"$addToSet": bson.M{"readBy": userID}},
	)
	if err != nil {
		return errors.Internal("Failed to update message read status", err)
	}
	if res.MatchedCount == 0 {
		return errors.NotFound("Message", nil)
	}
	return nil
}

func (r *mongoMessageRepository) Edit(ctx context.Context, chatID, messageID, editorID, content string, at time.Time) (*entity.Message, error) {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return nil, errors.Internal("Failed to start session", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		collection := r.db.Collection(messagesCollection)

		var message entity.Message
		if err := collection.FindOne(sc, bson.M{"_id": messageID}).Decode(&message); err != nil {
			if stderrors.Is(err, mongo.ErrNoDocuments) {
				return nil, errors.NotFound("Message", err)
			}
			return nil, err
		}
		if message.ChatID != chatID {
			return nil, errors.NotFound("Message", nil)
		}
		if message.SenderID != editorID {
			return nil, errors.Forbidden("Only the sender can edit this message", nil)
		}

		_, err := collection.UpdateOne(sc, bson.M{"_id": messageID}, bson.M{
			"$set": bson.M{"message": content, "edited": true, "editedAt": at},
		})
		if err != nil {
			return nil, err
		}

		message.ApplyEdit(content, at)
		return &message, nil
	})
	if err != nil {
		return nil, wrapTxError("Failed to edit message", err)
	}

	return result.(*entity.Message), nil
}

func (r *mongoMessageRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Collection(messagesCollection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}
