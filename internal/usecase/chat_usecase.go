package usecase

import (
	"context"
	"log"

	"tutorlink/internal/domain/entity"
	"tutorlink/internal/domain/repository"
	"tutorlink/internal/infrastructure/ratelimit"
	"tutorlink/pkg/errors"
)

// PresenceChecker reports whether a user currently holds a live realtime connection.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	presence    PresenceChecker
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	presence PresenceChecker,
	rateLimiter *ratelimit.RateLimiter,
) *ChatUseCase {
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewRateLimiter()
	}

	return &ChatUseCase{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		presence:    presence,
		rateLimiter: rateLimiter,
	}
}

type CreateChatInput struct {
	ParticipantID string
	Type          string
	Metadata      map[string]interface{}
}

type ChatDetail struct {
	Chat         *entity.Chat
	Participants []entity.ParticipantDetail
}

// participantChat loads a chat the user is allowed to see.
func (uc *ChatUseCase) participantChat(ctx context.Context, userID, chatID string) (*entity.Chat, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("Chat %s lookup failed for user %s: %v", chatID, userID, err)
		return nil, err
	}

	if !chat.IsParticipant(userID) {
		log.Printf("User %s is not a participant in chat %s", userID, chatID)
		return nil, errors.Forbidden("User is not a participant in this chat", nil)
	}

	return chat, nil
}

func (uc *ChatUseCase) GetChat(ctx context.Context, userID, chatID string) (*ChatDetail, error) {
	chat, err := uc.participantChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	users, err := uc.userRepo.GetMany(ctx, chat.Participants)
	if err != nil {
		// Profiles are decoration; the chat itself is still usable.
		log.Printf("GetChat Warning: Failed to load participants for chat %s: %v", chatID, err)
	}
	byID := make(map[string]*entity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	details := make([]entity.ParticipantDetail, 0, len(chat.Participants))
	for _, id := range chat.Participants {
		detail := entity.ParticipantDetail{ID: id, DisplayName: id}
		if u, ok := byID[id]; ok {
			if u.DisplayName != "" {
				detail.DisplayName = u.DisplayName
			}
			detail.PhotoURL = u.PhotoURL
			detail.Role = u.Role
		}
		if uc.presence != nil {
			detail.IsOnline = uc.presence.IsOnline(id)
		}
		details = append(details, detail)
	}

	return &ChatDetail{Chat: chat, Participants: details}, nil
}

func (uc *ChatUseCase) GetChatMessages(ctx context.Context, userID, chatID string, limit int) ([]*entity.Message, error) {
	if _, err := uc.participantChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	messages, err := uc.messageRepo.ListByChat(ctx, chatID, limit)
	if err != nil {
		log.Printf("GetChatMessages Error: Failed to get messages for chat %s: %v", chatID, err)
		return nil, err
	}
	if messages == nil {
		messages = []*entity.Message{}
	}

	return messages, nil
}

func (uc *ChatUseCase) ListUserChats(ctx context.Context, userID string) ([]*entity.Chat, error) {
	chats, err := uc.chatRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []*entity.Chat{}
	}
	return chats, nil
}

// CreateChat returns the existing two-party chat of the requested type, or creates it.
// The boolean reports whether a new chat was created.
func (uc *ChatUseCase) CreateChat(ctx context.Context, userID string, input CreateChatInput) (*entity.Chat, bool, error) {
	if input.ParticipantID == userID {
		return nil, false, errors.BadRequest("Cannot start a chat with yourself", nil)
	}

	chatType := input.Type
	if chatType == "" {
		chatType = entity.ChatTypeDirect
	}

	existing, err := uc.chatRepo.FindDirect(ctx, userID, input.ParticipantID, chatType)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return nil, false, err
	}

	if allowed, wait := uc.rateLimiter.Allow(userID, ratelimit.ActionCreateChat); !allowed {
		return nil, false, errors.TooManyRequests("Too many new chats", wait)
	}

	chat := &entity.Chat{
		Participants: []string{userID, input.ParticipantID},
		Type:         chatType,
		Metadata:     input.Metadata,
	}
	if err := uc.chatRepo.Create(ctx, chat); err != nil {
		log.Printf("CreateChat Error: Failed to create chat between %s and %s: %v", userID, input.ParticipantID, err)
		return nil, false, err
	}

	return chat, true, nil
}

// DeleteMessage removes a message record. Only its sender may delete it.
func (uc *ChatUseCase) DeleteMessage(ctx context.Context, userID, messageID string) (*entity.Message, error) {
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if message.SenderID != userID {
		return nil, errors.Forbidden("Only the sender can delete this message", nil)
	}

	if err := uc.messageRepo.Delete(ctx, messageID); err != nil {
		log.Printf("DeleteMessage Error: Failed to delete message %s: %v", messageID, err)
		return nil, err
	}

	return message, nil
}
