package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutorlink/internal/domain/entity"
	"tutorlink/internal/domain/repository"
	"tutorlink/pkg/errors"
)

// MemoryStore backs the in-process repositories used in development and tests.
// Every value handed out is a copy.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]*entity.Chat
	messages map[string]*entity.Message
	users    map[string]*entity.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]*entity.Chat),
		messages: make(map[string]*entity.Message),
		users:    make(map[string]*entity.User),
	}
}

// PutUser stores or replaces a profile.
func (s *MemoryStore) PutUser(user *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[u.ID] = &u
}

func cloneChat(c *entity.Chat) *entity.Chat {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

type memoryChatRepository struct {
	store *MemoryStore
}

func NewMemoryChatRepository(store *MemoryStore) repository.ChatRepository {
	return &memoryChatRepository{store: store}
}

func (r *memoryChatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	if len(chat.Participants) < 2 {
		return errors.BadRequest("A chat needs at least two participants", nil)
	}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.chats[chat.ID]; exists {
		return errors.Conflict("Chat already exists")
	}

	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	r.store.chats[chat.ID] = cloneChat(chat)
	return nil
}

func (r *memoryChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	chat, ok := r.store.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return cloneChat(chat), nil
}

func (r *memoryChatRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Chat, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var chats []*entity.Chat
	for _, chat := range r.store.chats {
		if chat.IsParticipant(userID) {
			chats = append(chats, cloneChat(chat))
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (r *memoryChatRepository) FindDirect(ctx context.Context, userA, userB, chatType string) (*entity.Chat, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, chat := range r.store.chats {
		if chat.Type == chatType && len(chat.Participants) == 2 && chat.IsParticipant(userA) && chat.IsParticipant(userB) {
			return cloneChat(chat), nil
		}
	}
	return nil, errors.NotFound("Chat", nil)
}

type memoryMessageRepository struct {
	store *MemoryStore
}

func NewMemoryMessageRepository(store *MemoryStore) repository.MessageRepository {
	return &memoryMessageRepository{store: store}
}

func (r *memoryMessageRepository) Append(ctx context.Context, msg *entity.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	chat, ok := r.store.chats[msg.ChatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}
	if _, exists := r.store.messages[msg.ID]; exists {
		return errors.Conflict("Message already exists")
	}

	r.store.messages[msg.ID] = msg.Clone()
	chat.Accept(msg)
	return nil
}

func (r *memoryMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	msg, ok := r.store.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return msg.Clone(), nil
}

func (r *memoryMessageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var messages []*entity.Message
	for _, msg := range r.store.messages {
		if msg.ChatID == chatID {
			messages = append(messages, msg.Clone())
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Before(messages[j])
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (r *memoryMessageRepository) AddReader(ctx context.Context, chatID, messageID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	msg, ok := r.store.messages[messageID]
	if !ok || msg.ChatID != chatID {
		return errors.NotFound("Message", nil)
	}
	msg.AddReader(userID)
	return nil
}

func (r *memoryMessageRepository) Edit(ctx context.Context, chatID, messageID, editorID, content string, at time.Time) (*entity.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	msg, ok := r.store.messages[messageID]
	if !ok || msg.ChatID != chatID {
		return nil, errors.NotFound("Message", nil)
	}
	if msg.SenderID != editorID {
		return nil, errors.Forbidden("Only the sender can edit this message", nil)
	}

	msg.ApplyEdit(content, at)
	return msg.Clone(), nil
}

func (r *memoryMessageRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.messages, id)
	return nil
}

type memoryUserRepository struct {
	store *MemoryStore
}

func NewMemoryUserRepository(store *MemoryStore) repository.UserRepository {
	return &memoryUserRepository{store: store}
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	u := *user
	return &u, nil
}

func (r *memoryUserRepository) GetMany(ctx context.Context, ids []string) ([]*entity.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]*entity.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.store.users[id]; ok {
			u := *user
			users = append(users, &u)
		}
	}
	return users, nil
}
