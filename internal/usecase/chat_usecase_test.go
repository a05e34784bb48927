package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorlink/internal/adapter/repository"
	"tutorlink/internal/domain/entity"
	"tutorlink/internal/infrastructure/ratelimit"
	"tutorlink/pkg/errors"
)

type staticPresence map[string]bool

func (p staticPresence) IsOnline(userID string) bool {
	return p[userID]
}

func newTestUseCase(t *testing.T) (*ChatUseCase, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	store.PutUser(&entity.User{ID: "tutor", DisplayName: "Ms. Rivera", Role: entity.RoleTutor, PhotoURL: "https://cdn.example/r.png"})
	store.PutUser(&entity.User{ID: "student", DisplayName: "Sam", Role: entity.RoleStudent})

	chats := repository.NewMemoryChatRepository(store)
	require.NoError(t, chats.Create(context.Background(), &entity.Chat{
		ID:           "c1",
		Participants: []string{"tutor", "student"},
		Type:         entity.ChatTypeTutorSession,
		Metadata:     map[string]interface{}{"bookingId": "b-42"},
	}))

	uc := NewChatUseCase(
		chats,
		repository.NewMemoryMessageRepository(store),
		repository.NewMemoryUserRepository(store),
		staticPresence{"tutor": true},
		ratelimit.NewRateLimiter(),
	)
	return uc, store
}

func TestGetChat(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	detail, err := uc.GetChat(ctx, "student", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", detail.Chat.ID)
	assert.Equal(t, "b-42", detail.Chat.Metadata["bookingId"])
	assert.Equal(t, []entity.ParticipantDetail{
		{ID: "tutor", DisplayName: "Ms. Rivera", PhotoURL: "https://cdn.example/r.png", Role: entity.RoleTutor, IsOnline: true},
		{ID: "student", DisplayName: "Sam", Role: entity.RoleStudent, IsOnline: false},
	}, detail.Participants)

	_, err = uc.GetChat(ctx, "stranger", "c1")
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = uc.GetChat(ctx, "student", "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestGetChatMessagesOldestFirst(t *testing.T) {
	uc, store := newTestUseCase(t)
	ctx := context.Background()
	messages := repository.NewMemoryMessageRepository(store)

	base := time.Now()
	require.NoError(t, messages.Append(ctx, entity.NewMessage("m2", "c1", "tutor", "second", "", base.Add(time.Second))))
	require.NoError(t, messages.Append(ctx, entity.NewMessage("m1", "c1", "student", "first", "", base)))

	list, err := uc.GetChatMessages(ctx, "tutor", "c1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m1", list[0].ID)
	assert.Equal(t, "m2", list[1].ID)

	_, err = uc.GetChatMessages(ctx, "stranger", "c1", 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestCreateChatFindsExisting(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	chat, created, err := uc.CreateChat(ctx, "student", CreateChatInput{ParticipantID: "tutor", Type: entity.ChatTypeTutorSession})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "c1", chat.ID)

	chat, created, err = uc.CreateChat(ctx, "student", CreateChatInput{ParticipantID: "tutor"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entity.ChatTypeDirect, chat.Type)
	assert.ElementsMatch(t, []string{"student", "tutor"}, chat.Participants)

	again, created, err := uc.CreateChat(ctx, "tutor", CreateChatInput{ParticipantID: "student"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, chat.ID, again.ID)

	_, _, err = uc.CreateChat(ctx, "student", CreateChatInput{ParticipantID: "student"})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	uc, store := newTestUseCase(t)
	ctx := context.Background()
	messages := repository.NewMemoryMessageRepository(store)
	require.NoError(t, messages.Append(ctx, entity.NewMessage("m1", "c1", "tutor", "oops", "", time.Now())))

	_, err := uc.DeleteMessage(ctx, "student", "m1")
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	deleted, err := uc.DeleteMessage(ctx, "tutor", "m1")
	require.NoError(t, err)
	assert.Equal(t, "c1", deleted.ChatID)

	_, err = uc.DeleteMessage(ctx, "tutor", "m1")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}
