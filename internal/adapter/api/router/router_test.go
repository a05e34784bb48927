package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorlink/internal/adapter/api"
	"tutorlink/internal/adapter/api/handler"
	"tutorlink/internal/adapter/api/middleware"
	"tutorlink/internal/adapter/repository"
	"tutorlink/internal/domain/entity"
	"tutorlink/internal/infrastructure/auth"
	"tutorlink/internal/infrastructure/ratelimit"
	ws "tutorlink/internal/infrastructure/websocket"
	"tutorlink/internal/usecase"
)

type apiEnvelope struct {
	Success            bool                       `json:"success"`
	Data               json.RawMessage            `json:"data"`
	ParticipantDetails []entity.ParticipantDetail `json:"participantDetails"`
	Error              *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	echo   *echo.Echo
	store  *repository.MemoryStore
	tokens *auth.DevTokens
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	store.PutUser(&entity.User{ID: "tutor", DisplayName: "Ms. Rivera", Role: entity.RoleTutor})
	store.PutUser(&entity.User{ID: "student", DisplayName: "Sam", Role: entity.RoleStudent})

	chats := repository.NewMemoryChatRepository(store)
	messages := repository.NewMemoryMessageRepository(store)
	require.NoError(t, chats.Create(context.Background(), &entity.Chat{
		ID:           "c1",
		Participants: []string{"tutor", "student"},
		Type:         entity.ChatTypeTutorSession,
	}))

	tokens := auth.NewDevTokens("router-test-secret", time.Minute)
	limiter := ratelimit.NewRateLimiter()
	registry := ws.NewRegistry()
	gateway := ws.NewGateway(registry, tokens, chats, messages, ws.Options{SendBuffer: 16, Limiter: limiter})
	chatUseCase := usecase.NewChatUseCase(chats, messages, repository.NewMemoryUserRepository(store), registry, limiter)

	e := echo.New()
	e.Validator = api.NewValidator()

	handler.Setup(chatUseCase, gateway, []string{"*"})
	handler.SetupDevTokenHandler(tokens)
	Setup(e, middleware.NewAuthMiddleware(tokens), limiter)
	SetupDevRouter(e)

	return &testServer{echo: e, store: store, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, userID, body string) (int, apiEnvelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		token, _, err := s.tokens.Issue(userID)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var env apiEnvelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (s *testServer) appendMessage(t *testing.T, msg *entity.Message) {
	t.Helper()
	require.NoError(t, repository.NewMemoryMessageRepository(s.store).Append(context.Background(), msg))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetChat(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/chat/c1", "student", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var chat entity.Chat
	require.NoError(t, json.Unmarshal(env.Data, &chat))
	assert.Equal(t, "c1", chat.ID)
	require.Len(t, env.ParticipantDetails, 2)
	assert.Equal(t, "Ms. Rivera", env.ParticipantDetails[0].DisplayName)
	assert.False(t, env.ParticipantDetails[0].IsOnline)

	code, env = s.do(t, http.MethodGet, "/chat/c1", "stranger", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, _ = s.do(t, http.MethodGet, "/chat/nope", "student", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/chat/c1", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
}

func TestGetChatMessages(t *testing.T) {
	s := newTestServer(t)
	base := time.Now().UTC().Truncate(time.Millisecond)
	s.appendMessage(t, entity.NewMessage("m3", "c1", "tutor", "third", "", base.Add(2*time.Second)))
	s.appendMessage(t, entity.NewMessage("m1", "c1", "student", "first", "", base))
	s.appendMessage(t, entity.NewMessage("m2", "c1", "tutor", "second", "", base.Add(time.Second)))

	code, env := s.do(t, http.MethodGet, "/message/c1", "tutor", "")
	require.Equal(t, http.StatusOK, code)

	var messages []entity.Message
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{messages[0].ID, messages[1].ID, messages[2].ID})

	code, env = s.do(t, http.MethodGet, "/message/c1?limit=2", "tutor", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	assert.Equal(t, []string{"m2", "m3"}, []string{messages[0].ID, messages[1].ID})

	code, _ = s.do(t, http.MethodGet, "/message/c1", "stranger", "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestCreateChat(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/chat", "student", `{"participantId":"tutor","type":"direct"}`)
	require.Equal(t, http.StatusCreated, code)
	var created entity.Chat
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.ElementsMatch(t, []string{"student", "tutor"}, created.Participants)

	code, env = s.do(t, http.MethodPost, "/chat", "tutor", `{"participantId":"student"}`)
	require.Equal(t, http.StatusOK, code)
	var found entity.Chat
	require.NoError(t, json.Unmarshal(env.Data, &found))
	assert.Equal(t, created.ID, found.ID)

	code, env = s.do(t, http.MethodPost, "/chat", "student", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = s.do(t, http.MethodGet, "/chat", "student", "")
	require.Equal(t, http.StatusOK, code)
	var chats []entity.Chat
	require.NoError(t, json.Unmarshal(env.Data, &chats))
	assert.Len(t, chats, 2)
}

func TestDeleteMessage(t *testing.T) {
	s := newTestServer(t)
	s.appendMessage(t, entity.NewMessage("m1", "c1", "tutor", "typo", "", time.Now()))

	code, _ := s.do(t, http.MethodDelete, "/message/m1", "student", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(t, http.MethodDelete, "/message/m1", "tutor", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"messageId":"m1","chatId":"c1"}`, string(env.Data))

	code, _ = s.do(t, http.MethodDelete, "/message/m1", "tutor", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDevToken(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/dev/token", "", `{"userId":"student"}`)
	require.Equal(t, http.StatusOK, code)

	var issued struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.Equal(t, "student", issued.UserID)

	uid, err := s.tokens.VerifyToken(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "student", uid)
}

func TestRateLimitedAPI(t *testing.T) {
	s := newTestServer(t)

	var limited bool
	for i := 0; i < 100 && !limited; i++ {
		code, env := s.do(t, http.MethodGet, "/chat/c1", "student", "")
		if code == http.StatusTooManyRequests {
			limited = true
			assert.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
		}
	}
	assert.True(t, limited)
}
