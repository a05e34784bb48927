package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"tutorlink/internal/domain/entity"
	"tutorlink/pkg/errors"
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

// apiClient calls the HTTP chat endpoints. Requests carry a bearer credential from the token source.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, base *http.Client, tokens oauth2.TokenSource) *apiClient {
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &oauth2.Transport{Source: tokens, Base: base.Transport},
			Timeout:   base.Timeout,
		},
	}
}

func (a *apiClient) do(ctx context.Context, method, path string, body interface{}) (*apiEnvelope, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Internal("Failed to encode request", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, errors.Internal("Failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Unavailable("Chat service unreachable", err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, errors.Forbidden("access denied", nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.CodeNotFound, "not found", http.StatusNotFound, nil)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.Unauthorized("authentication failed", nil)
	case resp.StatusCode >= 300:
		message := resp.Status
		if env.Error != nil {
			message = env.Error.Message
		}
		return nil, errors.New(errors.CodeInternal, message, resp.StatusCode, nil)
	case decodeErr != nil:
		return nil, errors.Internal("Invalid response from chat service", decodeErr)
	case !env.Success:
		return nil, errors.Internal("Chat service reported failure", nil)
	}

	return &env, nil
}

func (a *apiClient) GetChat(ctx context.Context, chatID string) (*entity.Chat, []entity.ParticipantDetail, error) {
	env, err := a.do(ctx, http.MethodGet, "/chat/"+url.PathEscape(chatID), nil)
	if err != nil {
		return nil, nil, err
	}

	var chat entity.Chat
	if err := json.Unmarshal(env.Data, &chat); err != nil {
		return nil, nil, errors.Internal("Failed to parse chat", err)
	}
	return &chat, env.ParticipantDetails, nil
}

func (a *apiClient) GetMessages(ctx context.Context, chatID string) ([]*entity.Message, error) {
	env, err := a.do(ctx, http.MethodGet, "/message/"+url.PathEscape(chatID), nil)
	if err != nil {
		return nil, err
	}

	var messages []*entity.Message
	if err := json.Unmarshal(env.Data, &messages); err != nil {
		return nil, errors.Internal("Failed to parse messages", err)
	}
	return messages, nil
}

func (a *apiClient) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := a.do(ctx, http.MethodDelete, "/message/"+url.PathEscape(messageID), nil)
	return err
}

func (a *apiClient) CreateChat(ctx context.Context, participantID, chatType string) (*entity.Chat, error) {
	env, err := a.do(ctx, http.MethodPost, "/chat", map[string]string{
		"participantId": participantID,
		"type":          chatType,
	})
	if err != nil {
		return nil, err
	}

	var chat entity.Chat
	if err := json.Unmarshal(env.Data, &chat); err != nil {
		return nil, errors.Internal("Failed to parse chat", err)
	}
	return &chat, nil
}

// StartChat finds or creates the two-party chat with participantID and returns its id.
func StartChat(ctx context.Context, cfg Config, participantID, chatType string) (string, error) {
	chat, err := newAPIClient(cfg.APIURL, cfg.HTTPClient, cfg.TokenSource).CreateChat(ctx, participantID, chatType)
	if err != nil {
		return "", err
	}
	return chat.ID, nil
}

// RemoteDevTokenSource fetches credentials from a development server's /dev/token endpoint.
func RemoteDevTokenSource(apiURL, userID string, httpClient *http.Client) oauth2.TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return oauth2.ReuseTokenSource(nil, &remoteDevTokenSource{
		url:    strings.TrimRight(apiURL, "/") + "/dev/token",
		userID: userID,
		http:   httpClient,
	})
}

type remoteDevTokenSource struct {
	url    string
	userID string
	http   *http.Client
}

func (s *remoteDevTokenSource) Token() (*oauth2.Token, error) {
	raw, _ := json.Marshal(map[string]string{"userId": s.userID})
	resp, err := s.http.Post(s.url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Unavailable("Dev token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Unauthorized(fmt.Sprintf("dev token request failed: %s", resp.Status), nil)
	}

	var env struct {
		Data struct {
			Token     string    `json:"token"`
			ExpiresAt time.Time `json:"expiresAt"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.Internal("Invalid dev token response", err)
	}

	return &oauth2.Token{
		AccessToken: env.Data.Token,
		TokenType:   "Bearer",
		Expiry:      env.Data.ExpiresAt,
	}, nil
}
