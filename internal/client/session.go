package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"tutorlink/internal/domain/entity"
	ws "tutorlink/internal/infrastructure/websocket"
	"tutorlink/pkg/errors"
	"tutorlink/pkg/logger"
)

const (
	defaultTypingStopDelay = 2 * time.Second
	sendQueueSize          = 64
	writeWait              = 10 * time.Second
	markReadBatch          = 200
)

type Config struct {
	// ServerURL is the realtime endpoint, e.g. ws://localhost:8080/ws.
	ServerURL string
	// APIURL is the base of the HTTP chat endpoints, e.g. http://localhost:8080.
	APIURL          string
	UserID          string
	TokenSource     oauth2.TokenSource
	TypingStopDelay time.Duration
	Dialer          *websocket.Dialer
	HTTPClient      *http.Client
}

// Session is the client side of one open chat. Observer callbacks run on the
// session's reader goroutine, never after Close returns, and must not call Close.
type Session struct {
	cfg Config
	api *apiClient
	log *logger.Logger

	OnMessages func(messages []*entity.Message)
	OnTyping   func(userID string, isTyping bool)
	OnPresence func(userID string, online bool)
	OnError    func(err error)

	mutex        sync.Mutex
	state        sessionState
	chatID       string
	chat         *entity.Chat
	participants []entity.ParticipantDetail
	messages     *messageLog

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	typing    *typingDebouncer
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateOpening
	stateOpen
	stateClosed
)

func NewSession(cfg Config) *Session {
	if cfg.TypingStopDelay <= 0 {
		cfg.TypingStopDelay = defaultTypingStopDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	s := &Session{
		cfg:      cfg,
		api:      newAPIClient(cfg.APIURL, cfg.HTTPClient, cfg.TokenSource),
		log:      logger.New("session"),
		messages: newMessageLog(),
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
	s.typing = newTypingDebouncer(cfg.TypingStopDelay,
		func() { s.emitTyping(ws.EventTypingStart) },
		func() { s.emitTyping(ws.EventTypingStop) },
	)
	return s
}

type snapshot struct {
	chat         *entity.Chat
	participants []entity.ParticipantDetail
	messages     []*entity.Message
}

// Open authenticates, joins chatID and loads its history. On failure the
// session is left unopened and Open may be called again.
func (s *Session) Open(ctx context.Context, chatID string) error {
	s.mutex.Lock()
	switch s.state {
	case stateOpen, stateOpening:
		s.mutex.Unlock()
		return errors.Conflict("Session is already open")
	case stateClosed:
		s.mutex.Unlock()
		return errors.BadRequest("Session is closed", nil)
	}
	s.state = stateOpening
	s.mutex.Unlock()

	var (
		conn    *websocket.Conn
		early   []ws.WSMessage
		history snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		conn, early, err = s.handshake(gctx, chatID)
		return err
	})
	g.Go(func() error {
		chat, participants, err := s.api.GetChat(gctx, chatID)
		if err != nil {
			return err
		}
		messages, err := s.api.GetMessages(gctx, chatID)
		if err != nil {
			return err
		}
		history = snapshot{chat: chat, participants: participants, messages: messages}
		return nil
	})

	if err := g.Wait(); err != nil {
		if conn != nil {
			conn.Close()
		}
		s.mutex.Lock()
		s.state = stateIdle
		s.mutex.Unlock()
		s.log.Warn("Open of chat %s failed: %v", chatID, err)
		return openError(err)
	}

	s.mutex.Lock()
	if s.state == stateClosed {
		s.mutex.Unlock()
		conn.Close()
		return errors.BadRequest("Session is closed", nil)
	}
	s.conn = conn
	s.chatID = chatID
	s.chat = history.chat
	s.participants = history.participants
	s.messages.Reset(history.messages)
	s.state = stateOpen
	s.mutex.Unlock()

	// Events that raced the history fetch are applied on top of it.
	for _, msg := range early {
		s.apply(msg, false)
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()

	s.log.Info("Opened chat %s as %s", chatID, s.cfg.UserID)
	return nil
}

func openError(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return errors.Unavailable("Could not open chat", err)
}

// handshake dials, authenticates and joins the room. Events received after
// joined that are not part of the handshake are returned for replay.
func (s *Session) handshake(ctx context.Context, chatID string) (*websocket.Conn, []ws.WSMessage, error) {
	token, err := s.cfg.TokenSource.Token()
	if err != nil {
		return nil, nil, errors.Unauthorized("Could not obtain credential", err)
	}

	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.ServerURL, nil)
	if err != nil {
		return nil, nil, errors.Unavailable("Could not connect to chat server", err)
	}

	// Unblock reads if the context ends mid-handshake.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	fail := func(err error) (*websocket.Conn, []ws.WSMessage, error) {
		conn.Close()
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}

	if err := writeEvent(conn, ws.EventJoin, ws.JoinData{UserID: s.cfg.UserID, Token: token.AccessToken}); err != nil {
		return fail(errors.Unavailable("Failed to send join", err))
	}

	var early []ws.WSMessage
	for joined := false; !joined; {
		msg, err := readEvent(conn)
		if err != nil {
			return fail(errors.Unavailable("Connection closed during join", err))
		}
		switch msg.Type {
		case ws.EventJoined:
			joined = true
		case ws.EventAuthError:
			var data ws.AuthErrorData
			_ = msg.DecodeData(&data)
			return fail(errors.Unauthorized(data.Message, nil))
		case ws.EventError:
			return fail(remoteError(msg))
		}
	}

	if err := writeEvent(conn, ws.EventJoinChat, ws.ChatRefData{ChatID: chatID}); err != nil {
		return fail(errors.Unavailable("Failed to send join_chat", err))
	}

	for {
		msg, err := readEvent(conn)
		if err != nil {
			return fail(errors.Unavailable("Connection closed during join_chat", err))
		}
		switch msg.Type {
		case ws.EventChatJoined:
			var data ws.ChatJoinedData
			if err := msg.DecodeData(&data); err == nil && data.ChatID == chatID {
				return conn, early, nil
			}
		case ws.EventError:
			var data ws.ErrorData
			_ = msg.DecodeData(&data)
			if data.Event == ws.EventJoinChat {
				return fail(joinChatError(data))
			}
			early = append(early, msg)
		default:
			early = append(early, msg)
		}
	}
}

func joinChatError(data ws.ErrorData) error {
	switch data.Code {
	case errors.CodeForbidden:
		return errors.Forbidden("access denied", nil)
	case errors.CodeNotFound:
		return errors.New(errors.CodeNotFound, "not found", http.StatusNotFound, nil)
	}
	return errors.New(data.Code, data.Message, 0, nil)
}

func remoteError(msg ws.WSMessage) error {
	var data ws.ErrorData
	_ = msg.DecodeData(&data)
	return errors.New(data.Code, data.Message, 0, nil)
}

func writeEvent(conn *websocket.Conn, eventType string, data interface{}) error {
	raw, err := ws.Encode(eventType, data)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func readEvent(conn *websocket.Conn) (ws.WSMessage, error) {
	var msg ws.WSMessage
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func (s *Session) readLoop() {
	defer s.wg.Done()

	for {
		msg, err := readEvent(s.conn)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("Connection to chat %s lost: %v", s.chatID, err)
				s.notifyError(errors.Unavailable("Connection lost", err))
			}
			return
		}
		s.apply(msg, true)
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case raw := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				s.log.Warn("Write to chat %s failed: %v", s.chatID, err)
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// apply folds one server event into local state and notifies observers when notify is set.
func (s *Session) apply(msg ws.WSMessage, notify bool) {
	switch msg.Type {
	case ws.EventNewMessage:
		var data ws.NewMessageData
		if err := msg.DecodeData(&data); err != nil || data.Message == nil {
			return
		}
		s.updateMessages(notify, data.ChatID, func(l *messageLog) bool {
			l.Confirm(data.Message, data.TempID, s.cfg.UserID)
			return true
		})

	case ws.EventMessageEdited:
		var data ws.MessageEditedData
		if err := msg.DecodeData(&data); err != nil {
			return
		}
		s.updateMessages(notify, data.ChatID, func(l *messageLog) bool {
			return l.Edit(data.MessageID, data.NewMessage, data.EditedAt)
		})

	case ws.EventMessageDeleted:
		var data ws.MessageDeletedData
		if err := msg.DecodeData(&data); err != nil {
			return
		}
		s.updateMessages(notify, data.ChatID, func(l *messageLog) bool {
			return l.Remove(data.MessageID)
		})

	case ws.EventMessagesRead:
		var data ws.MessagesReadData
		if err := msg.DecodeData(&data); err != nil {
			return
		}
		s.updateMessages(notify, data.ChatID, func(l *messageLog) bool {
			return l.MarkRead(data.UserID, data.MessageIDs)
		})

	case ws.EventUserTyping:
		var data ws.UserTypingData
		if err := msg.DecodeData(&data); err != nil || data.ChatID != s.chatID || data.UserID == s.cfg.UserID {
			return
		}
		if notify && s.OnTyping != nil {
			s.OnTyping(data.UserID, data.IsTyping)
		}

	case ws.EventUserStatusChanged:
		var data ws.UserStatusData
		if err := msg.DecodeData(&data); err != nil {
			return
		}
		if !s.setPresence(data.UserID, data.IsOnline) {
			return
		}
		if notify && s.OnPresence != nil {
			s.OnPresence(data.UserID, data.IsOnline)
		}

	case ws.EventError:
		// A rejected send leaves its provisional entry in place.
		if notify {
			s.notifyError(remoteError(msg))
		}
	}
}

func (s *Session) updateMessages(notify bool, chatID string, fn func(l *messageLog) bool) {
	s.mutex.Lock()
	if chatID != s.chatID || !fn(s.messages) {
		s.mutex.Unlock()
		return
	}
	snap := s.messages.Snapshot()
	s.mutex.Unlock()

	if notify && s.OnMessages != nil {
		s.OnMessages(snap)
	}
}

// setPresence updates a participant's online flag and reports whether userID is in this chat.
func (s *Session) setPresence(userID string, online bool) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i := range s.participants {
		if s.participants[i].ID == userID {
			s.participants[i].IsOnline = online
			return true
		}
	}
	return false
}

func (s *Session) notifyError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}

func (s *Session) openChat() (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != stateOpen {
		return "", errors.BadRequest("Session is not open", nil)
	}
	return s.chatID, nil
}

func (s *Session) emit(eventType string, data interface{}) error {
	raw, err := ws.Encode(eventType, data)
	if err != nil {
		return errors.Internal("Failed to encode "+eventType, err)
	}

	select {
	case <-s.done:
		return errors.BadRequest("Session is closed", nil)
	default:
	}

	select {
	case s.send <- raw:
		return nil
	default:
		return errors.Unavailable("Send queue is full", nil)
	}
}

func (s *Session) emitTyping(eventType string) {
	chatID, err := s.openChat()
	if err != nil {
		return
	}
	if err := s.emit(eventType, ws.ChatRefData{ChatID: chatID}); err != nil {
		s.log.Debug("Dropped %s: %v", eventType, err)
	}
}

// Send shows text immediately as a provisional message and sends it. The
// returned provisional copy is replaced once the server echoes the message.
func (s *Session) Send(text string) (*entity.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.BadRequest("Message cannot be empty", nil)
	}

	chatID, err := s.openChat()
	if err != nil {
		return nil, err
	}

	provisional := entity.NewMessage(entity.TempIDPrefix+uuid.New().String(), chatID, s.cfg.UserID, text, entity.MessageTypeText, time.Now())

	s.mutex.Lock()
	s.messages.AddProvisional(provisional)
	s.mutex.Unlock()

	s.typing.Reset(true)

	if err := s.emit(ws.EventSendMessage, ws.SendMessageData{
		ChatID:  chatID,
		Message: text,
		Type:    entity.MessageTypeText,
		TempID:  provisional.ID,
	}); err != nil {
		return provisional, err
	}
	return provisional, nil
}

// Edit asks the server to replace the content of one of the user's messages.
func (s *Session) Edit(messageID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.BadRequest("Message cannot be empty", nil)
	}

	chatID, err := s.openChat()
	if err != nil {
		return err
	}

	return s.emit(ws.EventEditMessage, ws.EditMessageData{
		MessageID:  messageID,
		NewMessage: text,
		ChatID:     chatID,
	})
}

// Delete removes the message over HTTP, then tells the room.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	chatID, err := s.openChat()
	if err != nil {
		return err
	}

	if err := s.api.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	s.mutex.Lock()
	s.messages.Remove(messageID)
	s.mutex.Unlock()

	return s.emit(ws.EventDeleteMessage, ws.DeleteMessageData{
		MessageID: messageID,
		ChatID:    chatID,
	})
}

// MarkRead records read receipts for ids, or for every unread message when none are given.
func (s *Session) MarkRead(ids ...string) error {
	chatID, err := s.openChat()
	if err != nil {
		return err
	}

	s.mutex.Lock()
	if len(ids) == 0 {
		ids = s.messages.Unread(s.cfg.UserID)
	}
	s.messages.MarkRead(s.cfg.UserID, ids)
	s.mutex.Unlock()

	for len(ids) > 0 {
		n := len(ids)
		if n > markReadBatch {
			n = markReadBatch
		}
		if err := s.emit(ws.EventMarkMessagesRead, ws.MarkReadData{
			ChatID:     chatID,
			MessageIDs: ids[:n],
		}); err != nil {
			return err
		}
		ids = ids[n:]
	}
	return nil
}

// Keystroke feeds the typing indicator.
func (s *Session) Keystroke() {
	if _, err := s.openChat(); err != nil {
		return
	}
	s.typing.Keystroke()
}

func (s *Session) Messages() []*entity.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.messages.Snapshot()
}

func (s *Session) Chat() *entity.Chat {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.chat == nil {
		return nil
	}
	c := *s.chat
	return &c
}

func (s *Session) Participants() []entity.ParticipantDetail {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]entity.ParticipantDetail(nil), s.participants...)
}

// Close disconnects and stops all callbacks. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.typing.Reset(false)

		s.mutex.Lock()
		s.state = stateClosed
		conn := s.conn
		s.mutex.Unlock()

		close(s.done)
		if conn != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		}
		s.wg.Wait()
	})
	return nil
}
