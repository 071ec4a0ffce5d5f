package chat

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/metrics"
	"github.com/tripmate-io/tripmate/internal/repositories"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

// MaxMessageLength is the maximum chat message length in characters.
const MaxMessageLength = 5000

// teardownTimeout bounds the presence-offline broadcast and group leave that
// run when an active session closes.
const teardownTimeout = 5 * time.Second

// State is the lifecycle state of a Session.
type State int

const (
	StateConnecting State = iota
	StateAuthorized
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthorized:
		return "AUTHORIZED"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Conn is the session's own connection. Replies such as error frames go
// only here. *websocket.Client implements it.
type Conn interface {
	websocket.Member
	SendFrame(frame any) error
}

// Deps groups the collaborators shared by every session.
type Deps struct {
	Fanout        websocket.Fanout
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	Presence      *Presence
	Logger        *zap.Logger
}

// chatMessageInput is validated after trimming. validator counts string
// length in runes.
type chatMessageInput struct {
	Content string `validate:"required,max=5000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Session is the per-connection state machine of the chat channel.
//
// A session is driven from a single goroutine (the connection's read loop),
// so inbound events are handled strictly in arrival order. The mutex only
// guards state for concurrent readers such as Close from the hub.
type Session struct {
	deps           Deps
	conn           Conn
	conversationID int64
	group          string

	mu    sync.Mutex
	state State
	user  *db.User

	logger *zap.Logger
}

// NewSession creates a session in StateConnecting.
func NewSession(deps Deps, conn Conn, conversationID int64) *Session {
	return &Session{
		deps:           deps,
		conn:           conn,
		conversationID: conversationID,
		group:          websocket.ChatGroup(conversationID),
		state:          StateConnecting,
		logger: deps.Logger.Named("session").With(
			zap.String("conn_id", conn.ID()),
			zap.Int64("conversation_id", conversationID),
		),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Group returns the chat group name of the session.
func (s *Session) Group() string { return s.group }

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, s.state)
	}
	s.state = to
	return nil
}

// Authorize records the user resolved by the handshake.
func (s *Session) Authorize(user *db.User) error {
	if err := s.transition(StateConnecting, StateAuthorized); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.logger = s.logger.With(zap.String("user_id", user.ID.String()))
	return nil
}

// Activate joins the conversation group and announces the user online. A
// join failure closes the session without teardown and is returned as a
// *RejectError.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthorized {
		current := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, StateAuthorized, StateActive, current)
	}
	s.mu.Unlock()

	if err := s.deps.Fanout.Join(ctx, s.group, s.conn); err != nil {
		_ = s.transition(StateAuthorized, StateClosed)
		return JoinFailed(err)
	}
	if err := s.transition(StateAuthorized, StateActive); err != nil {
		s.deps.Fanout.LeaveAll(s.conn.ID())
		return err
	}

	metrics.ActiveConnections.WithLabelValues("chat").Inc()
	s.deps.Presence.Online(ctx, s.group, s.summary(), s.conn.ID())
	s.logger.Info("chat session active")
	return nil
}

// Close moves the session to StateClosed. If the session was active it
// announces the user offline and leaves the group, bounded by a timeout and
// independent of the connection context, which is usually already done.
// Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	prev := s.state
	s.state = StateClosed
	s.mu.Unlock()

	if prev != StateActive {
		return
	}

	metrics.ActiveConnections.WithLabelValues("chat").Dec()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	s.deps.Presence.Offline(ctx, s.group, s.summary(), s.conn.ID())
	if err := s.deps.Fanout.Leave(ctx, s.group, s.conn.ID()); err != nil {
		s.logger.Warn("leaving chat group", zap.Error(err))
	}
	s.logger.Info("chat session closed")
}

func (s *Session) summary() websocket.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return websocket.UserSummary{ID: s.user.ID, DisplayName: s.user.DisplayName}
}

// Handle processes one inbound frame. It never closes the connection: every
// failure, including a panic, becomes an error frame to this connection.
func (s *Session) Handle(ctx context.Context, data []byte) {
	if s.State() != StateActive {
		s.logger.Debug("dropping frame for inactive session", zap.Stringer("state", s.State()))
		return
	}

	if err := s.dispatch(ctx, data); err != nil {
		s.reply(s.errorFrame(err))
	}
}

func (s *Session) dispatch(ctx context.Context, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in chat event handler",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = errHandlerPanic
		}
	}()

	ev, err := websocket.DecodeInbound(data)
	if err != nil {
		return err
	}
	metrics.FramesReceived.WithLabelValues(string(ev.Type())).Inc()

	switch ev := ev.(type) {
	case websocket.ChatMessageEvent:
		return s.handleChatMessage(ctx, ev)
	case websocket.TypingEvent:
		return s.handleTyping(ctx, ev)
	case websocket.ReadReceiptEvent:
		return s.handleReadReceipt(ctx, ev)
	case websocket.PendingCountEvent:
		return fmt.Errorf("%w: %q", ErrUnsupportedEvent, ev.Type())
	default:
		return fmt.Errorf("%w: %q", websocket.ErrUnknownEventType, ev.Type())
	}
}

func (s *Session) handleChatMessage(ctx context.Context, ev websocket.ChatMessageEvent) error {
	content := strings.TrimSpace(ev.Message)
	if err := validate.Struct(chatMessageInput{Content: content}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return ErrMessageTooLong
		}
		return ErrEmptyMessage
	}

	if err := s.checkParticipant(ctx); err != nil {
		return err
	}

	user := s.summary()
	msg := &db.Message{
		ConversationID: s.conversationID,
		SenderID:       user.ID,
		Content:        content,
	}
	if err := s.deps.Messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("saving message: %w", err)
	}

	frame := websocket.NewChatMessageFrame(msg.ID, msg.Content, user, msg.CreatedAt)
	return s.broadcastFailed(s.deps.Fanout.Send(ctx, s.group, frame), "message")
}

func (s *Session) handleTyping(ctx context.Context, ev websocket.TypingEvent) error {
	if err := s.checkParticipant(ctx); err != nil {
		return err
	}
	frame := websocket.NewTypingFrame(s.summary(), ev.IsTyping)
	return s.broadcastFailed(s.deps.Fanout.SendExcept(ctx, s.group, frame, s.conn.ID()), "typing")
}

func (s *Session) handleReadReceipt(ctx context.Context, ev websocket.ReadReceiptEvent) error {
	if err := s.checkParticipant(ctx); err != nil {
		return err
	}

	msg, err := s.deps.Messages.GetByID(ctx, ev.MessageID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && msg.ConversationID != s.conversationID) {
		s.logger.Debug("read receipt for unknown message", zap.Int64("message_id", ev.MessageID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading message %d: %w", ev.MessageID, err)
	}

	reader := s.summary().ID
	if msg.SenderID == reader {
		return nil
	}

	marked, err := s.deps.Messages.MarkRead(ctx, msg.ID, reader)
	if err != nil {
		return fmt.Errorf("marking message %d read: %w", msg.ID, err)
	}
	if !marked {
		s.logger.Debug("read receipt matched no message", zap.Int64("message_id", msg.ID))
		return nil
	}

	return s.broadcastFailed(s.deps.Fanout.Send(ctx, s.group, websocket.NewReadReceiptFrame(msg.ID, reader)), "read receipt")
}

// broadcastFailed wraps a fan-out error for the error frame translator. A
// relay failure after local delivery is only logged: the room already has
// the frame and the sender must not be told to retry.
func (s *Session) broadcastFailed(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, websocket.ErrRelayFailed):
		s.logger.Warn("relaying "+what+" to other instances", zap.Error(err))
		return nil
	default:
		return fmt.Errorf("broadcasting %s: %w", what, err)
	}
}

// checkParticipant re-reads membership, which can change after connect.
func (s *Session) checkParticipant(ctx context.Context) error {
	ok, err := s.deps.Conversations.IsParticipant(ctx, s.conversationID, s.summary().ID)
	if err != nil {
		return fmt.Errorf("checking participation: %w", err)
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

// errorFrame maps a handler error to the frame sent back to the client.
// Infrastructure errors are logged in full and reported generically.
func (s *Session) errorFrame(err error) websocket.ErrorFrame {
	var kind, message string
	switch {
	case errors.Is(err, websocket.ErrMalformedFrame):
		kind, message = "malformed", "invalid frame: "+strings.TrimPrefix(err.Error(), websocket.ErrMalformedFrame.Error()+": ")
	case errors.Is(err, websocket.ErrUnknownEventType), errors.Is(err, ErrUnsupportedEvent):
		kind, message = "unknown_type", "unknown event type: "+lastSegment(err)
	case errors.Is(err, ErrEmptyMessage):
		kind, message = "validation", "message cannot be empty"
	case errors.Is(err, ErrMessageTooLong):
		kind, message = "validation", fmt.Sprintf("message cannot exceed %d characters", MaxMessageLength)
	case errors.Is(err, ErrNotParticipant):
		kind, message = "not_participant", "you are not a participant of this conversation"
	case errors.Is(err, errHandlerPanic):
		kind, message = "internal", "internal error"
	default:
		s.logger.Error("chat event failed", zap.Error(err))
		kind, message = "internal", "failed to process event"
	}

	metrics.FrameErrors.WithLabelValues(kind).Inc()
	return websocket.NewErrorFrame(message)
}

func (s *Session) reply(frame any) {
	if err := s.conn.SendFrame(frame); err != nil {
		s.logger.Warn("replying to client", zap.Error(err))
	}
}

// lastSegment returns the detail after the final ": " of a wrapped error.
func lastSegment(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
