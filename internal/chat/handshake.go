// Package chat implements the conversation channel: the connect-time
// handshake, the per-connection session state machine and presence
// announcements.
package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/auth"
	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/metrics"
	"github.com/tripmate-io/tripmate/internal/repositories"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

// Rejection reasons, used as metric labels and close frame reasons.
const (
	ReasonNoToken        = "no_token"
	ReasonTokenExpired   = "token_expired"
	ReasonTokenInvalid   = "token_invalid"
	ReasonUserNotFound   = "user_not_found"
	ReasonNotParticipant = "not_participant"
	ReasonJoinFailed     = "join_failed"
)

// RejectError terminates a connection attempt with a WebSocket close code.
type RejectError struct {
	Code   int
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("chat: connection rejected (%d %s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("chat: connection rejected (%d %s): %v", e.Code, e.Reason, e.Err)
}

func (e *RejectError) Unwrap() error { return e.Err }

func reject(code int, reason string, err error) *RejectError {
	metrics.HandshakeRejections.WithLabelValues(reason).Inc()
	return &RejectError{Code: code, Reason: reason, Err: err}
}

// TokenResolver turns a bearer token into a user. *auth.AuthService
// implements it.
type TokenResolver interface {
	ResolveToken(ctx context.Context, raw string) (*db.User, error)
}

// Handshake authenticates and authorizes a connection attempt.
type Handshake struct {
	tokens        TokenResolver
	conversations repositories.ConversationRepository
	logger        *zap.Logger
}

// NewHandshake creates a Handshake.
func NewHandshake(tokens TokenResolver, conversations repositories.ConversationRepository, logger *zap.Logger) *Handshake {
	return &Handshake{tokens: tokens, conversations: conversations, logger: logger.Named("handshake")}
}

// AuthorizeUser resolves rawToken to a user. Used by the notification
// channel, which has no conversation scope. Every failure is a *RejectError.
func (h *Handshake) AuthorizeUser(ctx context.Context, rawToken string) (*db.User, error) {
	user, err := h.tokens.ResolveToken(ctx, rawToken)
	if err == nil {
		return user, nil
	}

	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		return nil, reject(websocket.CloseNoToken, ReasonNoToken, err)
	case errors.Is(err, auth.ErrTokenExpired):
		return nil, reject(websocket.CloseTokenExpired, ReasonTokenExpired, err)
	case errors.Is(err, auth.ErrTokenInvalid):
		return nil, reject(websocket.CloseTokenInvalid, ReasonTokenInvalid, err)
	case errors.Is(err, auth.ErrUserNotFound):
		return nil, reject(websocket.CloseUserNotFound, ReasonUserNotFound, err)
	default:
		// The user cannot be confirmed when the store is unreachable.
		h.logger.Error("resolving token subject", zap.Error(err))
		return nil, reject(websocket.CloseUserNotFound, ReasonUserNotFound, err)
	}
}

// Authorize resolves rawToken and checks that the user participates in the
// conversation. An unknown conversation is reported as not a participant so
// the close code does not reveal which conversation ids exist.
func (h *Handshake) Authorize(ctx context.Context, rawToken string, conversationID int64) (*db.User, error) {
	user, err := h.AuthorizeUser(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	ok, err := h.conversations.IsParticipant(ctx, conversationID, user.ID)
	if err != nil {
		h.logger.Error("checking participation",
			zap.Int64("conversation_id", conversationID),
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, reject(websocket.CloseNotParticipant, ReasonNotParticipant, err)
	}
	if !ok {
		return nil, reject(websocket.CloseNotParticipant, ReasonNotParticipant, ErrNotParticipant)
	}
	return user, nil
}

// JoinFailed wraps a group registration error as a rejection.
func JoinFailed(err error) *RejectError {
	return reject(websocket.CloseJoinFailed, ReasonJoinFailed, err)
}
