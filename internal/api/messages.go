package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/repositories"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

// MessageHandler lets the sender of a chat message edit or delete it. Both
// changes are broadcast to the conversation's chat group.
type MessageHandler struct {
	messages repositories.MessageRepository
	fanout   websocket.Fanout
	logger   *zap.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, fanout websocket.Fanout, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		fanout:   fanout,
		logger:   logger.Named("message_handler"),
	}
}

type updateMessageRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

// Update handles PATCH /api/v1/messages/{id}.
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req updateMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Message)
	if content == "" {
		ErrUnprocessable(w, "message cannot be empty")
		return
	}

	msg, err := h.messages.GetByID(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, err)
		return
	}
	if msg.SenderID != userID {
		ErrForbidden(w, "only the sender can edit this message")
		return
	}

	editedAt := time.Now().UTC()
	if err := h.messages.UpdateContent(r.Context(), id, userID, content, editedAt); err != nil {
		h.lookupFailed(w, err)
		return
	}
	msg.Content = content
	msg.EditedAt = &editedAt

	frame := websocket.NewMessageEditedFrame(msg.ID, content, editedAt)
	if err := h.fanout.Send(r.Context(), websocket.ChatGroup(msg.ConversationID), frame); err != nil {
		// The edit is committed; clients catch up from the history endpoint.
		h.logger.Warn("failed to broadcast message edit", zap.Int64("message_id", id), zap.Error(err))
	}

	Ok(w, messageToResponse(msg))
}

// Delete handles DELETE /api/v1/messages/{id}.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	msg, err := h.messages.GetByID(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, err)
		return
	}
	if msg.SenderID != userID {
		ErrForbidden(w, "only the sender can delete this message")
		return
	}

	if err := h.messages.Delete(r.Context(), id, userID); err != nil {
		h.lookupFailed(w, err)
		return
	}

	if err := h.fanout.Send(r.Context(), websocket.ChatGroup(msg.ConversationID), websocket.NewMessageDeletedFrame(id)); err != nil {
		h.logger.Warn("failed to broadcast message delete", zap.Int64("message_id", id), zap.Error(err))
	}

	NoContent(w)
}

func (h *MessageHandler) lookupFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, repositories.ErrNotFound) {
		ErrNotFound(w)
		return
	}
	h.logger.Error("message operation failed", zap.Error(err))
	ErrInternal(w)
}
