package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/repositories"
)

// ConversationHandler creates conversations and serves their history.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	logger        *zap.Logger
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		logger:        logger.Named("conversation_handler"),
	}
}

type conversationResponse struct {
	ID             int64       `json:"id"`
	Title          string      `json:"title"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}

type messageResponse struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Message        string     `json:"message"`
	IsRead         bool       `json:"is_read"`
	EditedAt       *time.Time `json:"edited_at"`
	Timestamp      time.Time  `json:"timestamp"`
}

func messageToResponse(m *db.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Message:        m.Content,
		IsRead:         m.IsRead,
		EditedAt:       m.EditedAt,
		Timestamp:      m.CreatedAt.UTC(),
	}
}

type listMessagesResponse struct {
	Items []messageResponse `json:"items"`
	Total int64             `json:"total"`
}

// createConversationRequest is the JSON body expected by
// POST /api/v1/conversations. The caller is always added as a participant.
type createConversationRequest struct {
	Title          string      `json:"title" validate:"max=200"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=1,max=50"`
}

// Create handles POST /api/v1/conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	participants := lo.Uniq(append([]uuid.UUID{userID}, req.ParticipantIDs...))
	if len(participants) < 2 {
		ErrUnprocessable(w, "a conversation needs at least one other participant")
		return
	}

	found, err := h.users.ListByIDs(r.Context(), participants)
	if err != nil {
		h.logger.Error("failed to load participants", zap.Error(err))
		ErrInternal(w)
		return
	}
	if len(found) != len(participants) {
		known := lo.Map(found, func(u db.User, _ int) uuid.UUID { return u.ID })
		missing, _ := lo.Difference(participants, known)
		ErrUnprocessable(w, "unknown participant: "+missing[0].String())
		return
	}

	conv := &db.Conversation{Title: req.Title}
	if err := h.conversations.Create(r.Context(), conv, participants); err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		ErrInternal(w)
		return
	}

	h.logger.Info("conversation created",
		zap.Int64("conversation_id", conv.ID),
		zap.String("created_by", userID.String()),
		zap.Int("participants", len(participants)),
	)

	Created(w, conversationResponse{
		ID:             conv.ID,
		Title:          conv.Title,
		ParticipantIDs: participants,
		CreatedAt:      conv.CreatedAt.UTC(),
	})
}

// ListMessages handles GET /api/v1/conversations/{id}/messages.
// Only participants may read the history; others get 404 so conversation
// ids are not disclosed.
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	conversationID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	member, err := h.conversations.IsParticipant(r.Context(), conversationID, userID)
	if err != nil {
		h.logger.Error("failed to check participation", zap.Error(err))
		ErrInternal(w)
		return
	}
	if !member {
		ErrNotFound(w)
		return
	}

	msgs, total, err := h.messages.ListByConversation(r.Context(), conversationID, paginationOpts(r))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to list messages", zap.Error(err))
		ErrInternal(w)
		return
	}

	items := make([]messageResponse, len(msgs))
	for i := range msgs {
		items[i] = messageToResponse(&msgs[i])
	}
	Ok(w, listMessagesResponse{Items: items, Total: total})
}
