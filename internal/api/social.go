package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/social"
)

// SocialHandler exposes the friend request and trip share commands. The
// notifications they trigger are pushed by social.Service itself.
type SocialHandler struct {
	svc     *social.Service
	pending *notification.PendingCounter
	logger  *zap.Logger
}

// NewSocialHandler creates a new SocialHandler.
func NewSocialHandler(svc *social.Service, pending *notification.PendingCounter, logger *zap.Logger) *SocialHandler {
	return &SocialHandler{
		svc:     svc,
		pending: pending,
		logger:  logger.Named("social_handler"),
	}
}

// -----------------------------------------------------------------------------
// Response types
// -----------------------------------------------------------------------------

type friendRequestResponse struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func friendRequestToResponse(fr *db.FriendRequest) friendRequestResponse {
	return friendRequestResponse{
		ID:         fr.ID,
		SenderID:   fr.SenderID,
		ReceiverID: fr.ReceiverID,
		Message:    fr.Message,
		Status:     fr.Status,
		CreatedAt:  fr.CreatedAt.UTC(),
	}
}

type tripResponse struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

type tripShareResponse struct {
	ID           uuid.UUID `json:"id"`
	TripID       uuid.UUID `json:"trip_id"`
	SharedByID   uuid.UUID `json:"shared_by_id"`
	SharedWithID uuid.UUID `json:"shared_with_id"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func tripShareToResponse(s *db.TripShare) tripShareResponse {
	return tripShareResponse{
		ID:           s.ID,
		TripID:       s.TripID,
		SharedByID:   s.SharedByID,
		SharedWithID: s.SharedWithID,
		Message:      s.Message,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt.UTC(),
	}
}

// -----------------------------------------------------------------------------
// Request types
// -----------------------------------------------------------------------------

type sendFriendRequestRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" validate:"required"`
	Message    string    `json:"message" validate:"max=500"`
}

type respondRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted declined"`
}

type createTripRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Destination string `json:"destination" validate:"max=200"`
}

type shareTripRequest struct {
	TripID       uuid.UUID `json:"trip_id" validate:"required"`
	SharedWithID uuid.UUID `json:"shared_with_id" validate:"required"`
	Message      string    `json:"message" validate:"max=500"`
}

// -----------------------------------------------------------------------------
// Friend requests
// -----------------------------------------------------------------------------

// SendFriendRequest handles POST /api/v1/friend-requests.
func (h *SocialHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req sendFriendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fr, err := h.svc.SendFriendRequest(r.Context(), userID, req.ReceiverID, req.Message)
	if err != nil {
		h.commandFailed(w, err)
		return
	}
	Created(w, friendRequestToResponse(fr))
}

// RespondFriendRequest handles POST /api/v1/friend-requests/{id}/respond.
func (h *SocialHandler) RespondFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fr, err := h.svc.RespondFriendRequest(r.Context(), id, userID, req.Status)
	if err != nil {
		h.commandFailed(w, err)
		return
	}
	Ok(w, friendRequestToResponse(fr))
}

// -----------------------------------------------------------------------------
// Trips
// -----------------------------------------------------------------------------

// CreateTrip handles POST /api/v1/trips.
func (h *SocialHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req createTripRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		ErrUnprocessable(w, "name cannot be empty")
		return
	}

	trip, err := h.svc.CreateTrip(r.Context(), userID, req.Name, req.Destination)
	if err != nil {
		h.commandFailed(w, err)
		return
	}
	Created(w, tripResponse{
		ID:          trip.ID,
		OwnerID:     trip.OwnerID,
		Name:        trip.Name,
		Destination: trip.Destination,
		CreatedAt:   trip.CreatedAt.UTC(),
	})
}

// ShareTrip handles POST /api/v1/trip-shares.
func (h *SocialHandler) ShareTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req shareTripRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	share, err := h.svc.ShareTrip(r.Context(), req.TripID, userID, req.SharedWithID, req.Message)
	if err != nil {
		h.commandFailed(w, err)
		return
	}
	Created(w, tripShareToResponse(share))
}

// RespondTripShare handles POST /api/v1/trip-shares/{id}/respond.
func (h *SocialHandler) RespondTripShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	share, err := h.svc.RespondTripShare(r.Context(), id, userID, req.Status)
	if err != nil {
		h.commandFailed(w, err)
		return
	}
	Ok(w, tripShareToResponse(share))
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

// PendingCount handles GET /api/v1/notifications/pending-count. It returns
// the same counters the notification channel sends on connect.
func (h *SocialHandler) PendingCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	count, err := h.pending.Count(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to count pending items", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, count)
}

// commandFailed maps social errors to HTTP statuses.
func (h *SocialHandler) commandFailed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, social.ErrUserNotFound),
		errors.Is(err, social.ErrRequestNotFound),
		errors.Is(err, social.ErrTripNotFound):
		ErrNotFound(w)
	case errors.Is(err, social.ErrNotRecipient), errors.Is(err, social.ErrNotTripOwner):
		ErrForbidden(w, strings.TrimPrefix(err.Error(), "social: "))
	case errors.Is(err, social.ErrAlreadyPending), errors.Is(err, social.ErrAlreadyAnswered):
		ErrConflict(w, strings.TrimPrefix(err.Error(), "social: "))
	case errors.Is(err, social.ErrSelfRequest), errors.Is(err, social.ErrInvalidStatus):
		ErrUnprocessable(w, strings.TrimPrefix(err.Error(), "social: "))
	default:
		h.logger.Error("social command failed", zap.Error(err))
		ErrInternal(w)
	}
}
