// Package social implements the friend request and trip share commands.
// Each command persists its state change first and then calls the
// notification dispatcher explicitly; notification failures never fail the
// command.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/repositories"
)

var responseStatuses = []string{db.StatusAccepted, db.StatusDeclined}

// Config holds the dependencies of a Service.
type Config struct {
	Users          repositories.UserRepository
	Trips          repositories.TripRepository
	FriendRequests repositories.FriendRequestRepository
	TripShares     repositories.TripShareRepository
	Dispatcher     notification.Dispatcher
	Logger         *zap.Logger
}

// Service runs friend request and trip share commands.
type Service struct {
	users          repositories.UserRepository
	trips          repositories.TripRepository
	friendRequests repositories.FriendRequestRepository
	tripShares     repositories.TripShareRepository
	dispatcher     notification.Dispatcher
	logger         *zap.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	return &Service{
		users:          cfg.Users,
		trips:          cfg.Trips,
		friendRequests: cfg.FriendRequests,
		tripShares:     cfg.TripShares,
		dispatcher:     cfg.Dispatcher,
		logger:         cfg.Logger.Named("social"),
	}
}

// SendFriendRequest creates a pending request from senderID to receiverID and
// notifies the receiver.
func (s *Service) SendFriendRequest(ctx context.Context, senderID, receiverID uuid.UUID, message string) (*db.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrSelfRequest
	}

	sender, err := s.user(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.user(ctx, receiverID); err != nil {
		return nil, err
	}

	pending, err := s.friendRequests.ExistsPendingBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("social: checking pending requests: %w", err)
	}
	if pending {
		return nil, ErrAlreadyPending
	}

	req := &db.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    strings.TrimSpace(message),
		Status:     db.StatusPending,
	}
	if err := s.friendRequests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("social: creating friend request: %w", err)
	}

	s.logger.Info("friend request created",
		zap.String("request_id", req.ID.String()),
		zap.String("sender_id", senderID.String()),
		zap.String("receiver_id", receiverID.String()),
	)
	s.dispatcher.FriendRequestCreated(ctx, req, sender)
	return req, nil
}

// RespondFriendRequest records the receiver's answer and notifies the sender.
func (s *Service) RespondFriendRequest(ctx context.Context, requestID, responderID uuid.UUID, status string) (*db.FriendRequest, error) {
	if !lo.Contains(responseStatuses, status) {
		return nil, ErrInvalidStatus
	}

	req, err := s.friendRequests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("social: loading friend request: %w", err)
	}
	if req.ReceiverID != responderID {
		return nil, ErrNotRecipient
	}
	if req.Status != db.StatusPending {
		return nil, ErrAlreadyAnswered
	}

	responder, err := s.user(ctx, responderID)
	if err != nil {
		return nil, err
	}

	if err := s.friendRequests.UpdateStatus(ctx, requestID, status); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Answered concurrently.
			return nil, ErrAlreadyAnswered
		}
		return nil, fmt.Errorf("social: updating friend request: %w", err)
	}

	updated, err := s.friendRequests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("social: reloading friend request: %w", err)
	}

	s.logger.Info("friend request answered",
		zap.String("request_id", requestID.String()),
		zap.String("status", status),
	)
	s.dispatcher.FriendRequestResponded(ctx, updated, responder)
	return updated, nil
}

// CreateTrip records a trip owned by ownerID.
func (s *Service) CreateTrip(ctx context.Context, ownerID uuid.UUID, name, destination string) (*db.Trip, error) {
	trip := &db.Trip{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Destination: strings.TrimSpace(destination),
	}
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, fmt.Errorf("social: creating trip: %w", err)
	}
	return trip, nil
}

// ShareTrip offers a trip owned by sharedByID to sharedWithID and notifies
// the recipient.
func (s *Service) ShareTrip(ctx context.Context, tripID, sharedByID, sharedWithID uuid.UUID, message string) (*db.TripShare, error) {
	if sharedByID == sharedWithID {
		return nil, ErrSelfRequest
	}

	trip, err := s.trip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.OwnerID != sharedByID {
		return nil, ErrNotTripOwner
	}

	sharedBy, err := s.user(ctx, sharedByID)
	if err != nil {
		return nil, err
	}
	if _, err := s.user(ctx, sharedWithID); err != nil {
		return nil, err
	}

	pending, err := s.tripShares.ExistsPending(ctx, tripID, sharedWithID)
	if err != nil {
		return nil, fmt.Errorf("social: checking pending shares: %w", err)
	}
	if pending {
		return nil, ErrAlreadyPending
	}

	share := &db.TripShare{
		TripID:       tripID,
		SharedByID:   sharedByID,
		SharedWithID: sharedWithID,
		Message:      strings.TrimSpace(message),
		Status:       db.StatusPending,
	}
	if err := s.tripShares.Create(ctx, share); err != nil {
		return nil, fmt.Errorf("social: creating trip share: %w", err)
	}

	s.logger.Info("trip shared",
		zap.String("share_id", share.ID.String()),
		zap.String("trip_id", tripID.String()),
		zap.String("shared_with", sharedWithID.String()),
	)
	s.dispatcher.TripShareCreated(ctx, share, trip, sharedBy)
	return share, nil
}

// RespondTripShare records the recipient's answer and notifies the sharer.
func (s *Service) RespondTripShare(ctx context.Context, shareID, responderID uuid.UUID, status string) (*db.TripShare, error) {
	if !lo.Contains(responseStatuses, status) {
		return nil, ErrInvalidStatus
	}

	share, err := s.tripShares.GetByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("social: loading trip share: %w", err)
	}
	if share.SharedWithID != responderID {
		return nil, ErrNotRecipient
	}
	if share.Status != db.StatusPending {
		return nil, ErrAlreadyAnswered
	}

	trip, err := s.trip(ctx, share.TripID)
	if err != nil {
		return nil, err
	}
	responder, err := s.user(ctx, responderID)
	if err != nil {
		return nil, err
	}

	if err := s.tripShares.UpdateStatus(ctx, shareID, status); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAlreadyAnswered
		}
		return nil, fmt.Errorf("social: updating trip share: %w", err)
	}

	updated, err := s.tripShares.GetByID(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("social: reloading trip share: %w", err)
	}

	s.logger.Info("trip share answered",
		zap.String("share_id", shareID.String()),
		zap.String("status", status),
	)
	s.dispatcher.TripShareResponded(ctx, updated, trip, responder)
	return updated, nil
}

func (s *Service) user(ctx context.Context, id uuid.UUID) (*db.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("social: loading user: %w", err)
	}
	return u, nil
}

func (s *Service) trip(ctx context.Context, id uuid.UUID) (*db.Trip, error) {
	t, err := s.trips.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, fmt.Errorf("social: loading trip: %w", err)
	}
	return t, nil
}
