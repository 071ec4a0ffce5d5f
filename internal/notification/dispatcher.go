// Package notification pushes friend-request and trip-share events to the
// personal notification group of the affected user.
//
// Delivery is at most once and best effort: a user with no open notification
// connection simply misses the event and reconciles through the pending
// count on the next connect.
package notification

//go:generate go run go.uber.org/mock/mockgen -source=dispatcher.go -destination=../mocks/dispatcher.go -package=mocks Dispatcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/metrics"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

// Dispatcher is the single entry point for notification frames. Callers
// (the social service) invoke the typed method matching the state change they
// just persisted. No method blocks on delivery or returns an error.
type Dispatcher interface {
	// FriendRequestCreated notifies the receiver of a new pending request.
	FriendRequestCreated(ctx context.Context, req *db.FriendRequest, sender *db.User)

	// FriendRequestResponded notifies the original sender of the answer.
	FriendRequestResponded(ctx context.Context, req *db.FriendRequest, responder *db.User)

	// TripShareCreated notifies the user the trip was shared with.
	TripShareCreated(ctx context.Context, share *db.TripShare, trip *db.Trip, sharedBy *db.User)

	// TripShareResponded notifies the user who shared the trip.
	TripShareResponded(ctx context.Context, share *db.TripShare, trip *db.Trip, responder *db.User)
}

type dispatcher struct {
	fanout websocket.Fanout
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher sending through fanout.
func NewDispatcher(fanout websocket.Fanout, logger *zap.Logger) Dispatcher {
	return &dispatcher{fanout: fanout, logger: logger.Named("notification")}
}

func summary(u *db.User) websocket.UserSummary {
	return websocket.UserSummary{ID: u.ID, DisplayName: u.DisplayName}
}

func (d *dispatcher) FriendRequestCreated(ctx context.Context, req *db.FriendRequest, sender *db.User) {
	d.send(ctx, websocket.NotificationGroup(req.ReceiverID), EventFriendRequest, FriendRequestFrame{
		Type:      EventFriendRequest,
		RequestID: req.ID,
		Sender:    summary(sender),
		Message:   req.Message,
		CreatedAt: req.CreatedAt.UTC(),
	})
}

func (d *dispatcher) FriendRequestResponded(ctx context.Context, req *db.FriendRequest, responder *db.User) {
	d.send(ctx, websocket.NotificationGroup(req.SenderID), EventFriendRequestResponse, FriendRequestResponseFrame{
		Type:      EventFriendRequestResponse,
		RequestID: req.ID,
		Responder: summary(responder),
		Status:    req.Status,
		UpdatedAt: req.UpdatedAt.UTC(),
	})
}

func (d *dispatcher) TripShareCreated(ctx context.Context, share *db.TripShare, trip *db.Trip, sharedBy *db.User) {
	d.send(ctx, websocket.NotificationGroup(share.SharedWithID), EventTripShare, TripShareFrame{
		Type:      EventTripShare,
		ShareID:   share.ID,
		Trip:      TripSummary{ID: trip.ID, Name: trip.Name},
		SharedBy:  summary(sharedBy),
		Message:   share.Message,
		CreatedAt: share.CreatedAt.UTC(),
	})
}

func (d *dispatcher) TripShareResponded(ctx context.Context, share *db.TripShare, trip *db.Trip, responder *db.User) {
	d.send(ctx, websocket.NotificationGroup(share.SharedByID), EventTripShareResponse, TripShareResponseFrame{
		Type:      EventTripShareResponse,
		ShareID:   share.ID,
		Trip:      TripSummary{ID: trip.ID, Name: trip.Name},
		Responder: summary(responder),
		Status:    share.Status,
		UpdatedAt: share.UpdatedAt.UTC(),
	})
}

// send hands frame to the hub. Errors are logged and counted, never returned.
func (d *dispatcher) send(ctx context.Context, group string, kind websocket.EventType, frame any) {
	if err := d.fanout.Send(ctx, group, frame); err != nil {
		metrics.NotificationsDropped.WithLabelValues(string(kind)).Inc()
		d.logger.Warn("notification dropped",
			zap.String("group", group),
			zap.String("type", string(kind)),
			zap.Error(err),
		)
		return
	}
	metrics.NotificationsSent.WithLabelValues(string(kind)).Inc()
	d.logger.Debug("notification sent",
		zap.String("group", group),
		zap.String("type", string(kind)),
	)
}
