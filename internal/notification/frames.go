package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/tripmate-io/tripmate/internal/websocket"
)

// Frame types pushed on the personal notification channel.
const (
	EventFriendRequest         websocket.EventType = "friend_request"
	EventFriendRequestResponse websocket.EventType = "friend_request_response"
	EventTripShare             websocket.EventType = "trip_share"
	EventTripShareResponse     websocket.EventType = "trip_share_response"
)

// TripSummary identifies a trip inside notification frames.
type TripSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// FriendRequestFrame is pushed to the receiver of a new friend request.
type FriendRequestFrame struct {
	Type      websocket.EventType   `json:"type"`
	RequestID uuid.UUID             `json:"request_id"`
	Sender    websocket.UserSummary `json:"sender"`
	Message   string                `json:"message"`
	CreatedAt time.Time             `json:"created_at"`
}

// FriendRequestResponseFrame is pushed to the sender once the receiver
// accepts or declines.
type FriendRequestResponseFrame struct {
	Type      websocket.EventType   `json:"type"`
	RequestID uuid.UUID             `json:"request_id"`
	Responder websocket.UserSummary `json:"responder"`
	Status    string                `json:"status"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// TripShareFrame is pushed to the user a trip was shared with.
type TripShareFrame struct {
	Type      websocket.EventType   `json:"type"`
	ShareID   uuid.UUID             `json:"share_id"`
	Trip      TripSummary           `json:"trip"`
	SharedBy  websocket.UserSummary `json:"shared_by"`
	Message   string                `json:"message"`
	CreatedAt time.Time             `json:"created_at"`
}

// TripShareResponseFrame is pushed to the user who shared the trip.
type TripShareResponseFrame struct {
	Type      websocket.EventType   `json:"type"`
	ShareID   uuid.UUID             `json:"share_id"`
	Trip      TripSummary           `json:"trip"`
	Responder websocket.UserSummary `json:"responder"`
	Status    string                `json:"status"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// PendingCount is the number of requests waiting for the user's answer.
type PendingCount struct {
	FriendRequests int64 `json:"friend_requests"`
	TripShares     int64 `json:"trip_shares"`
	Total          int64 `json:"total"`
}

// ConnectionEstablishedFrame is the first frame on a notification connection.
type ConnectionEstablishedFrame struct {
	Type         websocket.EventType `json:"type"`
	PendingCount PendingCount        `json:"pending_count"`
}

// NewConnectionEstablishedFrame builds a connection_established frame.
func NewConnectionEstablishedFrame(count PendingCount) ConnectionEstablishedFrame {
	return ConnectionEstablishedFrame{Type: websocket.EventConnectionEstablished, PendingCount: count}
}

// PendingCountFrame answers an inbound pending_count request.
type PendingCountFrame struct {
	Type         websocket.EventType `json:"type"`
	PendingCount PendingCount        `json:"pending_count"`
}

// NewPendingCountFrame builds a pending_count frame.
func NewPendingCountFrame(count PendingCount) PendingCountFrame {
	return PendingCountFrame{Type: websocket.EventPendingCount, PendingCount: count}
}
