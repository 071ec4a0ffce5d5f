package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tripmate-io/tripmate/internal/db"
)

// -----------------------------------------------------------------------------
// Common
// -----------------------------------------------------------------------------

// ListOptions contains common pagination options for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// -----------------------------------------------------------------------------
// UserRepository
// -----------------------------------------------------------------------------

type UserRepository interface {
	Create(ctx context.Context, user *db.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]db.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// -----------------------------------------------------------------------------
// TripRepository
// -----------------------------------------------------------------------------

type TripRepository interface {
	Create(ctx context.Context, trip *db.Trip) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Trip, error)
}

// -----------------------------------------------------------------------------
// ConversationRepository
// -----------------------------------------------------------------------------

type ConversationRepository interface {
	// Create inserts the conversation and its participant rows in a single
	// transaction.
	Create(ctx context.Context, conversation *db.Conversation, participants []uuid.UUID) error
	GetByID(ctx context.Context, id int64) (*db.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) (bool, error)
	ListParticipants(ctx context.Context, conversationID int64) ([]uuid.UUID, error)
	AddParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) error
}

// -----------------------------------------------------------------------------
// MessageRepository
// -----------------------------------------------------------------------------

type MessageRepository interface {
	Create(ctx context.Context, message *db.Message) error
	GetByID(ctx context.Context, id int64) (*db.Message, error)

	// MarkRead flags the message as read on behalf of readerID. It returns
	// false without error when the message does not exist or readerID is its
	// sender; a sender never marks their own message read.
	MarkRead(ctx context.Context, id int64, readerID uuid.UUID) (bool, error)

	// UpdateContent rewrites the content of a message owned by senderID and
	// stamps edited_at. Returns ErrNotFound if no such message is owned by
	// senderID.
	UpdateContent(ctx context.Context, id int64, senderID uuid.UUID, content string, editedAt time.Time) error

	// Delete soft-deletes a message owned by senderID.
	// Returns ErrNotFound if no such message is owned by senderID.
	Delete(ctx context.Context, id int64, senderID uuid.UUID) error

	// ListByConversation returns messages newest first.
	ListByConversation(ctx context.Context, conversationID int64, opts ListOptions) ([]db.Message, int64, error)
}

// -----------------------------------------------------------------------------
// FriendRequestRepository
// -----------------------------------------------------------------------------

type FriendRequestRepository interface {
	Create(ctx context.Context, request *db.FriendRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.FriendRequest, error)

	// UpdateStatus moves a pending request to status. Returns ErrNotFound if
	// the request does not exist or is no longer pending.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	ExistsPendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	CountPendingForReceiver(ctx context.Context, receiverID uuid.UUID) (int64, error)
}

// -----------------------------------------------------------------------------
// TripShareRepository
// -----------------------------------------------------------------------------

type TripShareRepository interface {
	Create(ctx context.Context, share *db.TripShare) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.TripShare, error)

	// UpdateStatus moves a pending share to status. Returns ErrNotFound if
	// the share does not exist or is no longer pending.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	ExistsPending(ctx context.Context, tripID, sharedWithID uuid.UUID) (bool, error)
	CountPendingForUser(ctx context.Context, sharedWithID uuid.UUID) (int64, error)
}
