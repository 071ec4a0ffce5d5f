package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains the common fields shared by UUID-keyed models.
// ID uses UUID v7 (time-ordered) for efficient B-tree indexing and natural
// chronological ordering. CreatedAt and UpdatedAt are managed by GORM.
type Base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a new UUID v7 if the ID is not already set.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// Serial is the base for chat records. Conversations and messages are
// addressed by integer ids on the wire (path parameter, read receipts), so
// they use an auto-increment key instead of a UUID.
type Serial struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Request statuses shared by FriendRequest and TripShare.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

// User is a registered traveller. Password holds an Argon2id "salt:hash" pair.
type User struct {
	Base
	Email       string `gorm:"uniqueIndex;not null"`
	Password    string `gorm:"type:text;not null;default:''"`
	DisplayName string `gorm:"not null"`
	IsActive    bool   `gorm:"not null;default:true"`
	LastLoginAt *time.Time
}

// -----------------------------------------------------------------------------
// Trips
// -----------------------------------------------------------------------------

// Trip is the minimal trip record needed to describe a trip share. The full
// itinerary lives in the planning service and is not modelled here.
type Trip struct {
	Base
	OwnerID     uuid.UUID `gorm:"type:text;not null;index"`
	Name        string    `gorm:"not null"`
	Destination string    `gorm:"not null;default:''"`
}

// TripShare offers a trip from SharedByID to SharedWithID.
// Status transitions: pending -> accepted | declined.
type TripShare struct {
	Base
	TripID       uuid.UUID `gorm:"type:text;not null;index"`
	SharedByID   uuid.UUID `gorm:"type:text;not null;index"`
	SharedWithID uuid.UUID `gorm:"type:text;not null;index"`
	Message      string    `gorm:"type:text;not null;default:''"`
	Status       string    `gorm:"not null;default:'pending'"`
}

// -----------------------------------------------------------------------------
// Friends
// -----------------------------------------------------------------------------

// FriendRequest asks ReceiverID to become a tripmate of SenderID.
// Status transitions: pending -> accepted | declined.
type FriendRequest struct {
	Base
	SenderID   uuid.UUID `gorm:"type:text;not null;index"`
	ReceiverID uuid.UUID `gorm:"type:text;not null;index"`
	Message    string    `gorm:"type:text;not null;default:''"`
	Status     string    `gorm:"not null;default:'pending'"`
}

// -----------------------------------------------------------------------------
// Chat
// -----------------------------------------------------------------------------

// Conversation is a chat room. Membership lives in ConversationParticipant
// and is checked on every connect and every inbound send.
type Conversation struct {
	Serial
	Title string `gorm:"not null;default:''"`
}

// ConversationParticipant is the join table between Conversation and User.
type ConversationParticipant struct {
	ConversationID int64     `gorm:"primaryKey"`
	UserID         uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt      time.Time `gorm:"not null"`
}

// Message is one chat message. Only the sender may edit or delete it; only
// other participants may mark it read.
type Message struct {
	Serial
	ConversationID int64     `gorm:"not null;index"`
	SenderID       uuid.UUID `gorm:"type:text;not null;index"`
	Content        string    `gorm:"type:text;not null"`
	IsRead         bool      `gorm:"not null;default:false"`
	EditedAt       *time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}
