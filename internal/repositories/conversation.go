package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/tripmate-io/tripmate/internal/db"
)

// gormConversationRepository is the GORM implementation of ConversationRepository.
type gormConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository returns a ConversationRepository backed by the provided *gorm.DB.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// Create inserts the conversation and one participant row per distinct user.
func (r *gormConversationRepository) Create(ctx context.Context, conversation *db.Conversation, participants []uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		rows := lo.Map(lo.Uniq(participants), func(id uuid.UUID, _ int) db.ConversationParticipant {
			return db.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         id,
				CreatedAt:      now,
			}
		})
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("conversations: create: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation by id. Returns ErrNotFound if no record exists.
func (r *gormConversationRepository) GetByID(ctx context.Context, id int64) (*db.Conversation, error) {
	var conversation db.Conversation
	err := r.db.WithContext(ctx).First(&conversation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversations: get by id: %w", err)
	}
	return &conversation, nil
}

// IsParticipant reports whether userID belongs to the conversation. A missing
// conversation yields false, not an error.
func (r *gormConversationRepository) IsParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("conversations: is participant: %w", err)
	}
	return count > 0, nil
}

// ListParticipants returns the user ids of every participant.
func (r *gormConversationRepository) ListParticipants(ctx context.Context, conversationID int64) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&db.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("conversations: list participants: %w", err)
	}
	return ids, nil
}

// AddParticipant adds userID to the conversation.
// Returns ErrConflict if the user is already a participant.
func (r *gormConversationRepository) AddParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).Create(&db.ConversationParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		CreatedAt:      time.Now().UTC(),
	}).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("conversations: add participant: %w", err)
	}
	return nil
}

// RemoveParticipant revokes userID's access. Live sessions notice on their
// next send, when participation is checked again.
func (r *gormConversationRepository) RemoveParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&db.ConversationParticipant{})
	if result.Error != nil {
		return fmt.Errorf("conversations: remove participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
