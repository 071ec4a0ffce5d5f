package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripmate-io/tripmate/internal/db"
)

// gormMessageRepository is the GORM implementation of MessageRepository.
type gormMessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a MessageRepository backed by the provided *gorm.DB.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create inserts a new message. The generated id and created_at are written
// back into message.
func (r *gormMessageRepository) Create(ctx context.Context, message *db.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("messages: create: %w", err)
	}
	return nil
}

// GetByID retrieves a message by id. Soft-deleted messages are excluded.
// Returns ErrNotFound if no record exists.
func (r *gormMessageRepository) GetByID(ctx context.Context, id int64) (*db.Message, error) {
	var message db.Message
	err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("messages: get by id: %w", err)
	}
	return &message, nil
}

// MarkRead sets is_read on a message someone other than readerID sent.
// The sender condition is part of the UPDATE so the check and the write
// cannot race.
func (r *gormMessageRepository) MarkRead(ctx context.Context, id int64, readerID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ? AND sender_id <> ?", id, readerID).
		Update("is_read", true)
	if result.Error != nil {
		return false, fmt.Errorf("messages: mark read: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *gormMessageRepository) UpdateContent(ctx context.Context, id int64, senderID uuid.UUID, content string, editedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ? AND sender_id = ?", id, senderID).
		Updates(map[string]any{
			"content":   content,
			"edited_at": editedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("messages: update content: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormMessageRepository) Delete(ctx context.Context, id int64, senderID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, senderID).
		Delete(&db.Message{})
	if result.Error != nil {
		return fmt.Errorf("messages: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByConversation returns a page of messages, newest first, together with
// the total number of live messages in the conversation.
func (r *gormMessageRepository) ListByConversation(ctx context.Context, conversationID int64, opts ListOptions) ([]db.Message, int64, error) {
	var messages []db.Message
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("messages: list by conversation count: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("created_at DESC, id DESC").
		Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("messages: list by conversation: %w", err)
	}

	return messages, total, nil
}
