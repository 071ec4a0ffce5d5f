package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripmate-io/tripmate/internal/db"
)

type gormFriendRequestRepository struct {
	db *gorm.DB
}

// NewFriendRequestRepository returns a FriendRequestRepository backed by the provided *gorm.DB.
func NewFriendRequestRepository(db *gorm.DB) FriendRequestRepository {
	return &gormFriendRequestRepository{db: db}
}

func (r *gormFriendRequestRepository) Create(ctx context.Context, request *db.FriendRequest) error {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return fmt.Errorf("friend requests: create: %w", err)
	}
	return nil
}

// GetByID retrieves a friend request by its UUID. Returns ErrNotFound if no record exists.
func (r *gormFriendRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.FriendRequest, error) {
	var request db.FriendRequest
	err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("friend requests: get by id: %w", err)
	}
	return &request, nil
}

// UpdateStatus only transitions requests that are still pending, so two
// concurrent responses cannot both succeed.
func (r *gormFriendRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&db.FriendRequest{}).
		Where("id = ? AND status = ?", id, db.StatusPending).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("friend requests: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsPendingBetween reports whether a pending request exists in either
// direction between a and b.
func (r *gormFriendRequestRepository) ExistsPendingBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.FriendRequest{}).
		Where("status = ?", db.StatusPending).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("friend requests: exists pending: %w", err)
	}
	return count > 0, nil
}

func (r *gormFriendRequestRepository) CountPendingForReceiver(ctx context.Context, receiverID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.FriendRequest{}).
		Where("receiver_id = ? AND status = ?", receiverID, db.StatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("friend requests: count pending: %w", err)
	}
	return count, nil
}
