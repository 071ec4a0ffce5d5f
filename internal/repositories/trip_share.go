package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripmate-io/tripmate/internal/db"
)

type gormTripShareRepository struct {
	db *gorm.DB
}

// NewTripShareRepository returns a TripShareRepository backed by the provided *gorm.DB.
func NewTripShareRepository(db *gorm.DB) TripShareRepository {
	return &gormTripShareRepository{db: db}
}

func (r *gormTripShareRepository) Create(ctx context.Context, share *db.TripShare) error {
	if err := r.db.WithContext(ctx).Create(share).Error; err != nil {
		return fmt.Errorf("trip shares: create: %w", err)
	}
	return nil
}

// GetByID retrieves a trip share by its UUID. Returns ErrNotFound if no record exists.
func (r *gormTripShareRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.TripShare, error) {
	var share db.TripShare
	err := r.db.WithContext(ctx).First(&share, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("trip shares: get by id: %w", err)
	}
	return &share, nil
}

func (r *gormTripShareRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&db.TripShare{}).
		Where("id = ? AND status = ?", id, db.StatusPending).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("trip shares: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTripShareRepository) ExistsPending(ctx context.Context, tripID, sharedWithID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.TripShare{}).
		Where("trip_id = ? AND shared_with_id = ? AND status = ?", tripID, sharedWithID, db.StatusPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("trip shares: exists pending: %w", err)
	}
	return count > 0, nil
}

func (r *gormTripShareRepository) CountPendingForUser(ctx context.Context, sharedWithID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.TripShare{}).
		Where("shared_with_id = ? AND status = ?", sharedWithID, db.StatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("trip shares: count pending: %w", err)
	}
	return count, nil
}
