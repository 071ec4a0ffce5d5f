package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripmate-io/tripmate/internal/db"
)

type gormTripRepository struct {
	db *gorm.DB
}

// NewTripRepository returns a TripRepository backed by the provided *gorm.DB.
func NewTripRepository(db *gorm.DB) TripRepository {
	return &gormTripRepository{db: db}
}

func (r *gormTripRepository) Create(ctx context.Context, trip *db.Trip) error {
	if err := r.db.WithContext(ctx).Create(trip).Error; err != nil {
		return fmt.Errorf("trips: create: %w", err)
	}
	return nil
}

// GetByID retrieves a trip by its UUID. Returns ErrNotFound if no record exists.
func (r *gormTripRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Trip, error) {
	var trip db.Trip
	err := r.db.WithContext(ctx).First(&trip, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("trips: get by id: %w", err)
	}
	return &trip, nil
}
