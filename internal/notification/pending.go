package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tripmate-io/tripmate/internal/repositories"
)

// PendingCounter computes the pending counts a client uses to reconcile
// notifications it missed while offline.
type PendingCounter struct {
	friendRequests repositories.FriendRequestRepository
	tripShares     repositories.TripShareRepository
}

// NewPendingCounter creates a PendingCounter.
func NewPendingCounter(friendRequests repositories.FriendRequestRepository, tripShares repositories.TripShareRepository) *PendingCounter {
	return &PendingCounter{friendRequests: friendRequests, tripShares: tripShares}
}

// Count returns the pending friend requests received by userID and the
// pending trip shares offered to userID.
func (c *PendingCounter) Count(ctx context.Context, userID uuid.UUID) (PendingCount, error) {
	friends, err := c.friendRequests.CountPendingForReceiver(ctx, userID)
	if err != nil {
		return PendingCount{}, fmt.Errorf("notification: counting friend requests: %w", err)
	}
	shares, err := c.tripShares.CountPendingForUser(ctx, userID)
	if err != nil {
		return PendingCount{}, fmt.Errorf("notification: counting trip shares: %w", err)
	}
	return PendingCount{
		FriendRequests: friends,
		TripShares:     shares,
		Total:          friends + shares,
	}, nil
}
