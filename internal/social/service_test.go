package social

import (
	"context"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/mocks"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/repositories"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

type fixture struct {
	users   repositories.UserRepository
	config  Config
	pending *notification.PendingCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      ":memory:",
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	f := &fixture{users: repositories.NewUserRepository(database)}
	f.config = Config{
		Users:          f.users,
		Trips:          repositories.NewTripRepository(database),
		FriendRequests: repositories.NewFriendRequestRepository(database),
		TripShares:     repositories.NewTripShareRepository(database),
		Logger:         zap.NewNop(),
	}
	f.pending = notification.NewPendingCounter(f.config.FriendRequests, f.config.TripShares)
	return f
}

func (f *fixture) service(d notification.Dispatcher) *Service {
	cfg := f.config
	cfg.Dispatcher = d
	return NewService(cfg)
}

func (f *fixture) user(t *testing.T, name string) *db.User {
	t.Helper()
	u := &db.User{
		Email:       fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		DisplayName: name,
		IsActive:    true,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestService_FriendRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist then notify the receiver", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		ctrl := gomock.NewController(t)
		dispatcher := mocks.NewMockDispatcher(ctrl)
		s := f.service(dispatcher)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")

		dispatcher.EXPECT().
			FriendRequestCreated(gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, fr *db.FriendRequest, sender *db.User) {
				req.Equal(bob.ID, fr.ReceiverID)
				req.Equal(alice.ID, sender.ID)
				req.NotEqual(uuid.Nil, fr.ID)
			})

		fr, err := s.SendFriendRequest(ctx, alice.ID, bob.ID, "  let's travel  ")
		req.NoError(err)
		req.Equal("let's travel", fr.Message)
		req.Equal(db.StatusPending, fr.Status)

		count, err := f.pending.Count(ctx, bob.ID)
		req.NoError(err)
		req.Equal(notification.PendingCount{FriendRequests: 1, Total: 1}, count)
	})

	t.Run("should refuse duplicates and self requests without notifying", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		ctrl := gomock.NewController(t)
		dispatcher := mocks.NewMockDispatcher(ctrl)
		s := f.service(dispatcher)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")

		dispatcher.EXPECT().FriendRequestCreated(gomock.Any(), gomock.Any(), gomock.Any()).Times(1)

		_, err := s.SendFriendRequest(ctx, alice.ID, bob.ID, "")
		req.NoError(err)

		_, err = s.SendFriendRequest(ctx, bob.ID, alice.ID, "")
		req.ErrorIs(err, ErrAlreadyPending)

		_, err = s.SendFriendRequest(ctx, alice.ID, alice.ID, "")
		req.ErrorIs(err, ErrSelfRequest)

		_, err = s.SendFriendRequest(ctx, alice.ID, uuid.New(), "")
		req.ErrorIs(err, ErrUserNotFound)
	})

	t.Run("should let only the receiver answer once", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		ctrl := gomock.NewController(t)
		dispatcher := mocks.NewMockDispatcher(ctrl)
		s := f.service(dispatcher)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")

		dispatcher.EXPECT().FriendRequestCreated(gomock.Any(), gomock.Any(), gomock.Any())
		dispatcher.EXPECT().
			FriendRequestResponded(gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, fr *db.FriendRequest, responder *db.User) {
				req.Equal(db.StatusAccepted, fr.Status)
				req.Equal(bob.ID, responder.ID)
			}).
			Times(1)

		fr, err := s.SendFriendRequest(ctx, alice.ID, bob.ID, "")
		req.NoError(err)

		_, err = s.RespondFriendRequest(ctx, fr.ID, alice.ID, db.StatusAccepted)
		req.ErrorIs(err, ErrNotRecipient)

		_, err = s.RespondFriendRequest(ctx, fr.ID, bob.ID, "maybe")
		req.ErrorIs(err, ErrInvalidStatus)

		answered, err := s.RespondFriendRequest(ctx, fr.ID, bob.ID, db.StatusAccepted)
		req.NoError(err)
		req.Equal(db.StatusAccepted, answered.Status)

		_, err = s.RespondFriendRequest(ctx, fr.ID, bob.ID, db.StatusDeclined)
		req.ErrorIs(err, ErrAlreadyAnswered)

		_, err = s.RespondFriendRequest(ctx, uuid.New(), bob.ID, db.StatusDeclined)
		req.ErrorIs(err, ErrRequestNotFound)

		count, err := f.pending.Count(ctx, bob.ID)
		req.NoError(err)
		req.Zero(count.Total)
	})
}

func TestService_TripShares(t *testing.T) {
	ctx := context.Background()

	t.Run("should share an owned trip and route the answer back", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		ctrl := gomock.NewController(t)
		dispatcher := mocks.NewMockDispatcher(ctrl)
		s := f.service(dispatcher)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")

		trip, err := s.CreateTrip(ctx, alice.ID, "Kyoto", "Japan")
		req.NoError(err)

		gomock.InOrder(
			dispatcher.EXPECT().
				TripShareCreated(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Do(func(_ context.Context, share *db.TripShare, tr *db.Trip, by *db.User) {
					req.Equal(bob.ID, share.SharedWithID)
					req.Equal("Kyoto", tr.Name)
					req.Equal(alice.ID, by.ID)
				}),
			dispatcher.EXPECT().
				TripShareResponded(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Do(func(_ context.Context, share *db.TripShare, _ *db.Trip, responder *db.User) {
					req.Equal(db.StatusDeclined, share.Status)
					req.Equal(bob.ID, responder.ID)
				}),
		)

		share, err := s.ShareTrip(ctx, trip.ID, alice.ID, bob.ID, "join me")
		req.NoError(err)

		count, err := f.pending.Count(ctx, bob.ID)
		req.NoError(err)
		req.Equal(notification.PendingCount{TripShares: 1, Total: 1}, count)

		_, err = s.ShareTrip(ctx, trip.ID, alice.ID, bob.ID, "again")
		req.ErrorIs(err, ErrAlreadyPending)

		_, err = s.RespondTripShare(ctx, share.ID, bob.ID, db.StatusDeclined)
		req.NoError(err)
	})

	t.Run("should refuse trips the sharer does not own", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		ctrl := gomock.NewController(t)
		s := f.service(mocks.NewMockDispatcher(ctrl))
		alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

		trip, err := s.CreateTrip(ctx, alice.ID, "Oslo", "Norway")
		req.NoError(err)

		_, err = s.ShareTrip(ctx, trip.ID, bob.ID, carol.ID, "")
		req.ErrorIs(err, ErrNotTripOwner)

		_, err = s.ShareTrip(ctx, uuid.New(), alice.ID, carol.ID, "")
		req.ErrorIs(err, ErrTripNotFound)
	})
}

type recorder struct {
	id     string
	frames [][]byte
}

func (r *recorder) ID() string { return r.id }
func (r *recorder) Close()     {}
func (r *recorder) Deliver(data []byte) error {
	r.frames = append(r.frames, data)
	return nil
}

func TestService_NotifiesOpenConnectionWithinCommand(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	hub := websocket.NewHub(zap.NewNop())
	s := f.service(notification.NewDispatcher(hub, zap.NewNop()))
	x, y := f.user(t, "Xavier"), f.user(t, "Yuki")

	conn := &recorder{id: "y-1"}
	req.NoError(hub.Join(ctx, websocket.NotificationGroup(y.ID), conn))

	fr, err := s.SendFriendRequest(ctx, x.ID, y.ID, "")
	req.NoError(err)

	req.Len(conn.frames, 1)
	var got map[string]any
	req.NoError(json.Unmarshal(conn.frames[0], &got))
	req.Equal("friend_request", got["type"])
	req.Equal(fr.ID.String(), got["request_id"])
	req.Equal("Xavier", got["sender"].(map[string]any)["display_name"])
}
