package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/mocks"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

type recorder struct {
	id     string
	frames chan []byte
}

func (r *recorder) ID() string { return r.id }
func (r *recorder) Close()     {}
func (r *recorder) Deliver(data []byte) error {
	r.frames <- data
	return nil
}

func newUser(name string) *db.User {
	u := &db.User{DisplayName: name, Email: name + "@example.com", IsActive: true}
	u.ID = uuid.New()
	return u
}

func TestDispatcher_Targets(t *testing.T) {
	ctx := context.Background()
	alice, bob := newUser("alice"), newUser("bob")
	trip := &db.Trip{Name: "Lisbon", OwnerID: alice.ID}
	trip.ID = uuid.New()

	request := &db.FriendRequest{SenderID: alice.ID, ReceiverID: bob.ID, Message: "hey", Status: db.StatusPending}
	request.ID = uuid.New()
	request.CreatedAt = time.Now()

	share := &db.TripShare{TripID: trip.ID, SharedByID: alice.ID, SharedWithID: bob.ID, Status: db.StatusPending}
	share.ID = uuid.New()

	t.Run("should send a new friend request to the receiver", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fanout := mocks.NewMockFanout(ctrl)
		d := notification.NewDispatcher(fanout, zap.NewNop())

		fanout.EXPECT().
			Send(gomock.Any(), websocket.NotificationGroup(bob.ID), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, payload any) error {
				frame, ok := payload.(notification.FriendRequestFrame)
				require.True(t, ok)
				require.Equal(t, notification.EventFriendRequest, frame.Type)
				require.Equal(t, request.ID, frame.RequestID)
				require.Equal(t, "alice", frame.Sender.DisplayName)
				require.Equal(t, "hey", frame.Message)
				return nil
			}).
			Times(1)

		d.FriendRequestCreated(ctx, request, alice)
	})

	t.Run("should send a friend request answer to the sender", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fanout := mocks.NewMockFanout(ctrl)
		d := notification.NewDispatcher(fanout, zap.NewNop())

		answered := *request
		answered.Status = db.StatusAccepted
		fanout.EXPECT().
			Send(gomock.Any(), websocket.NotificationGroup(alice.ID), gomock.AssignableToTypeOf(notification.FriendRequestResponseFrame{})).
			Return(nil).
			Times(1)

		d.FriendRequestResponded(ctx, &answered, bob)
	})

	t.Run("should send trip shares to shared_with and answers to shared_by", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fanout := mocks.NewMockFanout(ctrl)
		d := notification.NewDispatcher(fanout, zap.NewNop())

		gomock.InOrder(
			fanout.EXPECT().
				Send(gomock.Any(), websocket.NotificationGroup(bob.ID), gomock.AssignableToTypeOf(notification.TripShareFrame{})).
				Return(nil),
			fanout.EXPECT().
				Send(gomock.Any(), websocket.NotificationGroup(alice.ID), gomock.AssignableToTypeOf(notification.TripShareResponseFrame{})).
				Return(nil),
		)

		d.TripShareCreated(ctx, share, trip, alice)
		declined := *share
		declined.Status = db.StatusDeclined
		d.TripShareResponded(ctx, &declined, trip, bob)
	})

	t.Run("should swallow fan-out failures", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fanout := mocks.NewMockFanout(ctrl)
		d := notification.NewDispatcher(fanout, zap.NewNop())

		fanout.EXPECT().
			Send(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.Join(websocket.ErrBackendUnavailable, errors.New("nats down")))

		require.NotPanics(t, func() { d.TripShareCreated(ctx, share, trip, alice) })
	})
}

func TestDispatcher_DeliversToOpenConnection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub := websocket.NewHub(zap.NewNop())
	d := notification.NewDispatcher(hub, zap.NewNop())

	sender, receiver := newUser("Xavier"), newUser("Yuki")
	conn := &recorder{id: "yuki-tab", frames: make(chan []byte, 1)}
	req.NoError(hub.Join(ctx, websocket.NotificationGroup(receiver.ID), conn))

	request := &db.FriendRequest{SenderID: sender.ID, ReceiverID: receiver.ID, Status: db.StatusPending}
	request.ID = uuid.New()
	d.FriendRequestCreated(ctx, request, sender)

	// Delivery is enqueued before the call returns.
	select {
	case data := <-conn.frames:
		var got map[string]any
		req.NoError(json.Unmarshal(data, &got))
		req.Equal("friend_request", got["type"])
		req.Equal(request.ID.String(), got["request_id"])
		req.Equal("Xavier", got["sender"].(map[string]any)["display_name"])
	default:
		req.Fail("no frame delivered")
	}
}

func TestDispatcher_OfflineTarget(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop())
	d := notification.NewDispatcher(hub, zap.NewNop())

	request := &db.FriendRequest{SenderID: uuid.New(), ReceiverID: uuid.New()}
	require.NotPanics(t, func() { d.FriendRequestCreated(context.Background(), request, newUser("x")) })
}
