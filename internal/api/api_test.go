package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tripmate-io/tripmate/internal/auth"
	"github.com/tripmate-io/tripmate/internal/chat"
	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/repositories"
	"github.com/tripmate-io/tripmate/internal/social"
	"github.com/tripmate-io/tripmate/internal/websocket"
)

const frameTimeout = 2 * time.Second

type testServer struct {
	srv         *httptest.Server
	hub         *websocket.Hub
	database    *gorm.DB
	users       repositories.UserRepository
	jwt         *auth.JWTManager
	authService *auth.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      ":memory:",
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	jwtManager, err := auth.NewJWTManagerGenerated("tripmate-test")
	require.NoError(t, err)

	logger := zap.NewNop()
	hub := websocket.NewHub(logger)
	users := repositories.NewUserRepository(database)
	conversations := repositories.NewConversationRepository(database)
	messages := repositories.NewMessageRepository(database)
	friendRequests := repositories.NewFriendRequestRepository(database)
	tripShares := repositories.NewTripShareRepository(database)
	authService := auth.NewAuthService(users, jwtManager)

	router := NewRouter(RouterConfig{
		AuthService: authService,
		Handshake:   chat.NewHandshake(authService, conversations, logger),
		Social: social.NewService(social.Config{
			Users:          users,
			Trips:          repositories.NewTripRepository(database),
			FriendRequests: friendRequests,
			TripShares:     tripShares,
			Dispatcher:     notification.NewDispatcher(hub, logger),
			Logger:         logger,
		}),
		Pending: notification.NewPendingCounter(friendRequests, tripShares),
		Chat: chat.Deps{
			Fanout:        hub,
			Conversations: conversations,
			Messages:      messages,
			Presence:      chat.NewPresence(hub, logger),
			Logger:        logger,
		},
		Users:         users,
		Conversations: conversations,
		Messages:      messages,
		Ping:          func(ctx context.Context) error { return db.Ping(ctx, database) },
		Logger:        logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Shutdown)

	return &testServer{
		srv:         srv,
		hub:         hub,
		database:    database,
		users:       users,
		jwt:         jwtManager,
		authService: authService,
	}
}

func (s *testServer) user(t *testing.T, name string) *db.User {
	t.Helper()
	hash, err := auth.HashPassword("secret-" + name)
	require.NoError(t, err)
	u := &db.User{
		Email:       fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Password:    hash,
		DisplayName: name,
		IsActive:    true,
	}
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

func (s *testServer) token(t *testing.T, u *db.User) string {
	t.Helper()
	tok, err := s.authService.IssueToken(u)
	require.NoError(t, err)
	return tok.AccessToken
}

// do sends a JSON request and returns the status and the decoded envelope.
func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (s *testServer) conversation(t *testing.T, owner *db.User, others ...*db.User) int64 {
	t.Helper()
	ids := make([]string, len(others))
	for i, u := range others {
		ids[i] = u.ID.String()
	}
	status, body := s.do(t, http.MethodPost, "/api/v1/conversations", s.token(t, owner), map[string]any{
		"title":           "trip planning",
		"participant_ids": ids,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return int64(body["data"].(map[string]any)["id"].(float64))
}

func (s *testServer) dial(t *testing.T, path, token string) *gws.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + path
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	conn, resp, err := gws.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// readUntil skips frames until one of the given type arrives.
func readUntil(t *testing.T, conn *gws.Conn, typ string) map[string]any {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if frame["type"] == typ {
			return frame
		}
	}
}

func send(t *testing.T, conn *gws.Conn, frame any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func requireClosedWith(t *testing.T, conn *gws.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	_, _, err := conn.ReadMessage()
	var closeErr *gws.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, code, closeErr.Code)
}

func TestChatHandshake_CloseCodes(t *testing.T) {
	s := newTestServer(t)
	alice, bob, mallory := s.user(t, "alice"), s.user(t, "bob"), s.user(t, "mallory")
	convID := s.conversation(t, alice, bob)
	path := fmt.Sprintf("/ws/chat/%d", convID)

	t.Run("should reject a missing token with 4001", func(t *testing.T) {
		requireClosedWith(t, s.dial(t, path, ""), websocket.CloseNoToken)
	})

	t.Run("should reject an expired token with 4002", func(t *testing.T) {
		s.jwt.SetTTL(-time.Minute)
		expired, _, err := s.jwt.GenerateAccessToken(alice.ID.String(), alice.Email)
		s.jwt.SetTTL(15 * time.Minute)
		require.NoError(t, err)

		requireClosedWith(t, s.dial(t, path, expired), websocket.CloseTokenExpired)
	})

	t.Run("should reject a garbage token with 4003", func(t *testing.T) {
		requireClosedWith(t, s.dial(t, path, "not-a-jwt"), websocket.CloseTokenInvalid)
	})

	t.Run("should reject an unknown or disabled user with 4004", func(t *testing.T) {
		ghost, _, err := s.jwt.GenerateAccessToken(uuid.NewString(), "ghost@example.com")
		require.NoError(t, err)
		requireClosedWith(t, s.dial(t, path, ghost), websocket.CloseUserNotFound)

		disabled := s.user(t, "disabled")
		require.NoError(t, s.users.SetActive(context.Background(), disabled.ID, false))
		requireClosedWith(t, s.dial(t, path, s.token(t, disabled)), websocket.CloseUserNotFound)
	})

	t.Run("should reject non participants and unknown conversations with 4005", func(t *testing.T) {
		requireClosedWith(t, s.dial(t, path, s.token(t, mallory)), websocket.CloseNotParticipant)
		requireClosedWith(t, s.dial(t, "/ws/chat/999999", s.token(t, alice)), websocket.CloseNotParticipant)
	})

	t.Run("should reject with 4006 once the hub is shut down", func(t *testing.T) {
		s.hub.Shutdown()
		requireClosedWith(t, s.dial(t, path, s.token(t, alice)), websocket.CloseJoinFailed)
	})
}

func TestChatChannel_RoundTrip(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice, bob := s.user(t, "alice"), s.user(t, "bob")
	convID := s.conversation(t, alice, bob)
	path := fmt.Sprintf("/ws/chat/%d", convID)

	a := s.dial(t, path, s.token(t, alice))
	// Wait until alice is registered before bob connects, so she sees him.
	req.Eventually(func() bool { return s.hub.GroupSize(websocket.ChatGroup(convID)) == 1 }, frameTimeout, 10*time.Millisecond)
	b := s.dial(t, path, s.token(t, bob))

	online := readUntil(t, a, "user_status")
	req.Equal("online", online["status"])
	req.Equal("bob", online["user"].(map[string]any)["display_name"])

	t.Run("should broadcast chat messages to every participant", func(t *testing.T) {
		req := require.New(t)
		send(t, a, map[string]any{"type": "typing", "is_typing": true})
		send(t, a, map[string]any{"type": "chat_message", "message": "  hello  "})

		typing := readUntil(t, b, "typing")
		req.Equal(true, typing["is_typing"])
		fromB := readUntil(t, b, "chat_message")
		req.Equal("hello", fromB["message"])

		// The sender gets its own message but never its own typing frame.
		fromA := readFrame(t, a)
		req.Equal("chat_message", fromA["type"])
		req.Equal(fromB["message_id"], fromA["message_id"])
	})

	t.Run("should keep the connection open on invalid frames", func(t *testing.T) {
		req := require.New(t)
		send(t, a, map[string]any{"type": "chat_message", "message": "   "})
		req.Equal("message cannot be empty", readUntil(t, a, "error")["message"])

		send(t, a, map[string]any{"type": "dance"})
		req.Equal(`unknown event type: "dance"`, readUntil(t, a, "error")["message"])

		req.NoError(a.WriteMessage(gws.TextMessage, []byte("{")))
		req.Contains(readUntil(t, a, "error")["message"], "invalid frame")

		send(t, a, map[string]any{"type": "chat_message", "message": strings.Repeat("x", chat.MaxMessageLength+1)})
		req.Equal("message cannot exceed 5000 characters", readUntil(t, a, "error")["message"])
	})

	t.Run("should echo read receipts and edits to the room", func(t *testing.T) {
		req := require.New(t)
		send(t, a, map[string]any{"type": "chat_message", "message": "read me"})
		msg := readUntil(t, b, "chat_message")
		readUntil(t, a, "chat_message")
		id := int64(msg["message_id"].(float64))

		send(t, b, map[string]any{"type": "read_receipt", "message_id": id})
		receipt := readUntil(t, a, "read_receipt")
		req.Equal(bob.ID.String(), receipt["user_id"])
		readUntil(t, b, "read_receipt")

		status, _ := s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/messages/%d", id), s.token(t, bob), map[string]any{"message": "hijack"})
		req.Equal(http.StatusForbidden, status)

		status, body := s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/messages/%d", id), s.token(t, alice), map[string]any{"message": "read me please"})
		req.Equal(http.StatusOK, status, body)
		edited := readUntil(t, b, "message_edited")
		req.Equal("read me please", edited["message"])

		status, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/messages/%d", id), s.token(t, alice), nil)
		req.Equal(http.StatusNoContent, status)
		req.Equal(float64(id), readUntil(t, b, "message_deleted")["message_id"])
	})

	t.Run("should announce offline when a participant leaves", func(t *testing.T) {
		req := require.New(t)
		req.NoError(b.Close())
		offline := readUntil(t, a, "user_status")
		req.Equal("offline", offline["status"])
		req.Equal(bob.ID.String(), offline["user"].(map[string]any)["id"])
	})

	t.Run("should serve history to participants only", func(t *testing.T) {
		req := require.New(t)
		status, body := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d/messages", convID), s.token(t, alice), nil)
		req.Equal(http.StatusOK, status)
		req.EqualValues(1, body["data"].(map[string]any)["total"])

		status, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d/messages", convID), s.token(t, s.user(t, "eve")), nil)
		req.Equal(http.StatusNotFound, status)
	})
}

func TestNotificationChannel(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice, bob := s.user(t, "alice"), s.user(t, "bob")

	t.Run("should reject a missing token with 4001", func(t *testing.T) {
		requireClosedWith(t, s.dial(t, "/ws/notifications", ""), websocket.CloseNoToken)
	})

	conn := s.dial(t, "/ws/notifications", s.token(t, bob))
	established := readFrame(t, conn)
	req.Equal("connection_established", established["type"])
	req.EqualValues(0, established["pending_count"].(map[string]any)["total"])

	t.Run("should push friend requests created over REST", func(t *testing.T) {
		req := require.New(t)
		status, body := s.do(t, http.MethodPost, "/api/v1/friend-requests", s.token(t, alice), map[string]any{
			"receiver_id": bob.ID.String(),
			"message":     "travel buddies?",
		})
		req.Equal(http.StatusCreated, status, body)

		frame := readUntil(t, conn, "friend_request")
		req.Equal(body["data"].(map[string]any)["id"], frame["request_id"])
		req.Equal("alice", frame["sender"].(map[string]any)["display_name"])
	})

	t.Run("should answer pending_count requests", func(t *testing.T) {
		req := require.New(t)
		send(t, conn, map[string]any{"type": "pending_count"})
		frame := readUntil(t, conn, "pending_count")
		counts := frame["pending_count"].(map[string]any)
		req.EqualValues(1, counts["friend_requests"])
		req.EqualValues(1, counts["total"])

		status, body := s.do(t, http.MethodGet, "/api/v1/notifications/pending-count", s.token(t, bob), nil)
		req.Equal(http.StatusOK, status)
		req.EqualValues(1, body["data"].(map[string]any)["total"])
	})

	t.Run("should refuse chat frames on the notification channel", func(t *testing.T) {
		req := require.New(t)
		send(t, conn, map[string]any{"type": "typing", "is_typing": true})
		req.Contains(readUntil(t, conn, "error")["message"], "not supported")
	})
}

func TestREST(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")

	t.Run("should log in and read the profile", func(t *testing.T) {
		req := require.New(t)
		status, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
			"email":    alice.Email,
			"password": "secret-alice",
		})
		req.Equal(http.StatusOK, status, body)
		token := body["data"].(map[string]any)["access_token"].(string)

		status, body = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
		req.Equal(http.StatusOK, status)
		req.Equal(alice.Email, body["data"].(map[string]any)["email"])
	})

	t.Run("should reject bad credentials and missing tokens", func(t *testing.T) {
		req := require.New(t)
		status, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
			"email":    alice.Email,
			"password": "wrong",
		})
		req.Equal(http.StatusUnauthorized, status)
		req.Equal("invalid_credentials", body["error"].(map[string]any)["code"])

		status, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "nope"})
		req.Equal(http.StatusUnprocessableEntity, status)

		status, _ = s.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
		req.Equal(http.StatusUnauthorized, status)
	})

	t.Run("should map social errors to statuses", func(t *testing.T) {
		req := require.New(t)
		bob := s.user(t, "bob")
		token := s.token(t, alice)

		status, _ := s.do(t, http.MethodPost, "/api/v1/friend-requests", token, map[string]any{"receiver_id": alice.ID.String()})
		req.Equal(http.StatusUnprocessableEntity, status)

		status, _ = s.do(t, http.MethodPost, "/api/v1/friend-requests", token, map[string]any{"receiver_id": uuid.NewString()})
		req.Equal(http.StatusNotFound, status)

		status, body := s.do(t, http.MethodPost, "/api/v1/trips", token, map[string]any{"name": "Kyoto", "destination": "Japan"})
		req.Equal(http.StatusCreated, status, body)
		tripID := body["data"].(map[string]any)["id"].(string)

		status, _ = s.do(t, http.MethodPost, "/api/v1/trip-shares", s.token(t, bob), map[string]any{
			"trip_id":        tripID,
			"shared_with_id": alice.ID.String(),
		})
		req.Equal(http.StatusForbidden, status)

		status, body = s.do(t, http.MethodPost, "/api/v1/trip-shares", token, map[string]any{
			"trip_id":        tripID,
			"shared_with_id": bob.ID.String(),
		})
		req.Equal(http.StatusCreated, status, body)
		shareID := body["data"].(map[string]any)["id"].(string)

		status, _ = s.do(t, http.MethodPost, "/api/v1/trip-shares/"+shareID+"/respond", s.token(t, bob), map[string]any{"status": "accepted"})
		req.Equal(http.StatusOK, status)

		status, _ = s.do(t, http.MethodPost, "/api/v1/trip-shares/"+shareID+"/respond", s.token(t, bob), map[string]any{"status": "declined"})
		req.Equal(http.StatusConflict, status)
	})

	t.Run("should report health", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "ok", body["data"].(map[string]any)["database"])
	})
}
