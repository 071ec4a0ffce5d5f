package websocket

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	t.Run("should decode each known event type", func(t *testing.T) {
		req := require.New(t)

		ev, err := DecodeInbound([]byte(`{"type":"chat_message","message":"hi"}`))
		req.NoError(err)
		req.Equal(ChatMessageEvent{Message: "hi"}, ev)

		ev, err = DecodeInbound([]byte(`{"type":"typing","is_typing":true}`))
		req.NoError(err)
		req.Equal(TypingEvent{IsTyping: true}, ev)

		ev, err = DecodeInbound([]byte(`{"type":"read_receipt","message_id":42}`))
		req.NoError(err)
		req.Equal(ReadReceiptEvent{MessageID: 42}, ev)

		ev, err = DecodeInbound([]byte(`{"type":"pending_count"}`))
		req.NoError(err)
		req.Equal(EventPendingCount, ev.Type())
	})

	t.Run("should reject frames that are not JSON objects", func(t *testing.T) {
		req := require.New(t)
		for _, raw := range []string{`not json`, `[1,2]`, `{"type":5}`, `{}`} {
			_, err := DecodeInbound([]byte(raw))
			req.ErrorIs(err, ErrMalformedFrame, raw)
		}
	})

	t.Run("should reject bodies with the wrong shape", func(t *testing.T) {
		req := require.New(t)

		_, err := DecodeInbound([]byte(`{"type":"chat_message","message":12}`))
		req.ErrorIs(err, ErrMalformedFrame)

		_, err = DecodeInbound([]byte(`{"type":"read_receipt"}`))
		req.ErrorIs(err, ErrMalformedFrame)
	})

	t.Run("should report unknown event types", func(t *testing.T) {
		req := require.New(t)
		_, err := DecodeInbound([]byte(`{"type":"dance"}`))
		req.ErrorIs(err, ErrUnknownEventType)
		req.Contains(err.Error(), "dance")
	})
}

func TestOutboundFrames(t *testing.T) {
	req := require.New(t)
	user := UserSummary{ID: uuid.MustParse("0190a0a0-0000-7000-8000-000000000001"), DisplayName: "Ada"}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := Encode(NewChatMessageFrame(7, "hi", user, ts))
	req.NoError(err)

	var got map[string]any
	req.NoError(json.Unmarshal(data, &got))
	req.Equal("chat_message", got["type"])
	req.EqualValues(7, got["message_id"])
	req.Equal("hi", got["message"])
	req.Equal("2026-03-01T12:00:00Z", got["timestamp"])
	req.Equal(map[string]any{"id": user.ID.String(), "display_name": "Ada"}, got["user"])
}

func TestGroupNames(t *testing.T) {
	req := require.New(t)
	id := uuid.MustParse("0190a0a0-0000-7000-8000-000000000001")
	req.Equal("chat_12", ChatGroup(12))
	req.Equal("notifications_0190a0a0-0000-7000-8000-000000000001", NotificationGroup(id))
}
