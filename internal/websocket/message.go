// Package websocket implements the connection registry and frame protocol
// shared by the chat and notification channels. It uses gorilla/websocket for
// the transport and goccy/go-json for frame encoding.
//
// Group naming convention:
//
//	chat_<conversation_id>       members of one conversation room
//	notifications_<user_id>      personal notification channel of a user
package websocket

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventType is the "type" discriminator carried by every frame.
type EventType string

const (
	EventChatMessage           EventType = "chat_message"
	EventTyping                EventType = "typing"
	EventReadReceipt           EventType = "read_receipt"
	EventPendingCount          EventType = "pending_count"
	EventUserStatus            EventType = "user_status"
	EventError                 EventType = "error"
	EventConnectionEstablished EventType = "connection_established"
	EventMessageEdited         EventType = "message_edited"
	EventMessageDeleted        EventType = "message_deleted"
)

// Presence statuses carried by user_status frames.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// -----------------------------------------------------------------------------
// Inbound
// -----------------------------------------------------------------------------

// Inbound is a decoded client frame. The set of implementations is closed:
// handlers switch over the concrete types below.
type Inbound interface {
	Type() EventType
	inbound()
}

// ChatMessageEvent asks to post a message to the conversation.
type ChatMessageEvent struct {
	Message string `json:"message"`
}

// TypingEvent toggles the sender's typing indicator.
type TypingEvent struct {
	IsTyping bool `json:"is_typing"`
}

// ReadReceiptEvent marks a message as read by the sender of the frame.
type ReadReceiptEvent struct {
	MessageID int64 `json:"message_id"`
}

// PendingCountEvent asks the notification channel for fresh pending counts.
type PendingCountEvent struct{}

func (ChatMessageEvent) Type() EventType  { return EventChatMessage }
func (TypingEvent) Type() EventType       { return EventTyping }
func (ReadReceiptEvent) Type() EventType  { return EventReadReceipt }
func (PendingCountEvent) Type() EventType { return EventPendingCount }

func (ChatMessageEvent) inbound()  {}
func (TypingEvent) inbound()       {}
func (ReadReceiptEvent) inbound()  {}
func (PendingCountEvent) inbound() {}

// envelope is used to read the discriminator before decoding the body.
type envelope struct {
	Type *string `json:"type"`
}

// DecodeInbound parses one client frame.
//
// Errors: ErrMalformedFrame when data is not a JSON object with a string
// "type" or the body does not match the declared type, ErrUnknownEventType
// for any other type value. Both are wrapped with detail suitable for an
// error frame.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing \"type\" field", ErrMalformedFrame)
	}

	switch EventType(*env.Type) {
	case EventChatMessage:
		var ev ChatMessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil

	case EventTyping:
		var ev TypingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil

	case EventReadReceipt:
		var ev ReadReceiptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if ev.MessageID <= 0 {
			return nil, fmt.Errorf("%w: \"message_id\" must be a positive integer", ErrMalformedFrame)
		}
		return ev, nil

	case EventPendingCount:
		return PendingCountEvent{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, *env.Type)
	}
}

// -----------------------------------------------------------------------------
// Outbound
// -----------------------------------------------------------------------------

// UserSummary identifies a user inside outbound frames.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

// ChatMessageFrame is broadcast to the whole room when a message is posted.
type ChatMessageFrame struct {
	Type      EventType   `json:"type"`
	MessageID int64       `json:"message_id"`
	Message   string      `json:"message"`
	User      UserSummary `json:"user"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewChatMessageFrame builds a chat_message frame.
func NewChatMessageFrame(messageID int64, content string, user UserSummary, ts time.Time) ChatMessageFrame {
	return ChatMessageFrame{
		Type:      EventChatMessage,
		MessageID: messageID,
		Message:   content,
		User:      user,
		Timestamp: ts.UTC(),
	}
}

// TypingFrame is sent to every other connection in the room.
type TypingFrame struct {
	Type     EventType   `json:"type"`
	User     UserSummary `json:"user"`
	IsTyping bool        `json:"is_typing"`
}

// NewTypingFrame builds a typing frame.
func NewTypingFrame(user UserSummary, isTyping bool) TypingFrame {
	return TypingFrame{Type: EventTyping, User: user, IsTyping: isTyping}
}

// UserStatusFrame announces a presence transition.
type UserStatusFrame struct {
	Type   EventType   `json:"type"`
	User   UserSummary `json:"user"`
	Status string      `json:"status"`
}

// NewUserStatusFrame builds a user_status frame.
func NewUserStatusFrame(user UserSummary, status string) UserStatusFrame {
	return UserStatusFrame{Type: EventUserStatus, User: user, Status: status}
}

// ReadReceiptFrame tells the room a message was read.
type ReadReceiptFrame struct {
	Type      EventType `json:"type"`
	MessageID int64     `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// NewReadReceiptFrame builds a read_receipt frame.
func NewReadReceiptFrame(messageID int64, readerID uuid.UUID) ReadReceiptFrame {
	return ReadReceiptFrame{Type: EventReadReceipt, MessageID: messageID, UserID: readerID}
}

// MessageEditedFrame is broadcast after the sender edits a message.
type MessageEditedFrame struct {
	Type      EventType `json:"type"`
	MessageID int64     `json:"message_id"`
	Message   string    `json:"message"`
	EditedAt  time.Time `json:"edited_at"`
}

// NewMessageEditedFrame builds a message_edited frame.
func NewMessageEditedFrame(messageID int64, content string, editedAt time.Time) MessageEditedFrame {
	return MessageEditedFrame{Type: EventMessageEdited, MessageID: messageID, Message: content, EditedAt: editedAt.UTC()}
}

// MessageDeletedFrame is broadcast after the sender deletes a message.
type MessageDeletedFrame struct {
	Type      EventType `json:"type"`
	MessageID int64     `json:"message_id"`
}

// NewMessageDeletedFrame builds a message_deleted frame.
func NewMessageDeletedFrame(messageID int64) MessageDeletedFrame {
	return MessageDeletedFrame{Type: EventMessageDeleted, MessageID: messageID}
}

// ErrorFrame is sent to the originating connection only.
type ErrorFrame struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

// NewErrorFrame builds an error frame.
func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: EventError, Message: message}
}

// Encode serialises a frame for the wire.
func Encode(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("websocket: encoding frame: %w", err)
	}
	return data, nil
}
