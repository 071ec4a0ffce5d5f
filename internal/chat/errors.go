package chat

import "errors"

var (
	// ErrInvalidTransition is returned when a session is moved to a state
	// that does not follow its current one.
	ErrInvalidTransition = errors.New("chat: invalid session state transition")

	// ErrEmptyMessage is returned for a chat_message whose trimmed content
	// is empty.
	ErrEmptyMessage = errors.New("chat: message cannot be empty")

	// ErrMessageTooLong is returned for a chat_message over MaxMessageLength
	// characters after trimming.
	ErrMessageTooLong = errors.New("chat: message is too long")

	// ErrNotParticipant is returned when the sender is no longer a
	// participant of the conversation.
	ErrNotParticipant = errors.New("chat: not a participant of this conversation")

	// ErrUnsupportedEvent is returned for a known event type that the chat
	// channel does not accept.
	ErrUnsupportedEvent = errors.New("chat: event type not supported on this channel")

	// errHandlerPanic marks a recovered panic inside an event handler.
	errHandlerPanic = errors.New("chat: internal error")
)
