package websocket

import "errors"

var (
	// ErrMalformedFrame is returned by DecodeInbound when a frame is not a
	// JSON object with a string "type" field, or its fields have the wrong
	// shape for the declared type.
	ErrMalformedFrame = errors.New("websocket: malformed frame")

	// ErrUnknownEventType is returned by DecodeInbound for a well-formed
	// frame whose type is not recognised.
	ErrUnknownEventType = errors.New("websocket: unknown event type")

	// ErrHubClosed is returned by Join once the hub has shut down.
	ErrHubClosed = errors.New("websocket: hub closed")

	// ErrBackendUnavailable is returned when the cross-instance relay cannot
	// be reached.
	ErrBackendUnavailable = errors.New("websocket: fan-out backend unavailable")

	// ErrRelayFailed is returned by ClusterHub sends that reached local
	// members but could not be published to other instances. It also matches
	// ErrBackendUnavailable.
	ErrRelayFailed = errors.New("websocket: relay to other instances failed")

	// ErrBufferFull is returned by Client.Deliver when the send buffer is full.
	ErrBufferFull = errors.New("websocket: send buffer full")

	// ErrConnectionClosed is returned by Client.Deliver after Close.
	ErrConnectionClosed = errors.New("websocket: connection closed")
)
