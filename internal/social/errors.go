package social

import "errors"

var (
	// ErrUserNotFound is returned when the other party of a request does not exist.
	ErrUserNotFound = errors.New("social: user not found")

	// ErrRequestNotFound is returned for an unknown friend request or trip share.
	ErrRequestNotFound = errors.New("social: request not found")

	// ErrTripNotFound is returned when sharing a trip that does not exist.
	ErrTripNotFound = errors.New("social: trip not found")

	// ErrSelfRequest is returned when a user targets themselves.
	ErrSelfRequest = errors.New("social: cannot target yourself")

	// ErrAlreadyPending is returned when an equivalent request is still pending.
	ErrAlreadyPending = errors.New("social: a pending request already exists")

	// ErrAlreadyAnswered is returned when responding to a request that is no
	// longer pending.
	ErrAlreadyAnswered = errors.New("social: request already answered")

	// ErrNotRecipient is returned when someone other than the recipient
	// answers a request.
	ErrNotRecipient = errors.New("social: only the recipient can respond")

	// ErrNotTripOwner is returned when a user shares a trip they do not own.
	ErrNotTripOwner = errors.New("social: only the trip owner can share it")

	// ErrInvalidStatus is returned for a response other than accepted or declined.
	ErrInvalidStatus = errors.New("social: status must be accepted or declined")
)
