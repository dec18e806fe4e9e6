package realtime

import "errors"

// Sentinel errors for the realtime layer. Authorization and not-found
// failures are terminal for the operation that hit them: they become an
// error event to the originating connection and nothing else.
var (
	// ErrNotAuthorized means the connection's user is not a participant
	// of the chat it tried to join or send to.
	ErrNotAuthorized = errors.New("not a participant in this chat")

	// ErrRoomNotFound means the chat does not exist in the store.
	ErrRoomNotFound = errors.New("chat not found")

	// ErrNotSubscribed means the connection has not joined the chat it
	// tried to signal typing in.
	ErrNotSubscribed = errors.New("not subscribed to this chat")
)
