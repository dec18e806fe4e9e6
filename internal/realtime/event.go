package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/models"
)

// Event names on the wire. Client events arrive as requests; server events
// are pushed to subscribers.
const (
	// client → server
	EventJoinChat    = "joinChat"
	EventLeaveChat   = "leaveChat"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"

	// server → client
	EventMessage     = "message"
	EventUserOnline  = "userOnline"
	EventUserOffline = "userOffline"
	EventOnlineUsers = "onlineUsers"
	EventError       = "error"
)

// Frame is the envelope every WebSocket text message uses, in both
// directions: an event name plus an event-specific payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// chatRef is the payload for joinChat and leaveChat.
type chatRef struct {
	ChatID uuid.UUID `json:"chatId"`
}

type sendMessageRequest struct {
	Content    string     `json:"content"`
	ChatID     uuid.UUID  `json:"chatId"`
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
}

type typingRequest struct {
	ChatID   uuid.UUID `json:"chatId"`
	IsTyping bool      `json:"isTyping"`
}

// MessageEnvelope is the broadcast form of a persisted message. It is
// built from the stored row, never from the inbound request, and carries
// the sender's profile so clients can render without another fetch.
type MessageEnvelope struct {
	ID         int64          `json:"id"`
	Content    string         `json:"content"`
	SenderID   uuid.UUID      `json:"senderId"`
	ReceiverID *uuid.UUID     `json:"receiverId,omitempty"`
	ChatID     uuid.UUID      `json:"chatId"`
	CreatedAt  time.Time      `json:"createdAt"`
	Sender     models.Profile `json:"sender"`
}

// TypingSignal is relayed to a chat's other subscribers as-is. It is
// never persisted or queued beyond the per-connection send buffer.
type TypingSignal struct {
	UserID   uuid.UUID `json:"userId"`
	ChatID   uuid.UUID `json:"chatId"`
	IsTyping bool      `json:"isTyping"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// encodeFrame marshals an event payload into a wire frame.
func encodeFrame(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: payload})
}

// errorFrame builds an error event for the originating connection.
// The payload is a fixed shape of plain strings, so marshalling it
// cannot fail.
func errorFrame(message string) []byte {
	frame, _ := encodeFrame(EventError, errorPayload{Message: message})
	return frame
}
