package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. PasswordHash never leaves the server:
// the json:"-" tag keeps it out of every API response.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the subset of User that gets denormalized into broadcast
// payloads, so clients can render a message without a second lookup.
type Profile struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
}

// Profile returns the public fields of a user.
func (u User) Profile() Profile {
	return Profile{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Avatar: u.Avatar,
	}
}

// Chat is a conversation. Direct chats have two participants and no name;
// group chats may have any number and carry a display name.
//
// UpdatedAt is bumped inside the same transaction that inserts a message,
// so "order chats by recent activity" stays consistent with history.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatParticipant is the join table between chats and users. Participation
// here is the durable authorization record the realtime layer checks on
// every room join and every send.
type ChatParticipant struct {
	ChatID   uuid.UUID `json:"chat_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Message is a single persisted chat message.
//
// Messages use bigserial (int64) IDs: they are the highest-volume table,
// and a monotonically increasing integer doubles as the pagination cursor.
// ReceiverID is set only for direct messages; nil in group chats.
type Message struct {
	ID         int64      `json:"id"`
	ChatID     uuid.UUID  `json:"chat_id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	ReceiverID *uuid.UUID `json:"receiver_id,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
}
