package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/models"
)

// Every method takes context.Context first: these all hit the network, and
// the caller's deadline (HTTP request context, or the realtime layer's
// per-operation timeout) must be able to cancel the query.
//
// Lookup methods return (nil, nil) for "not found" — the caller decides
// whether absence is an error. Only genuine store failures return non-nil
// errors.

// UserRepository handles account data.
type UserRepository interface {
	// Create inserts a new user and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, email, name, avatar, passwordHash string) (*models.User, error)

	// GetByID returns a user, or nil, nil if the user does not exist.
	// The realtime handshake calls this to confirm the token's subject
	// still exists and to fetch the profile fields bound to the connection.
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail looks a user up by email. Used for login.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ChatRepository handles conversations and their participant sets.
type ChatRepository interface {
	// Create inserts a chat and its participant rows in one transaction.
	Create(ctx context.Context, name string, isGroup bool, participantIDs []uuid.UUID) (*models.Chat, error)

	// GetByID returns a chat, or nil, nil if it does not exist.
	GetByID(ctx context.Context, chatID uuid.UUID) (*models.Chat, error)

	// ListForUser returns the chats a user participates in, most recently
	// active first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)

	// ListParticipants returns a chat's participant rows.
	ListParticipants(ctx context.Context, chatID uuid.UUID) ([]models.ChatParticipant, error)

	// IsParticipant checks whether a user belongs to a chat. Hot path:
	// the broker calls this on every send and every room join, never
	// caching the answer, because participation can change at any time.
	IsParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) (bool, error)
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create persists a message and bumps the parent chat's updated_at in
	// a single transaction. Either both happen or neither does — the
	// broker broadcasts only after this returns.
	Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, receiverID *uuid.UUID, content string) (*models.Message, error)

	// ListByChat returns messages in a chat, newest first, using
	// cursor-based pagination: before=0 means "from the latest".
	ListByChat(ctx context.Context, chatID uuid.UUID, before int64, limit int) ([]models.Message, error)
}
