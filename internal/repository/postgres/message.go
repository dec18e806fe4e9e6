package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulsechat/pulse/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create persists a message and bumps the parent chat's updated_at inside
// a single transaction. The broker broadcasts only after Create returns,
// which is what guarantees a delivered message is always present in a
// subsequent history fetch.
func (s *MessageStore) Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, receiverID *uuid.UUID, content string) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (chat_id, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, chat_id, sender_id, receiver_id, content, created_at`

	var msg models.Message
	err = tx.QueryRow(ctx, query, chatID, senderID, receiverID, content).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("touch chat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListByChat(ctx context.Context, chatID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	// Cursor-based pagination: before=0 is the first page (newest
	// messages); before=N returns messages with id < N. bigserial IDs
	// are monotonically increasing, so id order is time order.
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT id, chat_id, sender_id, receiver_id, content, created_at
			FROM messages
			WHERE chat_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3`
		args = []any{chatID, before, limit}
	} else {
		query = `
			SELECT id, chat_id, sender_id, receiver_id, content, created_at
			FROM messages
			WHERE chat_id = $1
			ORDER BY id DESC
			LIMIT $2`
		args = []any{chatID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
