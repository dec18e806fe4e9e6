package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulsechat/pulse/internal/models"
)

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

// Create inserts the chat and all of its participant rows in one
// transaction. A chat with half its participants is worse than no chat,
// so any failure rolls the whole thing back.
func (s *ChatStore) Create(ctx context.Context, name string, isGroup bool, participantIDs []uuid.UUID) (*models.Chat, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chats (id, name, is_group, created_at, updated_at)
		VALUES (uuid_generate_v4(), NULLIF($1, ''), $2, now(), now())
		RETURNING id, COALESCE(name, ''), is_group, created_at, updated_at`

	var ch models.Chat
	err = tx.QueryRow(ctx, query, name, isGroup).Scan(
		&ch.ID,
		&ch.Name,
		&ch.IsGroup,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	for _, userID := range participantIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_participants (chat_id, user_id, joined_at)
			VALUES ($1, $2, now())
			ON CONFLICT (chat_id, user_id) DO NOTHING`,
			ch.ID, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ch, nil
}

func (s *ChatStore) GetByID(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	query := `
		SELECT id, COALESCE(name, ''), is_group, created_at, updated_at
		FROM chats
		WHERE id = $1`

	var ch models.Chat
	err := s.pool.QueryRow(ctx, query, chatID).Scan(
		&ch.ID,
		&ch.Name,
		&ch.IsGroup,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &ch, nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	// updated_at is maintained by the message-create transaction, so this
	// ordering is "most recent activity first".
	query := `
		SELECT c.id, COALESCE(c.name, ''), c.is_group, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		var ch models.Chat
		if err := rows.Scan(
			&ch.ID,
			&ch.Name,
			&ch.IsGroup,
			&ch.CreatedAt,
			&ch.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	return chats, nil
}

func (s *ChatStore) ListParticipants(ctx context.Context, chatID uuid.UUID) ([]models.ChatParticipant, error) {
	query := `
		SELECT chat_id, user_id, joined_at
		FROM chat_participants
		WHERE chat_id = $1`

	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]models.ChatParticipant, 0)
	for rows.Next() {
		var p models.ChatParticipant
		if err := rows.Scan(&p.ChatID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return participants, nil
}

func (s *ChatStore) IsParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) (bool, error) {
	// SELECT EXISTS stops at the first matching row. This runs on every
	// message send and room join, so it has to stay cheap.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants
			WHERE chat_id = $1 AND user_id = $2
		)`

	var exists bool
	err := s.pool.QueryRow(ctx, query, chatID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists, nil
}
