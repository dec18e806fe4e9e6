package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/repository"
)

// Rooms maps chats to the connections currently subscribed to their
// events. Subscription is per connection, not per user: each of a user's
// devices joins on its own and receives its own copy of every broadcast.
//
// Joining requires a participant check against the store on every call —
// participation lives in Postgres and can change at any time, and joins
// are rare next to sends, so nothing is cached here.
type Rooms struct {
	chats repository.ChatRepository

	mu     sync.RWMutex
	byRoom map[uuid.UUID]map[uuid.UUID]*Conn
	byConn map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewRooms(chats repository.ChatRepository) *Rooms {
	return &Rooms{
		chats:  chats,
		byRoom: make(map[uuid.UUID]map[uuid.UUID]*Conn),
		byConn: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Join subscribes a connection to a chat. Returns ErrRoomNotFound if the
// chat does not exist, ErrNotAuthorized if the connection's user is not a
// participant. Re-joining a chat the connection is already subscribed to
// is a no-op.
func (m *Rooms) Join(ctx context.Context, c *Conn, chatID uuid.UUID) error {
	chat, err := m.chats.GetByID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("look up chat: %w", err)
	}
	if chat == nil {
		return ErrRoomNotFound
	}

	ok, err := m.chats.IsParticipant(ctx, chatID, c.UserID())
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return ErrNotAuthorized
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The store checks above can race with a disconnect. LeaveAll takes
	// this same lock after teardown begins, so checking here guarantees a
	// join that lost the race never leaves a ghost subscription.
	if c.closing() {
		return nil
	}

	room, exists := m.byRoom[chatID]
	if !exists {
		room = make(map[uuid.UUID]*Conn)
		m.byRoom[chatID] = room
	}
	room[c.ID()] = c

	rooms, exists := m.byConn[c.ID()]
	if !exists {
		rooms = make(map[uuid.UUID]struct{})
		m.byConn[c.ID()] = rooms
	}
	rooms[chatID] = struct{}{}

	return nil
}

// Leave unsubscribes a connection from one chat. No-op if not subscribed.
func (m *Rooms) Leave(connID uuid.UUID, chatID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(connID, chatID)
}

// LeaveAll unsubscribes a connection from every chat. Called on
// disconnect, after the connection has been marked as closing.
func (m *Rooms) LeaveAll(connID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for chatID := range m.byConn[connID] {
		m.removeLocked(connID, chatID)
	}
}

func (m *Rooms) removeLocked(connID uuid.UUID, chatID uuid.UUID) {
	if room, exists := m.byRoom[chatID]; exists {
		delete(room, connID)
		if len(room) == 0 {
			delete(m.byRoom, chatID)
		}
	}
	if rooms, exists := m.byConn[connID]; exists {
		delete(rooms, chatID)
		if len(rooms) == 0 {
			delete(m.byConn, connID)
		}
	}
}

// SubscribersOf returns a snapshot of the connections subscribed to a
// chat, for fan-out. Joins and leaves that land after the snapshot simply
// miss or catch this broadcast.
func (m *Rooms) SubscribersOf(chatID uuid.UUID) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]*Conn, 0, len(m.byRoom[chatID]))
	for _, c := range m.byRoom[chatID] {
		subs = append(subs, c)
	}
	return subs
}

// IsSubscribed reports whether a connection has joined a chat. The typing
// relay uses this instead of a store lookup.
func (m *Rooms) IsSubscribed(connID uuid.UUID, chatID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byConn[connID][chatID]
	return ok
}
