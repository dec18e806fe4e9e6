package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/models"
)

// In-memory fakes for the repository interfaces, so the realtime layer
// can be exercised without Postgres.

type fakeChatRepo struct {
	mu           sync.Mutex
	chats        map[uuid.UUID]models.Chat
	participants map[uuid.UUID]map[uuid.UUID]bool
	err          error // when set, every method fails with it
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		chats:        make(map[uuid.UUID]models.Chat),
		participants: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

// addChat registers a chat with the given participants and returns its ID.
func (f *fakeChatRepo) addChat(participantIDs ...uuid.UUID) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New()
	f.chats[id] = models.Chat{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.participants[id] = make(map[uuid.UUID]bool)
	for _, userID := range participantIDs {
		f.participants[id][userID] = true
	}
	return id
}

func (f *fakeChatRepo) Create(ctx context.Context, name string, isGroup bool, participantIDs []uuid.UUID) (*models.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := f.addChat(participantIDs...)
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.chats[id]
	ch.Name = name
	ch.IsGroup = isGroup
	f.chats[id] = ch
	return &ch, nil
}

func (f *fakeChatRepo) GetByID(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch, ok := f.chats[chatID]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (f *fakeChatRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	chats := make([]models.Chat, 0)
	for id, members := range f.participants {
		if members[userID] {
			chats = append(chats, f.chats[id])
		}
	}
	return chats, nil
}

func (f *fakeChatRepo) ListParticipants(ctx context.Context, chatID uuid.UUID) ([]models.ChatParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	participants := make([]models.ChatParticipant, 0)
	for userID := range f.participants[chatID] {
		participants = append(participants, models.ChatParticipant{ChatID: chatID, UserID: userID})
	}
	return participants, nil
}

func (f *fakeChatRepo) IsParticipant(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.participants[chatID][userID], nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages []models.Message
	failing  bool // simulate a store outage
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (f *fakeMessageRepo) Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, receiverID *uuid.UUID, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("store unavailable")
	}
	f.nextID++
	msg := models.Message{
		ID:         f.nextID,
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeMessageRepo) ListByChat(ctx context.Context, chatID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := make([]models.Message, 0)
	for i := len(f.messages) - 1; i >= 0 && len(msgs) < limit; i-- {
		m := f.messages[i]
		if m.ChatID != chatID {
			continue
		}
		if before > 0 && m.ID >= before {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// contains reports whether a message ID has been durably stored.
func (f *fakeMessageRepo) contains(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]models.User)}
}

func (f *fakeUserRepo) add(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeUserRepo) Create(ctx context.Context, email, name, avatar, passwordHash string) (*models.User, error) {
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Avatar:       avatar,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.add(u)
	return &u, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// Test connection helpers. Unit tests never run the pumps: frames are
// read straight off the send channel.

func testUser(name string) models.User {
	return models.User{
		ID:    uuid.New(),
		Email: name + "@example.com",
		Name:  name,
	}
}

func testConn(user models.User) *Conn {
	return newConn(nil, user)
}

// recvFrame pops the next queued frame for a connection, failing the test
// if nothing arrives.
func recvFrame(t *testing.T, c *Conn) Frame {
	t.Helper()
	select {
	case raw := <-c.send:
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

// expectEvent asserts the next frame's event name and decodes its payload
// into out (when out is non-nil).
func expectEvent(t *testing.T, c *Conn, event string, out any) {
	t.Helper()
	f := recvFrame(t, c)
	if f.Event != event {
		t.Fatalf("event = %q, want %q (payload: %s)", f.Event, event, f.Data)
	}
	if out != nil {
		if err := json.Unmarshal(f.Data, out); err != nil {
			t.Fatalf("unmarshal %s payload: %v", event, err)
		}
	}
}

// expectNoEvent asserts no frame is queued for a connection.
func expectNoEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}
