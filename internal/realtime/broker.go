package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/repository"
	"go.uber.org/zap"
)

// Broker runs the send pipeline: authorize, persist, broadcast — strictly
// in that order. A message is broadcast only after the store has committed
// it, so anything a subscriber sees is also in a later history fetch.
// It also relays typing signals, which skip both the store check and
// persistence entirely.
type Broker struct {
	rooms    *Rooms
	chats    repository.ChatRepository
	messages repository.MessageRepository
	deliver  func(*Conn, []byte)
	logger   *zap.Logger
}

func NewBroker(
	rooms *Rooms,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	deliver func(*Conn, []byte),
	logger *zap.Logger,
) *Broker {
	return &Broker{
		rooms:    rooms,
		chats:    chats,
		messages: messages,
		deliver:  deliver,
		logger:   logger,
	}
}

// SendMessage handles one inbound message from a connection.
//
// The participant check runs on every send — membership can change
// between a join and a later send, so the subscriber set alone is not an
// authorization decision. Failures of any stage notify only the sender;
// no partial broadcast ever happens, and the broker never retries (the
// client owns resubmission).
func (b *Broker) SendMessage(ctx context.Context, c *Conn, chatID uuid.UUID, receiverID *uuid.UUID, content string) {
	ok, err := b.chats.IsParticipant(ctx, chatID, c.UserID())
	if err != nil {
		b.logger.Error("participant check failed",
			zap.String("chat_id", chatID.String()),
			zap.String("user_id", c.UserID().String()),
			zap.Error(err),
		)
		b.deliver(c, errorFrame("failed to send message"))
		return
	}
	if !ok {
		b.deliver(c, errorFrame(ErrNotAuthorized.Error()))
		return
	}

	msg, err := b.messages.Create(ctx, chatID, c.UserID(), receiverID, content)
	if err != nil {
		b.logger.Error("message persist failed",
			zap.String("chat_id", chatID.String()),
			zap.String("user_id", c.UserID().String()),
			zap.Error(err),
		)
		b.deliver(c, errorFrame("failed to send message"))
		return
	}

	envelope := MessageEnvelope{
		ID:         msg.ID,
		Content:    msg.Content,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		ChatID:     msg.ChatID,
		CreatedAt:  msg.CreatedAt,
		Sender:     c.User().Profile(),
	}
	frame, err := encodeFrame(EventMessage, envelope)
	if err != nil {
		b.logger.Error("encode message event", zap.Error(err))
		b.deliver(c, errorFrame("failed to send message"))
		return
	}

	// Full subscriber set, sender's own devices included: that is how a
	// user's other tabs stay in sync with what they just sent.
	for _, sub := range b.rooms.SubscribersOf(chatID) {
		b.deliver(sub, frame)
	}
}

// SetTyping relays a typing signal to the chat's other subscribers.
// Being in the live subscriber set is the only requirement — no store
// round-trip for an ephemeral, best-effort signal.
func (b *Broker) SetTyping(c *Conn, chatID uuid.UUID, isTyping bool) {
	if !b.rooms.IsSubscribed(c.ID(), chatID) {
		b.deliver(c, errorFrame(ErrNotSubscribed.Error()))
		return
	}

	frame, err := encodeFrame(EventTyping, TypingSignal{
		UserID:   c.UserID(),
		ChatID:   chatID,
		IsTyping: isTyping,
	})
	if err != nil {
		b.logger.Error("encode typing event", zap.Error(err))
		return
	}

	for _, sub := range b.rooms.SubscribersOf(chatID) {
		if sub.ID() == c.ID() {
			continue
		}
		b.deliver(sub, frame)
	}
}
