package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pulsechat/pulse/internal/repository"
	"go.uber.org/zap"
)

// opTimeout bounds every store call made on behalf of a client event.
// A stalled Postgres turns into a failed send for that one operation,
// never a hung read loop.
const opTimeout = 5 * time.Second

// Hub wires the realtime components together and owns the connection
// lifecycle: admit on handshake, dispatch client events, tear down on
// disconnect. Every connection runs its own read and write goroutines;
// the hub itself holds no event loop.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	presence *Presence
	broker   *Broker
	logger   *zap.Logger
}

func NewHub(chats repository.ChatRepository, messages repository.MessageRepository, logger *zap.Logger) *Hub {
	h := &Hub{
		registry: NewRegistry(),
		rooms:    NewRooms(chats),
		logger:   logger,
	}
	h.presence = NewPresence(h.registry, h.deliver, logger)
	h.broker = NewBroker(h.rooms, chats, messages, h.deliver, logger)
	return h
}

// deliver enqueues a frame for one connection. A connection whose queue
// is full cannot keep up; it gets dropped so the broadcast can proceed to
// everyone else.
func (h *Hub) deliver(c *Conn, frame []byte) {
	if c.enqueue(frame) {
		return
	}
	if c.closing() {
		return
	}
	h.logger.Warn("outbound queue full, dropping connection",
		zap.String("conn_id", c.ID().String()),
		zap.String("user_id", c.UserID().String()),
	)
	go h.Disconnect(c)
}

// Connect admits an authenticated connection: registry first, then the
// presence side effects (online broadcast if first device, snapshot to
// the newcomer).
func (h *Hub) Connect(c *Conn) {
	first := h.registry.Admit(c)
	h.presence.HandleConnect(c, first)

	h.logger.Info("connection admitted",
		zap.String("conn_id", c.ID().String()),
		zap.String("user_id", c.UserID().String()),
		zap.Bool("first_device", first),
	)
}

// Disconnect tears a connection down: mark closing, unsubscribe from all
// chats, deregister, then the presence offline broadcast if it was the
// user's last device. Idempotent — the transport may report a disconnect
// more than once, and the slow-client drop path races the read loop's own
// teardown.
func (h *Hub) Disconnect(c *Conn) {
	c.shutdown()
	h.rooms.LeaveAll(c.ID())

	userID, last, ok := h.registry.Remove(c.ID())
	if !ok {
		return
	}
	h.presence.HandleDisconnect(userID, last)

	h.logger.Info("connection removed",
		zap.String("conn_id", c.ID().String()),
		zap.String("user_id", userID.String()),
		zap.Bool("last_device", last),
	)
}

// readLoop consumes client frames until the connection dies, then runs
// the disconnect path. Each event is handled synchronously on this
// goroutine: two messages from the same connection broadcast in the order
// they persisted, while other connections' loops run independently.
func (h *Hub) readLoop(c *Conn) {
	defer h.Disconnect(c)

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) && !c.closing() {
				h.logger.Warn("websocket read error",
					zap.String("conn_id", c.ID().String()),
					zap.Error(err),
				)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.deliver(c, errorFrame("malformed event"))
			continue
		}
		h.dispatch(c, frame)
	}
}

// dispatch routes one decoded client frame to the owning component.
// Unknown events and bad payloads come back as error events rather than
// dropping the connection.
func (h *Hub) dispatch(c *Conn, frame Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch frame.Event {
	case EventJoinChat:
		var req chatRef
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			h.deliver(c, errorFrame("malformed joinChat payload"))
			return
		}
		if err := h.rooms.Join(ctx, c, req.ChatID); err != nil {
			switch err {
			case ErrRoomNotFound, ErrNotAuthorized:
				h.deliver(c, errorFrame(err.Error()))
			default:
				h.logger.Error("join failed",
					zap.String("chat_id", req.ChatID.String()),
					zap.Error(err),
				)
				h.deliver(c, errorFrame("failed to join chat"))
			}
		}

	case EventLeaveChat:
		var req chatRef
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			h.deliver(c, errorFrame("malformed leaveChat payload"))
			return
		}
		h.rooms.Leave(c.ID(), req.ChatID)

	case EventSendMessage:
		var req sendMessageRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Content == "" {
			h.deliver(c, errorFrame("malformed sendMessage payload"))
			return
		}
		h.broker.SendMessage(ctx, c, req.ChatID, req.ReceiverID, req.Content)

	case EventTyping:
		var req typingRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			h.deliver(c, errorFrame("malformed typing payload"))
			return
		}
		h.broker.SetTyping(c, req.ChatID, req.IsTyping)

	default:
		h.deliver(c, errorFrame("unknown event: "+frame.Event))
	}
}
