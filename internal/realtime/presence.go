package realtime

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Presence derives online/offline transitions from registry changes and
// broadcasts them. Only the first-in and last-out transitions for a user
// produce events: a second tab opening or one of three tabs closing is
// invisible to everyone else.
//
// Presence is never read from the store — it exists only as the live
// connection count. A freshly connected client therefore gets one full
// snapshot of who is online, and everything after that is deltas.
type Presence struct {
	registry *Registry
	deliver  func(*Conn, []byte)
	logger   *zap.Logger
}

func NewPresence(registry *Registry, deliver func(*Conn, []byte), logger *zap.Logger) *Presence {
	return &Presence{
		registry: registry,
		deliver:  deliver,
		logger:   logger,
	}
}

// HandleConnect runs after the registry admits c. If this is the user's
// first connection, everyone else learns they came online. The new
// connection always receives the online-users snapshot, even when it is
// empty, so the client can initialize its presence state.
func (p *Presence) HandleConnect(c *Conn, first bool) {
	if first {
		frame, err := encodeFrame(EventUserOnline, c.UserID())
		if err != nil {
			p.logger.Error("encode online event", zap.Error(err))
			return
		}
		for _, peer := range p.registry.All() {
			if peer.UserID() == c.UserID() {
				continue
			}
			p.deliver(peer, frame)
		}
	}

	online := p.registry.OnlineUsers(c.UserID())
	frame, err := encodeFrame(EventOnlineUsers, online)
	if err != nil {
		p.logger.Error("encode online snapshot", zap.Error(err))
		return
	}
	p.deliver(c, frame)
}

// HandleDisconnect runs after the registry removed a connection. Only the
// user's last connection going away produces an offline broadcast.
func (p *Presence) HandleDisconnect(userID uuid.UUID, last bool) {
	if !last {
		return
	}

	frame, err := encodeFrame(EventUserOffline, userID)
	if err != nil {
		p.logger.Error("encode offline event", zap.Error(err))
		return
	}
	for _, peer := range p.registry.All() {
		p.deliver(peer, frame)
	}
}
