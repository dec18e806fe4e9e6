package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps users to their live connections. One user may hold many
// connections at once (multiple tabs, multiple devices); the registry is
// the single source of truth for "who is connected right now".
//
// All methods are safe for concurrent use. Admit and Remove report the
// first-in/last-out transitions the presence tracker cares about, computed
// under the same lock as the mutation so concurrent admits for one user
// can never both observe "first".
type Registry struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]map[uuid.UUID]*Conn
	byConn map[uuid.UUID]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[uuid.UUID]map[uuid.UUID]*Conn),
		byConn: make(map[uuid.UUID]*Conn),
	}
}

// Admit registers a live connection under its user and reports whether it
// is the user's first live connection.
func (r *Registry) Admit(c *Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[c.UserID()]
	if !ok {
		conns = make(map[uuid.UUID]*Conn)
		r.byUser[c.UserID()] = conns
	}
	conns[c.ID()] = c
	r.byConn[c.ID()] = c

	return len(conns) == 1
}

// Remove deregisters a connection and reports the owning user and whether
// it was that user's last live connection. Removing an unknown connection
// is a no-op with ok=false, which makes duplicate disconnect signals from
// the transport harmless.
func (r *Registry) Remove(connID uuid.UUID) (userID uuid.UUID, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return uuid.Nil, false, false
	}
	delete(r.byConn, connID)

	userID = c.UserID()
	conns := r.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		last = true
	}

	return userID, last, true
}

// ConnectionsFor returns a snapshot of a user's live connections.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	return conns
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.byConn))
	for _, c := range r.byConn {
		conns = append(conns, c)
	}
	return conns
}

// OnlineUsers returns the set of users with at least one live connection,
// excluding the given user. Used for the snapshot a new connection
// receives on admission.
func (r *Registry) OnlineUsers(except uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(r.byUser))
	for userID := range r.byUser {
		if userID == except {
			continue
		}
		users = append(users, userID)
	}
	return users
}
