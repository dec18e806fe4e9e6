package realtime

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func TestRegistryFirstAndLast(t *testing.T) {
	r := NewRegistry()
	user := testUser("alice")

	c1 := testConn(user)
	c2 := testConn(user)

	if first := r.Admit(c1); !first {
		t.Error("first connection should report first=true")
	}
	if first := r.Admit(c2); first {
		t.Error("second connection for same user should report first=false")
	}

	if _, last, ok := r.Remove(c1.ID()); !ok || last {
		t.Errorf("removing one of two connections: last=%v ok=%v, want false true", last, ok)
	}
	userID, last, ok := r.Remove(c2.ID())
	if !ok || !last {
		t.Errorf("removing final connection: last=%v ok=%v, want true true", last, ok)
	}
	if userID != user.ID {
		t.Errorf("Remove returned user %v, want %v", userID, user.ID)
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	c := testConn(testUser("alice"))

	r.Admit(c)
	if _, _, ok := r.Remove(c.ID()); !ok {
		t.Fatal("first remove should succeed")
	}
	if _, last, ok := r.Remove(c.ID()); ok || last {
		t.Errorf("second remove: last=%v ok=%v, want false false", last, ok)
	}
	if _, _, ok := r.Remove(uuid.New()); ok {
		t.Error("removing unknown connection should report ok=false")
	}
}

func TestRegistryConnectionsFor(t *testing.T) {
	r := NewRegistry()
	alice := testUser("alice")
	bob := testUser("bob")

	a1, a2 := testConn(alice), testConn(alice)
	b1 := testConn(bob)
	r.Admit(a1)
	r.Admit(a2)
	r.Admit(b1)

	if got := len(r.ConnectionsFor(alice.ID)); got != 2 {
		t.Errorf("alice has %d connections, want 2", got)
	}
	if got := len(r.ConnectionsFor(bob.ID)); got != 1 {
		t.Errorf("bob has %d connections, want 1", got)
	}
	if got := len(r.ConnectionsFor(uuid.New())); got != 0 {
		t.Errorf("unknown user has %d connections, want 0", got)
	}
	if got := len(r.All()); got != 3 {
		t.Errorf("All() returned %d connections, want 3", got)
	}

	online := r.OnlineUsers(alice.ID)
	if len(online) != 1 || online[0] != bob.ID {
		t.Errorf("OnlineUsers(alice) = %v, want [%v]", online, bob.ID)
	}
}

// Exactly one admit observes "first" and exactly one remove observes
// "last", no matter how the goroutines interleave.
func TestRegistryConcurrentTransitions(t *testing.T) {
	r := NewRegistry()
	user := testUser("alice")

	const n = 64
	conns := make([]*Conn, n)
	for i := range conns {
		conns[i] = testConn(user)
	}

	var firsts atomic.Int64
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			if r.Admit(c) {
				firsts.Add(1)
			}
		}(c)
	}
	wg.Wait()
	if got := firsts.Load(); got != 1 {
		t.Errorf("%d admits observed first=true, want exactly 1", got)
	}

	var lasts atomic.Int64
	for _, c := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			if _, last, ok := r.Remove(c.ID()); ok && last {
				lasts.Add(1)
			}
		}(c)
	}
	wg.Wait()
	if got := lasts.Load(); got != 1 {
		t.Errorf("%d removes observed last=true, want exactly 1", got)
	}
	if got := len(r.All()); got != 0 {
		t.Errorf("registry still holds %d connections after removing all", got)
	}
}
