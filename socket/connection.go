package socket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/bulkhead/id"
)

// Connection is the per-socket state: the authenticated identity and
// the organization frozen at handshake time. Every frame on the
// connection executes under this one organization; re-scoping requires
// a new connection.
type Connection struct {
	// ID uniquely identifies this connection.
	ID string

	// Identity is the authenticated identity behind the socket.
	Identity *Identity

	// ConnectedAt records when the handshake completed.
	ConnectedAt time.Time

	// LastActivity tracks the most recent frame received.
	LastActivity atomic.Value // time.Time
}

// NewConnection creates connection state for an authenticated socket.
func NewConnection(connID string, identity *Identity) *Connection {
	c := &Connection{
		ID:          connID,
		Identity:    identity,
		ConnectedAt: time.Now().UTC(),
	}
	c.LastActivity.Store(time.Now().UTC())
	return c
}

// OrgID returns the organization the connection is scoped to.
func (c *Connection) OrgID() id.OrgID { return c.Identity.OrgID }

// Touch updates the last activity timestamp.
func (c *Connection) Touch() {
	c.LastActivity.Store(time.Now().UTC())
}

// ConnectionManager tracks live connections.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionManager creates an empty connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{conns: make(map[string]*Connection)}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.conns[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove unregisters a connection.
func (cm *ConnectionManager) Remove(connID string) {
	cm.mu.Lock()
	delete(cm.conns, connID)
	cm.mu.Unlock()
}

// Get returns a connection by ID.
func (cm *ConnectionManager) Get(connID string) (*Connection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.conns[connID]
	return c, ok
}

// Count returns the number of live connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// ByOrg returns a snapshot of connections scoped to an organization.
func (cm *ConnectionManager) ByOrg(orgID id.OrgID) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var out []*Connection
	for _, c := range cm.conns {
		if c.OrgID() == orgID {
			out = append(out, c)
		}
	}
	return out
}
