package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
)

// Sender delivers one frame to a live transport. Implementations must be
// safe for concurrent use; frames from one caller are delivered in call
// order.
type Sender interface {
	Send(data []byte) error
}

// Connection is one open transport. The registry owns it; sessions only
// hold its ID as a non-owning back-reference.
type Connection struct {
	ID       string
	OpenedAt time.Time

	// DeviceID is set on the first PLAYER_JOIN over this transport and
	// stays empty for connections that never identify themselves (the host
	// UI mirror, lurkers).
	DeviceID models.DeviceID

	sender Sender
}

// Send writes a frame to the underlying transport
func (c *Connection) Send(data []byte) error {
	return c.sender.Send(data)
}

// ConnectionRegistry tracks every open transport and its optional device
// binding. It is the single owner of Connection values.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	byDevice map[models.DeviceID]string
	onClose  func(deviceID models.DeviceID, connectionID string)

	logger *observability.Logger
}

// NewConnectionRegistry creates an empty registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:    make(map[string]*Connection),
		byDevice: make(map[models.DeviceID]string),
		logger:   observability.WithField("component", "connection_registry"),
	}
}

// OnClose installs the hook invoked when a bound connection is
// unregistered, so the session store can clear its transport
// back-reference. Must be set before connections arrive.
func (r *ConnectionRegistry) OnClose(fn func(deviceID models.DeviceID, connectionID string)) {
	r.onClose = fn
}

// Register admits a new anonymous transport and returns its Connection
func (r *ConnectionRegistry) Register(sender Sender) *Connection {
	conn := &Connection{
		ID:       uuid.New().String(),
		OpenedAt: time.Now().UTC(),
		sender:   sender,
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.WithField("connection_id", conn.ID).Debugf("connection registered (total: %d)", total)
	return conn
}

// Bind associates a connection with a device identity. Rebinding the same
// pair is a no-op; binding to a different device overwrites, and the new
// connection wins any existing claim on the device.
func (r *ConnectionRegistry) Bind(connectionID string, deviceID models.DeviceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connectionID]
	if !ok {
		r.logger.Warnf("bind for unknown connection %s", connectionID)
		return
	}

	if conn.DeviceID == deviceID {
		if r.byDevice[deviceID] != connectionID {
			r.byDevice[deviceID] = connectionID
		}
		return
	}

	// Rebinding to a different device releases the old claim.
	if conn.DeviceID != "" && r.byDevice[conn.DeviceID] == connectionID {
		delete(r.byDevice, conn.DeviceID)
	}

	conn.DeviceID = deviceID
	r.byDevice[deviceID] = connectionID
}

// Unregister removes a closed transport. Safe to call for connections that
// were never bound. Fires the close hook after the maps are consistent so
// the session store never observes a stale transport reference.
func (r *ConnectionRegistry) Unregister(connectionID string) {
	r.mu.Lock()
	conn, ok := r.conns[connectionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connectionID)

	var boundDevice models.DeviceID
	if conn.DeviceID != "" && r.byDevice[conn.DeviceID] == connectionID {
		delete(r.byDevice, conn.DeviceID)
		boundDevice = conn.DeviceID
	}
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.WithField("connection_id", connectionID).Debugf("connection unregistered (total: %d)", total)

	if boundDevice != "" && r.onClose != nil {
		r.onClose(boundDevice, connectionID)
	}
}

// LiveConnectionFor returns the current open transport for a device, or nil
// if the device is disconnected.
func (r *ConnectionRegistry) LiveConnectionFor(deviceID models.DeviceID) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionID, ok := r.byDevice[deviceID]
	if !ok {
		return nil
	}
	return r.conns[connectionID]
}

// Get returns the connection with the given id, or nil
func (r *ConnectionRegistry) Get(connectionID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connectionID]
}

// Connections returns a snapshot of all open transports
func (r *ConnectionRegistry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// Count returns the number of open transports, for diagnostics
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
