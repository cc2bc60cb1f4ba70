package services

import (
	"context"
	"sync"
	"time"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
	"github.com/partyquiz/server/internal/repository"
)

// SessionStore holds the authoritative per-device lobby state, independent
// of transport churn. At most one session exists per device id. The store
// optionally mirrors the roster to a SessionRepo so an accidental host
// restart mid-game does not force re-approval of every team; mirror writes
// are asynchronous and never block or fail a lobby operation.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[models.DeviceID]*models.PlayerSession
	order    []models.DeviceID // join order, for pending-team listings

	registry *ConnectionRegistry
	repo     repository.SessionRepo // nil disables mirroring
	logger   *observability.Logger
}

// NewSessionStore creates a store backed by the given registry for liveness
// checks. repo may be nil.
func NewSessionStore(registry *ConnectionRegistry, repo repository.SessionRepo) *SessionStore {
	return &SessionStore{
		sessions: make(map[models.DeviceID]*models.PlayerSession),
		registry: registry,
		repo:     repo,
		logger:   observability.WithField("component", "session_store"),
	}
}

// Hydrate loads the persisted roster. Hydrated sessions start with no
// transport reference; devices re-attach on their next join.
func (s *SessionStore) Hydrate(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range sessions {
		sess := sessions[i]
		sess.ConnectionID = ""
		if _, exists := s.sessions[sess.DeviceID]; exists {
			continue
		}
		s.sessions[sess.DeviceID] = &sess
		s.order = append(s.order, sess.DeviceID)
	}

	s.logger.Infof("hydrated %d sessions from roster", len(sessions))
	return nil
}

// UpsertOnJoin creates or updates the session for a joining device and
// returns a snapshot of it.
//
// A join from a device whose session is already Approved is a reconnection:
// team name and transport are refreshed but status and approval time are
// preserved, so approved players never queue for re-approval. Any other
// existing session is treated as a fresh join and resets to Pending — a
// declined team may retry under a new name.
func (s *SessionStore) UpsertOnJoin(deviceID models.DeviceID, playerID, teamName, connectionID string) models.PlayerSession {
	now := time.Now().UTC()

	s.mu.Lock()
	sess, ok := s.sessions[deviceID]
	if !ok {
		sess = &models.PlayerSession{
			DeviceID: deviceID,
			Status:   models.StatusPending,
			JoinedAt: now,
		}
		s.sessions[deviceID] = sess
		s.order = append(s.order, deviceID)
	} else if sess.Status != models.StatusApproved {
		sess.Status = models.StatusPending
		sess.ApprovedAt = nil
	}

	sess.PlayerID = playerID
	sess.TeamName = teamName
	sess.ConnectionID = connectionID
	sess.LastSeenAt = now
	snapshot := *sess
	s.mu.Unlock()

	s.persist(snapshot)
	return snapshot
}

// UpdatePhoto sets the stored photo reference on an existing session.
// Returns false (and logs) when the device has never joined.
func (s *SessionStore) UpdatePhoto(deviceID models.DeviceID, photoPath string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[deviceID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warnf("photo update for unknown device %s", deviceID)
		return false
	}
	sess.PhotoPath = photoPath
	sess.LastSeenAt = time.Now().UTC()
	snapshot := *sess
	s.mu.Unlock()

	s.persist(snapshot)
	return true
}

// SetStatus transitions the approval state. It fails (returns false) when
// the device has no session or no live transport: an approval or decline
// that cannot reach a socket is meaningless and must not flip state.
func (s *SessionStore) SetStatus(deviceID models.DeviceID, status models.SessionStatus, approvedAt *time.Time) bool {
	if s.registry.LiveConnectionFor(deviceID) == nil {
		return false
	}

	s.mu.Lock()
	sess, ok := s.sessions[deviceID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	sess.Status = status
	if status == models.StatusApproved {
		sess.ApprovedAt = approvedAt
	} else {
		sess.ApprovedAt = nil
	}
	snapshot := *sess
	s.mu.Unlock()

	s.persist(snapshot)
	return true
}

// ClearTransport nulls the session's transport back-reference, but only if
// it still points at the closing connection — a newer transport for the
// same device must not be clobbered by the old one's close.
func (s *SessionStore) ClearTransport(deviceID models.DeviceID, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[deviceID]; ok && sess.ConnectionID == connectionID {
		sess.ConnectionID = ""
	}
}

// Get returns a snapshot of the session for a device
func (s *SessionStore) Get(deviceID models.DeviceID) (models.PlayerSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[deviceID]
	if !ok {
		return models.PlayerSession{}, false
	}
	return *sess, true
}

// ListByStatus returns sessions in join order, filtered by status
func (s *SessionStore) ListByStatus(status models.SessionStatus) []models.PlayerSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PlayerSession, 0, len(s.order))
	for _, deviceID := range s.order {
		if sess, ok := s.sessions[deviceID]; ok && sess.Status == status {
			out = append(out, *sess)
		}
	}
	return out
}

// All returns every session in join order
func (s *SessionStore) All() []models.PlayerSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PlayerSession, 0, len(s.order))
	for _, deviceID := range s.order {
		if sess, ok := s.sessions[deviceID]; ok {
			out = append(out, *sess)
		}
	}
	return out
}

// Count returns the number of sessions
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// persist mirrors a session to the roster repo without holding the store
// lock. Failures are logged and swallowed: the in-memory state is the
// authority.
func (s *SessionStore) persist(sess models.PlayerSession) {
	if s.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.UpsertSession(ctx, &sess); err != nil {
			s.logger.WithField("device_id", string(sess.DeviceID)).Errorf("roster mirror failed: %v", err)
		}
	}()
}
