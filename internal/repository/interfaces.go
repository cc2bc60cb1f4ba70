package repository

import (
	"context"

	"github.com/partyquiz/server/internal/models"
)

// SessionRepo mirrors the lobby roster to durable storage. The in-memory
// session store is the authority; this exists so a host restart mid-game
// does not throw away approvals.
type SessionRepo interface {
	UpsertSession(ctx context.Context, sess *models.PlayerSession) error
	ListSessions(ctx context.Context) ([]models.PlayerSession, error)
	DeleteSession(ctx context.Context, deviceID models.DeviceID) error
}
