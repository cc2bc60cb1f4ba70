package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyquiz/server/internal/models"
)

func newTestRepo(t *testing.T) *SessionRepository {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSessionRepository(db)
}

func sampleSession(deviceID models.DeviceID) *models.PlayerSession {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.PlayerSession{
		DeviceID:   deviceID,
		PlayerID:   "p-" + string(deviceID),
		TeamName:   "Team " + string(deviceID),
		Status:     models.StatusPending,
		JoinedAt:   now,
		LastSeenAt: now,
	}
}

func TestSessionRepository_UpsertAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := sampleSession("d1")
	second := sampleSession("d2")
	second.JoinedAt = first.JoinedAt.Add(time.Second)
	second.LastSeenAt = second.JoinedAt

	require.NoError(t, repo.UpsertSession(ctx, first))
	require.NoError(t, repo.UpsertSession(ctx, second))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, models.DeviceID("d1"), sessions[0].DeviceID)
	assert.Equal(t, models.DeviceID("d2"), sessions[1].DeviceID)
	assert.Equal(t, "Team d1", sessions[0].TeamName)
	assert.Nil(t, sessions[0].ApprovedAt)
}

func TestSessionRepository_UpsertIsIdempotentPerDevice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := sampleSession("d1")
	require.NoError(t, repo.UpsertSession(ctx, sess))

	approvedAt := time.Now().UTC().Truncate(time.Second)
	sess.Status = models.StatusApproved
	sess.ApprovedAt = &approvedAt
	sess.TeamName = "Renamed"
	sess.PhotoPath = "d1/123.jpg"
	require.NoError(t, repo.UpsertSession(ctx, sess))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, approvedAt.Equal(*got.ApprovedAt))
	assert.Equal(t, "Renamed", got.TeamName)
	assert.Equal(t, "d1/123.jpg", got.PhotoPath)
}

func TestSessionRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertSession(ctx, sampleSession("d1")))
	require.NoError(t, repo.DeleteSession(ctx, "d1"))
	require.NoError(t, repo.DeleteSession(ctx, "never-existed"))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSessionRepository_EmptyRoster(t *testing.T) {
	repo := newTestRepo(t)

	sessions, err := repo.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
