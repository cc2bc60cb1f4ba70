package repository

import (
	"context"
	"database/sql"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
)

// SessionRepository implements SessionRepo for PostgreSQL/SQLite
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

var _ SessionRepo = (*SessionRepository)(nil)

func (r *SessionRepository) UpsertSession(ctx context.Context, sess *models.PlayerSession) error {
	ctx, span := observability.StartDBSpan(ctx, "UPSERT", "sessions")
	defer span.End()

	query := `INSERT INTO sessions (device_id, player_id, team_name, status, approved_at, photo_path, joined_at, last_seen_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT(device_id) DO UPDATE SET
				player_id = excluded.player_id,
				team_name = excluded.team_name,
				status = excluded.status,
				approved_at = excluded.approved_at,
				photo_path = excluded.photo_path,
				last_seen_at = excluded.last_seen_at`

	var approvedAt sql.NullTime
	if sess.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *sess.ApprovedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		string(sess.DeviceID), sess.PlayerID, sess.TeamName, string(sess.Status),
		approvedAt, sess.PhotoPath, sess.JoinedAt, sess.LastSeenAt,
	)
	if err != nil {
		observability.RecordError(span, err)
	}
	return err
}

func (r *SessionRepository) ListSessions(ctx context.Context) ([]models.PlayerSession, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "sessions")
	defer span.End()

	query := `SELECT device_id, player_id, team_name, status, approved_at, photo_path, joined_at, last_seen_at
			  FROM sessions ORDER BY joined_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer rows.Close()

	var sessions []models.PlayerSession
	for rows.Next() {
		var sess models.PlayerSession
		var deviceID, status string
		var approvedAt sql.NullTime

		if err := rows.Scan(&deviceID, &sess.PlayerID, &sess.TeamName, &status,
			&approvedAt, &sess.PhotoPath, &sess.JoinedAt, &sess.LastSeenAt); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}

		sess.DeviceID = models.DeviceID(deviceID)
		sess.Status = models.SessionStatus(status)
		if approvedAt.Valid {
			t := approvedAt.Time
			sess.ApprovedAt = &t
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

func (r *SessionRepository) DeleteSession(ctx context.Context, deviceID models.DeviceID) error {
	ctx, span := observability.StartDBSpan(ctx, "DELETE", "sessions")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE device_id = $1`, string(deviceID))
	if err != nil {
		observability.RecordError(span, err)
	}
	return err
}
