package repository

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL roster database
func NewPostgresDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTablesPostgres(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTablesPostgres(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		device_id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL DEFAULT '',
		team_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		approved_at TIMESTAMPTZ,
		photo_path TEXT NOT NULL DEFAULT '',
		joined_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_joined_at ON sessions(joined_at);
	`

	_, err := db.Exec(schema)
	return err
}
