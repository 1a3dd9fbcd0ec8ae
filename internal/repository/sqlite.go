package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.pragmas(path); err != nil {
		return nil, fmt.Errorf("error while configuring database: %w", err)
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) pragmas(path string) error {
	if _, err := s.db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		return err
	}
	if path == ":memory:" {
		return nil
	}
	_, err := s.db.Exec(`PRAGMA journal_mode = WAL`)
	return err
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			district TEXT NOT NULL,
			village TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			geotagged INTEGER NOT NULL DEFAULT 0,
			lifecycle_status TEXT NOT NULL,
			sync_status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sync_queue (
			record_id TEXT PRIMARY KEY,
			attempts INTEGER NOT NULL DEFAULT 0,
			enqueued_at INTEGER NOT NULL,
			last_attempt_at INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
		CREATE INDEX IF NOT EXISTS idx_records_kind_place ON records(kind, district, village);
		CREATE INDEX IF NOT EXISTS idx_records_sync_status ON records(sync_status);
		CREATE INDEX IF NOT EXISTS idx_sync_queue_enqueued_at ON sync_queue(enqueued_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
