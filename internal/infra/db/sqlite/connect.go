package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
    file_id              TEXT    PRIMARY KEY,
    user_id              TEXT    NOT NULL,
    file_name            TEXT    NOT NULL,
    minio_raw_key        TEXT    NOT NULL,
    minio_processed_keys TEXT    NULL,
    analysis_json        TEXT    NULL,
    size_bytes           INTEGER NOT NULL DEFAULT 0,
    status               TEXT    NOT NULL,
    failure_reason       TEXT    NULL,
    synced               INTEGER NOT NULL DEFAULT 0,
    upload_timestamp     TEXT    NOT NULL,
    updated_at           TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_sync ON files (synced, upload_timestamp);
CREATE INDEX IF NOT EXISTS idx_files_user ON files (user_id, upload_timestamp);
`

// Open opens (or creates) the database file and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// satu writer saja; sqlite mengunci seluruh file
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
