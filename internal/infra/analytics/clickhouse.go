// Package analytics writes replicated file stats to ClickHouse.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// Options for the ClickHouse connection.
type Options struct {
	Addr     string
	Database string
	User     string
	Password string
	Table    string
}

// Sink is the append-only items.AnalyticsSink. Duplicate rows are tolerated;
// queries are expected to aggregate by file_id.
type Sink struct {
	conn  driver.Conn
	table string
	now   func() time.Time
}

var _ items.AnalyticsSink = (*Sink)(nil)

// Open connects, pings and makes sure the stats table exists.
func Open(ctx context.Context, opts Options) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.User,
			Password: opts.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx2); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", opts.Addr, err)
	}

	s := &Sink{conn: conn, table: opts.Table, now: func() time.Time { return time.Now().UTC() }}
	if err := conn.Exec(ctx, createTableSQL(opts.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create %s: %w", opts.Table, err)
	}
	return s, nil
}

// AppendStats sends rows as one batch insert.
func (s *Sink) AppendStats(ctx context.Context, rows []items.FileStat) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	syncedAt := s.now()
	for _, r := range rows {
		if err := batch.Append(statValues(r, syncedAt)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append %s: %w", r.FileID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Ping is used by the readiness check.
func (s *Sink) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

func (s *Sink) Close() error { return s.conn.Close() }

// statValues must follow the column order of createTableSQL.
func statValues(r items.FileStat, syncedAt time.Time) []any {
	return []any{
		r.FileID,
		r.Owner,
		r.FileName,
		r.CreatedAt.UTC(),
		r.SizeBytes,
		r.Status,
		r.Genre,
		r.Sentiment,
		syncedAt,
	}
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    file_id          String,
    user_id          String,
    file_name        String,
    upload_timestamp DateTime64(3, 'UTC'),
    size_bytes       Int64,
    status           LowCardinality(String),
    genre            LowCardinality(String),
    sentiment        Float64,
    synced_at        DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (upload_timestamp, file_id)`, table)
}
