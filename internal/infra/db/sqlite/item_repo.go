package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
	"github.com/bryanwahyu/automaton-ingest/internal/infra/db/records"
)

// timeLayout is fixed width so text comparison orders like time.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// ItemRepository is the SQLite items.Repository, used for single-host setups
// and tests.
type ItemRepository struct{ db *sql.DB }

var _ items.Repository = (*ItemRepository)(nil)

func NewItemRepository(db *sql.DB) *ItemRepository { return &ItemRepository{db: db} }

func (r *ItemRepository) Create(ctx context.Context, it *items.Item) error {
	const q = `
INSERT INTO files
(file_id, user_id, file_name, minio_raw_key, size_bytes, status, synced, upload_timestamp, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`

	created := it.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := it.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	_, err := r.db.ExecContext(ctx, q,
		string(it.ID), records.StringOrDash(it.Owner), records.StringOrDash(it.DisplayName),
		it.RawLocation, it.SizeBytes, string(it.Status),
		formatTime(created), formatTime(updated),
	)
	return err
}

func (r *ItemRepository) Get(ctx context.Context, id items.ID) (*items.Item, error) {
	q := `SELECT ` + records.Columns + ` FROM files WHERE file_id = ?`
	it, err := scanItem(r.db.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, items.ErrNotFound
	}
	return it, err
}

func (r *ItemRepository) Latest(ctx context.Context, owner string, status items.Status, limit int) ([]*items.Item, error) {
	var conds []string
	var args []any
	if owner != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, owner)
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(status))
	}
	q := `SELECT ` + records.Columns + ` FROM files`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY upload_timestamp DESC, file_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return records.CollectItems(rows, scanItem)
}

func (r *ItemRepository) MarkProcessing(ctx context.Context, id items.ID) (*items.Item, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer records.Rollback(tx)

	q := `SELECT ` + records.Columns + ` FROM files WHERE file_id = ?`
	it, err := scanItem(tx.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, items.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	const upd = `
UPDATE files SET status = ?, minio_processed_keys = NULL, analysis_json = NULL,
 failure_reason = NULL, updated_at = ?
WHERE file_id = ?`
	if _, err := tx.ExecContext(ctx, upd, string(items.StatusProcessing), formatTime(now), string(id)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	it.Status = items.StatusProcessing
	it.DerivedLocations = nil
	it.Analysis = nil
	it.FailureReason = ""
	it.UpdatedAt = now
	return it, nil
}

func (r *ItemRepository) Complete(ctx context.Context, id items.ID, locations []string, fields items.AnalysisFields) error {
	keys, analysis, err := records.EncodeCompletion(locations, fields)
	if err != nil {
		return err
	}
	const q = `
UPDATE files SET status = ?, minio_processed_keys = ?, analysis_json = ?,
 failure_reason = NULL, updated_at = ?
WHERE file_id = ?`
	res, err := r.db.ExecContext(ctx, q, string(items.StatusCompleted), keys, analysis, formatTime(time.Now()), string(id))
	return affectedOne(res, err)
}

func (r *ItemRepository) Fail(ctx context.Context, id items.ID, reason string) error {
	const q = `
UPDATE files SET status = ?, minio_processed_keys = NULL, analysis_json = NULL,
 failure_reason = ?, updated_at = ?
WHERE file_id = ?`
	res, err := r.db.ExecContext(ctx, q, string(items.StatusFailed), reason, formatTime(time.Now()), string(id))
	return affectedOne(res, err)
}

func (r *ItemRepository) PendingReplication(ctx context.Context, since time.Time, limit int) ([]*items.Item, error) {
	q := `SELECT ` + records.Columns + ` FROM files
WHERE upload_timestamp > ? AND synced = 0 AND status IN ` + records.TerminalStatuses + `
ORDER BY upload_timestamp, file_id
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, formatTime(since), limit)
	if err != nil {
		return nil, err
	}
	return records.CollectItems(rows, scanItem)
}

func (r *ItemRepository) MarkReplicated(ctx context.Context, ids []items.ID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer records.Rollback(tx)

	q := `UPDATE files SET synced = 1 WHERE status IN ` + records.TerminalStatuses +
		` AND file_id IN (` + records.Placeholders(len(ids)) + `)`
	if _, err := tx.ExecContext(ctx, q, records.IDArgs(ids)...); err != nil {
		return err
	}
	return tx.Commit()
}

// scanItem reads timestamps as text and parses them.
func scanItem(s records.Scanner) (*items.Item, error) {
	var row records.Row
	var created, updated string
	dest := row.Dest()
	dest[10], dest[11] = &created, &updated
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	var err error
	if row.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse upload_timestamp of %s: %w", row.ID, err)
	}
	if row.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at of %s: %w", row.ID, err)
	}
	return row.Item()
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return items.ErrNotFound
	}
	return nil
}
