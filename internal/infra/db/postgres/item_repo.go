package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
	"github.com/bryanwahyu/automaton-ingest/internal/infra/db/records"
)

type ItemRepository struct{ db *sql.DB }

var _ items.Repository = (*ItemRepository)(nil)

func NewItemRepository(db *sql.DB) *ItemRepository { return &ItemRepository{db: db} }

// Create insert row baru dengan status uploaded
func (r *ItemRepository) Create(ctx context.Context, it *items.Item) error {
	const q = `
INSERT INTO files
(file_id, user_id, file_name, minio_raw_key, size_bytes, status, synced, upload_timestamp, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,FALSE,$7,$8)`

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
		it.RawLocation, it.SizeBytes, string(it.Status), created, updated,
	)
	return err
}

func (r *ItemRepository) Get(ctx context.Context, id items.ID) (*items.Item, error) {
	q := `SELECT ` + records.Columns + ` FROM files WHERE file_id = $1`
	it, err := records.ScanItem(r.db.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, items.ErrNotFound
	}
	return it, err
}

// Latest items, newest first. Empty owner/status means no filter.
func (r *ItemRepository) Latest(ctx context.Context, owner string, status items.Status, limit int) ([]*items.Item, error) {
	var conds []string
	var args []any
	if owner != "" {
		args = append(args, owner)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, string(status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + records.Columns + ` FROM files`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY upload_timestamp DESC, file_id DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return records.CollectItems(rows, records.ScanItem)
}

// MarkProcessing reads the row and overwrites it to processing in one tx.
func (r *ItemRepository) MarkProcessing(ctx context.Context, id items.ID) (*items.Item, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer records.Rollback(tx)

	q := `SELECT ` + records.Columns + ` FROM files WHERE file_id = $1 FOR UPDATE`
	it, err := records.ScanItem(tx.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, items.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	const upd = `
UPDATE files SET status = $2, minio_processed_keys = NULL, analysis_json = NULL,
 failure_reason = NULL, updated_at = $3
WHERE file_id = $1`
	if _, err := tx.ExecContext(ctx, upd, string(id), string(items.StatusProcessing), now); err != nil {
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

// Complete writes status, locations and analysis in one statement.
func (r *ItemRepository) Complete(ctx context.Context, id items.ID, locations []string, fields items.AnalysisFields) error {
	keys, analysis, err := records.EncodeCompletion(locations, fields)
	if err != nil {
		return err
	}
	const q = `
UPDATE files SET status = $2, minio_processed_keys = $3, analysis_json = $4,
 failure_reason = NULL, updated_at = $5
WHERE file_id = $1`
	res, err := r.db.ExecContext(ctx, q, string(id), string(items.StatusCompleted), keys, analysis, time.Now().UTC())
	return affectedOne(res, err)
}

func (r *ItemRepository) Fail(ctx context.Context, id items.ID, reason string) error {
	const q = `
UPDATE files SET status = $2, minio_processed_keys = NULL, analysis_json = NULL,
 failure_reason = $3, updated_at = $4
WHERE file_id = $1`
	res, err := r.db.ExecContext(ctx, q, string(id), string(items.StatusFailed), reason, time.Now().UTC())
	return affectedOne(res, err)
}

func (r *ItemRepository) PendingReplication(ctx context.Context, since time.Time, limit int) ([]*items.Item, error) {
	q := `SELECT ` + records.Columns + ` FROM files
WHERE upload_timestamp > $1 AND synced = FALSE AND status IN ` + records.TerminalStatuses + `
ORDER BY upload_timestamp, file_id
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return records.CollectItems(rows, records.ScanItem)
}

// MarkReplicated flips synced for the whole batch in one transaction.
func (r *ItemRepository) MarkReplicated(ctx context.Context, ids []items.ID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer records.Rollback(tx)

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = string(id)
	}
	q := `UPDATE files SET synced = TRUE WHERE file_id = ANY($1) AND status IN ` + records.TerminalStatuses
	if _, err := tx.ExecContext(ctx, q, pq.Array(strs)); err != nil {
		return err
	}
	return tx.Commit()
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
