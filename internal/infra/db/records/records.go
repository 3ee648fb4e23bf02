// Package records holds the row mapping shared by the SQL item repositories.
package records

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// Table is the operational table name.
const Table = "files"

// Columns is the select list every repository reads, in Row.Dest order.
const Columns = `file_id, user_id, file_name, minio_raw_key, minio_processed_keys,
       analysis_json, size_bytes, status, failure_reason, synced,
       upload_timestamp, updated_at`

// StringOrDash returns "-" when the input is empty/whitespace.
// user_id and file_name are NOT NULL and must never hold a blank string.
func StringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// TerminalStatuses is the IN list used by replication queries.
const TerminalStatuses = `('completed', 'failed')`

// Row is one files row as stored.
type Row struct {
	ID            string
	Owner         string
	FileName      string
	RawKey        string
	ProcessedKeys sql.NullString
	Analysis      sql.NullString
	SizeBytes     int64
	Status        string
	FailureReason sql.NullString
	Synced        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Dest returns scan targets in Columns order.
func (r *Row) Dest() []any {
	return []any{
		&r.ID, &r.Owner, &r.FileName, &r.RawKey, &r.ProcessedKeys,
		&r.Analysis, &r.SizeBytes, &r.Status, &r.FailureReason, &r.Synced,
		&r.CreatedAt, &r.UpdatedAt,
	}
}

// Item decodes the JSON columns into a domain item.
func (r *Row) Item() (*items.Item, error) {
	it := &items.Item{
		ID:            items.ID(r.ID),
		Owner:         r.Owner,
		DisplayName:   r.FileName,
		RawLocation:   r.RawKey,
		SizeBytes:     r.SizeBytes,
		Status:        items.Status(r.Status),
		FailureReason: r.FailureReason.String,
		Replicated:    r.Synced,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.ProcessedKeys.Valid && r.ProcessedKeys.String != "" {
		if err := json.Unmarshal([]byte(r.ProcessedKeys.String), &it.DerivedLocations); err != nil {
			return nil, fmt.Errorf("decode processed keys of %s: %w", r.ID, err)
		}
	}
	if r.Analysis.Valid && r.Analysis.String != "" {
		var f items.AnalysisFields
		if err := json.Unmarshal([]byte(r.Analysis.String), &f); err != nil {
			return nil, fmt.Errorf("decode analysis of %s: %w", r.ID, err)
		}
		it.Analysis = &f
	}
	return it, nil
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanItem reads one row in Columns order.
func ScanItem(s Scanner) (*items.Item, error) {
	var r Row
	if err := s.Scan(r.Dest()...); err != nil {
		return nil, err
	}
	return r.Item()
}

// CollectItems drains rows using scan and closes them.
func CollectItems(rows *sql.Rows, scan func(Scanner) (*items.Item, error)) ([]*items.Item, error) {
	defer rows.Close()
	var out []*items.Item
	for rows.Next() {
		it, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// EncodeCompletion marshals the JSON columns written on completion.
func EncodeCompletion(locations []string, fields items.AnalysisFields) (keys, analysis string, err error) {
	if locations == nil {
		locations = []string{}
	}
	if fields.Artifacts == nil {
		fields.Artifacts = []string{}
	}
	k, err := json.Marshal(locations)
	if err != nil {
		return "", "", fmt.Errorf("encode processed keys: %w", err)
	}
	a, err := json.Marshal(fields)
	if err != nil {
		return "", "", fmt.Errorf("encode analysis: %w", err)
	}
	return string(k), string(a), nil
}

// Placeholders returns "?, ?, ..." with n markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// IDArgs converts ids to driver arguments.
func IDArgs(ids []items.ID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return args
}

// Rollback ignores the error of a rollback after a commit.
func Rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
