package mysql

import (
	"database/sql"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// affectedOne relies on clientFoundRows=true so an unchanged row still counts.
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
