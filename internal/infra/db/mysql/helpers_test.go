package mysql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

type fakeResult int64

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestAffectedOne(t *testing.T) {
	assert.NoError(t, affectedOne(fakeResult(1), nil))
	assert.ErrorIs(t, affectedOne(fakeResult(0), nil), items.ErrNotFound)

	boom := errors.New("boom")
	assert.ErrorIs(t, affectedOne(nil, boom), boom)
}
