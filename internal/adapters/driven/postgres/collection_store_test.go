package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow replays fixed column values into Scan
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *sql.NullString:
			*p = r.values[i].(sql.NullString)
		case *sql.NullTime:
			*p = r.values[i].(sql.NullTime)
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

func TestScanCollection(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	indexed := created.Add(time.Hour)

	row := fakeRow{values: []any{
		"wiki",
		"/app/data/wiki.tsv",
		sql.NullString{String: "/app/experiments/wiki/indexes/index", Valid: true},
		"indexed",
		42,
		sql.NullString{},
		created,
		sql.NullTime{Time: indexed, Valid: true},
		sql.NullTime{},
	}}

	c, err := scanCollection(row)
	require.NoError(t, err)
	assert.Equal(t, "wiki", c.Name)
	assert.Equal(t, domain.StatusIndexed, c.Status)
	assert.Equal(t, "/app/experiments/wiki/indexes/index", c.IndexPath)
	assert.Equal(t, 42, c.DocumentCount)
	assert.Empty(t, c.LastError)
	require.NotNil(t, c.IndexedAt)
	assert.True(t, indexed.Equal(*c.IndexedAt))
	assert.Nil(t, c.ActivatedAt)
	assert.NoError(t, c.Validate())
}

func TestScanCollection_Error(t *testing.T) {
	_, err := scanCollection(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCollectionArgs_NullsEmptyFields(t *testing.T) {
	c := domain.NewCollection("wiki", "/app/data/wiki.tsv")
	args := collectionArgs(c)
	require.Len(t, args, 9)

	assert.Equal(t, sql.NullString{}, args[2], "unindexed collection stores NULL index_path")
	assert.Equal(t, "unindexed", args[3])
	assert.Equal(t, sql.NullString{}, args[5])
	assert.Equal(t, sql.NullTime{}, args[7])
}
