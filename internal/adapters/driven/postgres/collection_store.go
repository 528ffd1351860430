package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CollectionStore = (*CollectionStore)(nil)

// CollectionStore implements driven.CollectionStore using PostgreSQL.
// Records survive restarts; searcher handles do not.
type CollectionStore struct {
	db *DB
}

// NewCollectionStore creates a new CollectionStore
func NewCollectionStore(db *DB) *CollectionStore {
	return &CollectionStore{db: db}
}

const collectionColumns = `name, source_path, index_path, status, document_count, last_error,
	created_at, indexed_at, activated_at`

// GetOrCreate inserts c unless the name is taken, then returns the stored row
func (s *CollectionStore) GetOrCreate(ctx context.Context, c *domain.Collection) (*domain.Collection, bool, error) {
	query := `
		INSERT INTO collections (` + collectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query, collectionArgs(c)...)
	if err != nil {
		return nil, false, fmt.Errorf("insert collection %s: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	stored, err := s.Get(ctx, c.Name)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

// Get retrieves a collection by name
func (s *CollectionStore) Get(ctx context.Context, name string) (*domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE name = $1`

	c, err := scanCollection(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	return c, nil
}

// Save updates an existing collection
func (s *CollectionStore) Save(ctx context.Context, c *domain.Collection) error {
	query := `
		UPDATE collections SET
			source_path = $2,
			index_path = $3,
			status = $4,
			document_count = $5,
			last_error = $6,
			created_at = $7,
			indexed_at = $8,
			activated_at = $9
		WHERE name = $1
	`

	res, err := s.db.ExecContext(ctx, query, collectionArgs(c)...)
	if err != nil {
		return fmt.Errorf("save collection %s: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List retrieves all collections ordered by name
func (s *CollectionStore) List(ctx context.Context) ([]*domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []*domain.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func collectionArgs(c *domain.Collection) []any {
	return []any{
		c.Name,
		c.SourcePath,
		sql.NullString{String: c.IndexPath, Valid: c.IndexPath != ""},
		string(c.Status),
		c.DocumentCount,
		sql.NullString{String: c.LastError, Valid: c.LastError != ""},
		c.CreatedAt,
		NullTime(c.IndexedAt),
		NullTime(c.ActivatedAt),
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	var c domain.Collection
	var status string
	var indexPath, lastError sql.NullString
	var indexedAt, activatedAt sql.NullTime

	err := row.Scan(
		&c.Name,
		&c.SourcePath,
		&indexPath,
		&status,
		&c.DocumentCount,
		&lastError,
		&c.CreatedAt,
		&indexedAt,
		&activatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = domain.CollectionStatus(status)
	c.IndexPath = indexPath.String
	c.LastError = lastError.String
	c.IndexedAt = TimePtr(indexedAt)
	c.ActivatedAt = TimePtr(activatedAt)
	return &c, nil
}
