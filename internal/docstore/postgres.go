package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// DocumentSchema represents the documents table. One row per item across all logical tables.
type DocumentSchema struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	Collection   string         `bun:"table_name,pk" json:"table_name"`
	PartitionKey string         `bun:"partition_key,pk" json:"partition_key"`
	SortKey      string         `bun:"sort_key,pk" json:"sort_key"`
	Body         map[string]any `bun:"body,type:jsonb,notnull" json:"body"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// DocumentIndexes speed up partition queries.
var DocumentIndexes = []string{
	`CREATE INDEX IF NOT EXISTS documents_partition_idx ON documents (table_name, partition_key, sort_key)`,
}

// PostgresStore implements Client on PostgreSQL through bun.
type PostgresStore struct {
	db *bun.DB
}

// OpenPostgres opens a pooled connection to PostgreSQL.
func OpenPostgres(dsn string, maxConnections int) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(maxConnections)
	sqldb.SetMaxIdleConns(maxConnections / 2)
	sqldb.SetConnMaxLifetime(time.Hour)

	return bun.NewDB(sqldb, pgdialect.New())
}

// NewPostgresStore creates a new PostgreSQL document store
func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateTables creates the documents table and its indexes if they do not exist.
func (s *PostgresStore) CreateTables(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*DocumentSchema)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	for _, indexSQL := range DocumentIndexes {
		if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index with SQL %q: %w", indexSQL, err)
		}
	}
	return nil
}

// PutItem inserts or replaces an item.
func (s *PostgresStore) PutItem(ctx context.Context, table string, key Key, item Item) error {
	now := time.Now().UTC()
	doc := &DocumentSchema{
		Collection:   table,
		PartitionKey: key.PartitionKey,
		SortKey:      key.SortKey,
		Body:         item,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.NewInsert().
		Model(doc).
		On("CONFLICT (table_name, partition_key, sort_key) DO UPDATE").
		Set("body = EXCLUDED.body").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return storeError(OpPutItem, table, err, isPostgresTransient)
	}
	return nil
}

// GetItem fetches a single item.
func (s *PostgresStore) GetItem(ctx context.Context, table string, key Key) (Item, bool, error) {
	var doc DocumentSchema
	err := s.db.NewSelect().
		Model(&doc).
		Where("table_name = ?", table).
		Where("partition_key = ?", key.PartitionKey).
		Where("sort_key = ?", key.SortKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storeError(OpGetItem, table, err, isPostgresTransient)
	}
	return Item(doc.Body), true, nil
}

// Query returns all items of a partition ordered by sort key.
func (s *PostgresStore) Query(ctx context.Context, table, partitionKey string) ([]Item, error) {
	var docs []DocumentSchema
	err := s.db.NewSelect().
		Model(&docs).
		Where("table_name = ?", table).
		Where("partition_key = ?", partitionKey).
		Order("sort_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, storeError(OpQuery, table, err, isPostgresTransient)
	}

	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, Item(doc.Body))
	}
	return items, nil
}

// DeleteItem removes an item. Deleting a missing item is not an error.
func (s *PostgresStore) DeleteItem(ctx context.Context, table string, key Key) error {
	_, err := s.db.NewDelete().
		Model((*DocumentSchema)(nil)).
		Where("table_name = ?", table).
		Where("partition_key = ?", key.PartitionKey).
		Where("sort_key = ?", key.SortKey).
		Exec(ctx)
	if err != nil {
		return storeError(OpDeleteItem, table, err, isPostgresTransient)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// isPostgresTransient treats server errors as retryable only for connection, transaction rollback,
// resource and shutdown SQLSTATE classes. Errors without a SQLSTATE come from the network.
func isPostgresTransient(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return transientSQLState(pgErr.Field('C'))
	}
	return true
}

func transientSQLState(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "08", "40", "53":
		return true
	}
	switch code {
	case "57P01", "57P02", "57P03":
		return true
	}
	return false
}
