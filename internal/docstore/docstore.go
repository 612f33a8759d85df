// Package docstore is the gateway to the external document store. Items are schemaless JSON documents
// addressed by table name, partition key and sort key.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/eion/tenantgate/internal/zerrors"
)

// Item is one stored document.
type Item map[string]any

// Key addresses a single item inside a table.
type Key struct {
	PartitionKey string
	SortKey      string
}

// Client defines the operations the rest of the service relies on. Implementations wrap retryable
// driver failures in zerrors.TransientStoreError and report absence as (nil, false, nil).
type Client interface {
	PutItem(ctx context.Context, table string, key Key, item Item) error
	GetItem(ctx context.Context, table string, key Key) (Item, bool, error)
	// Query returns every item of a partition ordered by sort key.
	Query(ctx context.Context, table, partitionKey string) ([]Item, error)
	DeleteItem(ctx context.Context, table string, key Key) error
	Ping(ctx context.Context) error
	Close() error
}

// Store operation names, used in errors, logs and metrics.
const (
	OpPutItem    = "put_item"
	OpGetItem    = "get_item"
	OpQuery      = "query"
	OpDeleteItem = "delete_item"
)

// storeError wraps a driver failure. Cancelled or expired contexts are never transient; isTransient
// decides for everything else.
func storeError(op, table string, err error, isTransient func(error) bool) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !isTransient(err) {
		return fmt.Errorf("store error during %s on %s: %w", op, table, err)
	}
	return zerrors.NewTransientStoreError(op, table, err)
}
