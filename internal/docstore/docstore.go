// Package docstore defines the document store contract the ledger runs on:
// named collections of JSON-like documents, multi-document read-then-write
// transactions with optimistic commit, simple queries and change watches.
//
// A transaction body reads first and writes second. Writes are buffered and
// applied atomically at commit; any document read in the transaction that
// changed in the meantime makes the commit fail with ErrConflict. Backends
// attempt a transaction exactly once. Retrying is the caller's decision, see
// RunWithRetry.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrConflict means a document read by the transaction was modified before commit.
	ErrConflict = errors.New("docstore: concurrent modification")
	// ErrNotFound is returned by Update on a missing document and by Store.Get.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAlreadyExists is returned when Create targets an existing document.
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrReadAfterWrite is a programming error: a transaction read a document
	// after it had buffered a write.
	ErrReadAfterWrite = errors.New("docstore: read after write in transaction")
	// ErrWatchUnavailable is returned by backends configured without a change feed.
	ErrWatchUnavailable = errors.New("docstore: watch not available")
)

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// Doc is shorthand for building a Ref.
func Doc(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

// Path renders the ref as "collection/id".
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// Snapshot is the state of one document at read time. Exists is false for a
// missing document, in which case Fields is nil and Version is zero.
type Snapshot struct {
	Ref     Ref
	Exists  bool
	Fields  Fields
	Version int64
}

// Tx is the handle passed to a transaction body.
type Tx interface {
	// Get reads a document. A missing document is not an error.
	Get(ctx context.Context, ref Ref) (Snapshot, error)
	// Create inserts a new document; commit fails with ErrAlreadyExists if it exists.
	Create(ref Ref, fields Fields) error
	// Set merges fields into the document, creating it when missing.
	Set(ref Ref, fields Fields) error
	// Update merges fields into an existing document; commit fails with
	// ErrNotFound if it is missing.
	Update(ref Ref, fields Fields) error
}

// TxFunc is a transaction body. Returning an error discards all buffered writes.
type TxFunc func(ctx context.Context, tx Tx) error

// Filter is an equality predicate on a top-level string field.
type Filter struct {
	Field  string
	Equals string
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Where      []Filter
	// OrderBy names a timestamp field; results are sorted newest first when
	// Descending is set.
	OrderBy    string
	Descending bool
	// Limit of zero means no limit.
	Limit int
}

// Store is implemented by every backend.
type Store interface {
	// RunTransaction runs fn once and commits its writes atomically.
	RunTransaction(ctx context.Context, fn TxFunc) error
	// Get reads a single document outside a transaction.
	Get(ctx context.Context, ref Ref) (Snapshot, error)
	// Query returns matching documents outside a transaction.
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	// NewRef allocates a fresh document id in collection.
	NewRef(collection string) Ref
	// Watch delivers the current state of ref and every later committed
	// state until ctx is done. Slow receivers only observe the latest state.
	Watch(ctx context.Context, ref Ref) (<-chan Snapshot, error)
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Put writes fields to ref in a standalone transaction, creating or merging.
func Put(ctx context.Context, store Store, ref Ref, fields Fields) error {
	return store.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
		return tx.Set(ref, fields)
	})
}

// IsRetryable reports whether err stems from a concurrent modification and the
// whole transaction may be attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
