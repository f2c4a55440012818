// Package store defines the persistence contracts consumed by the daybook
// core: a synchronous namespaced key/value Local store and an abstract keyed
// document collection Remote store with range queries and batched writes.
//
// The repositories never talk to these stores directly for writes; all writes
// flow through the sync coordinator so offline state is tracked in one place.
package store

import "context"

// MaxBatchSize is the hard cap on operations per remote batch write.
const MaxBatchSize = 500

// Local is a synchronous key/value store scoped by a fixed namespace prefix.
//
// Local writes are the durability floor: a failing Local is fatal to the
// caller since there is no fallback beneath it.
type Local interface {
	// Get returns the value for key, or ErrNotFound if absent.
	Get(key string) ([]byte, error)

	// Set stores value under key, overwriting any existing value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all stored keys with the given prefix, sorted ascending.
	Keys(prefix string) ([]string, error)
}

// Doc is one stored document in a remote collection.
type Doc struct {
	Key   string
	Value []byte
}

// Where is an equality filter on a top-level document field.
type Where struct {
	Field string
	Value string
}

// QueryOptions configures a remote range query.
type QueryOptions struct {
	// Where filters documents by field equality. Empty = no filter.
	Where []Where

	// OrderBy is the top-level field to order by. Empty = document key.
	OrderBy string

	// Descending reverses the order.
	Descending bool

	// StartAfter is the continuation cursor from a previous page.
	// It is opaque to callers; pass Page.NextCursor back verbatim.
	StartAfter string

	// Limit caps the number of returned documents (0 = no limit).
	Limit int
}

// Page is one page of query results plus a continuation cursor.
type Page struct {
	Docs []Doc

	// NextCursor continues the query after the last returned document.
	// Empty when the page was not full.
	NextCursor string
}

// OpKind is the kind of a batched write operation.
type OpKind int

const (
	// OpSet creates or overwrites a document.
	OpSet OpKind = iota
	// OpDelete removes a document.
	OpDelete
)

// Op is a single operation in a batched remote write.
type Op struct {
	Kind       OpKind
	Collection string
	Key        string
	Value      []byte
}

// Remote is an abstract keyed document collection store.
//
// Documents live under "users/{userID}/{collection}/{key}" paths. The store
// supports point reads/writes, ordered range queries with continuation
// cursors, and batched writes capped at MaxBatchSize operations.
//
// A Remote that cannot be reached wraps ErrRemoteUnavailable; callers treat
// that as recoverable and defer the write via sync markers.
type Remote interface {
	// Get returns the document value, or ErrNotFound if absent.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Set creates or overwrites a document.
	Set(ctx context.Context, collection, key string, value []byte) error

	// Update overwrites an existing document, failing with ErrNotFound
	// if it does not exist.
	Update(ctx context.Context, collection, key string, value []byte) error

	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, key string) error

	// Query runs an ordered range query over one collection.
	Query(ctx context.Context, collection string, opts QueryOptions) (*Page, error)

	// BatchWrite applies up to MaxBatchSize operations. The batch is applied
	// atomically by stores that support it; callers must not rely on
	// atomicity and must be safe to re-run (ErrBatchTooLarge for oversize).
	BatchWrite(ctx context.Context, ops []Op) error
}
