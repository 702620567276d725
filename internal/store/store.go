package store

import (
	"context"
	"errors"
)

// Collection names used by the application.
const (
	CollectionParties  = "parties"
	CollectionGuests   = "guests"
	CollectionExpenses = "expenses"
	CollectionInvites  = "partyInvites"
)

// FieldID is the reserved key carrying a document's id in returned documents.
// It is never persisted as part of the document body.
const FieldID = "id"

var (
	ErrNotFound     = errors.New("document not found")
	ErrPrecondition = errors.New("precondition failed")
	ErrInvalidField = errors.New("invalid field name")
)

// Document is the loosely typed record shape exchanged with a Store.
// Timestamps are carried as Timestamp values, numbers as float64 once read back.
type Document map[string]any

// ID returns the document id or "" when absent.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Store is a collection-scoped document database with equality and
// array-membership filtering, atomic batches and change subscriptions.
type Store interface {
	// Create inserts doc under a generated id and returns that id.
	Create(ctx context.Context, collection string, doc Document) (string, error)
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges fields into an existing document. Field values may be
	// transforms (ServerTimestamp, ArrayUnion, ArrayRemove, DeleteField).
	Update(ctx context.Context, collection, id string, fields Document) error
	// Delete removes a document; deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns every document matching all filters, in no particular order.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Subscribe delivers the current result set of the query and then a fresh
	// full result set after every committed change to the collection. The
	// returned cancel func is idempotent; cancelling ctx has the same effect.
	Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Document), onError func(error)) (cancel func(), err error)
	// Batch starts an atomic multi-operation write.
	Batch() Batch
	Close() error
}

// Batch collects writes and preconditions that commit all together or not at all.
type Batch interface {
	// Create queues an insert and returns the id the document will get.
	Create(collection string, doc Document) string
	Set(collection, id string, doc Document)
	Update(collection, id string, fields Document)
	Delete(collection, id string)
	// Require fails the commit with ErrPrecondition unless the document
	// exists and matches every filter at commit time.
	Require(collection, id string, filters ...Filter)
	// RequireNone fails the commit with ErrPrecondition if any document
	// in the collection matches every filter at commit time.
	RequireNone(collection string, filters ...Filter)
	Commit(ctx context.Context) error
}

// Snapshot is the full content of a store: collection -> id -> document.
type Snapshot map[string]map[string]Document

// Dumper exposes whole-store export and replacement for admin tooling.
type Dumper interface {
	Dump(ctx context.Context) (Snapshot, error)
	Replace(ctx context.Context, snap Snapshot) error
}
