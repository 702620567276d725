package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type opKind int

const (
	opCreate opKind = iota
	opSet
	opUpdate
	opDelete
	opRequire
	opRequireNone
)

type op struct {
	kind       opKind
	collection string
	id         string
	doc        Document
	filters    []Filter
}

// txn is the minimal read/write surface an adapter exposes inside one
// transaction so that batches share a single commit implementation.
type txn interface {
	get(collection, id string) (Document, error)
	put(collection, id string, body Document) error
	remove(collection, id string) error
	scan(collection string, fn func(Document) error) error
}

type commitFunc func(ctx context.Context, ops []op) error

type batch struct {
	commit commitFunc
	ops    []op
	done   bool
}

func newBatch(commit commitFunc) *batch {
	return &batch{commit: commit}
}

func newID() string {
	return uuid.NewString()
}

func (b *batch) Create(collection string, doc Document) string {
	id := newID()
	b.ops = append(b.ops, op{kind: opCreate, collection: collection, id: id, doc: doc})
	return id
}

func (b *batch) Set(collection, id string, doc Document) {
	b.ops = append(b.ops, op{kind: opSet, collection: collection, id: id, doc: doc})
}

func (b *batch) Update(collection, id string, fields Document) {
	b.ops = append(b.ops, op{kind: opUpdate, collection: collection, id: id, doc: fields})
}

func (b *batch) Delete(collection, id string) {
	b.ops = append(b.ops, op{kind: opDelete, collection: collection, id: id})
}

func (b *batch) Require(collection, id string, filters ...Filter) {
	b.ops = append(b.ops, op{kind: opRequire, collection: collection, id: id, filters: filters})
}

func (b *batch) RequireNone(collection string, filters ...Filter) {
	b.ops = append(b.ops, op{kind: opRequireNone, collection: collection, filters: filters})
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return fmt.Errorf("batch already committed")
	}
	b.done = true
	if len(b.ops) == 0 {
		return nil
	}
	for _, o := range b.ops {
		if o.collection == "" {
			return fmt.Errorf("batch operation without collection")
		}
		if err := ValidateFilters(o.filters); err != nil {
			return err
		}
	}
	return b.commit(ctx, b.ops)
}

// applyOps runs ops in order inside tx and returns the set of touched
// collections. Preconditions observe the writes queued before them.
func applyOps(tx txn, ops []op, now Timestamp) (map[string]struct{}, error) {
	touched := make(map[string]struct{})
	for _, o := range ops {
		switch o.kind {
		case opCreate:
			if _, err := tx.get(o.collection, o.id); err == nil {
				return nil, fmt.Errorf("creating %s/%s: document already exists", o.collection, o.id)
			}
			if err := tx.put(o.collection, o.id, resolveCreate(o.doc, now)); err != nil {
				return nil, fmt.Errorf("creating %s/%s: %w", o.collection, o.id, err)
			}
			touched[o.collection] = struct{}{}
		case opSet:
			if err := tx.put(o.collection, o.id, resolveCreate(o.doc, now)); err != nil {
				return nil, fmt.Errorf("writing %s/%s: %w", o.collection, o.id, err)
			}
			touched[o.collection] = struct{}{}
		case opUpdate:
			current, err := tx.get(o.collection, o.id)
			if err != nil {
				return nil, fmt.Errorf("updating %s/%s: %w", o.collection, o.id, err)
			}
			if err := tx.put(o.collection, o.id, resolveMerge(current, o.doc, now)); err != nil {
				return nil, fmt.Errorf("updating %s/%s: %w", o.collection, o.id, err)
			}
			touched[o.collection] = struct{}{}
		case opDelete:
			if err := tx.remove(o.collection, o.id); err != nil {
				return nil, fmt.Errorf("deleting %s/%s: %w", o.collection, o.id, err)
			}
			touched[o.collection] = struct{}{}
		case opRequire:
			current, err := tx.get(o.collection, o.id)
			if err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %v", ErrPrecondition, o.collection, o.id, err)
			}
			if !Matches(current, o.filters) {
				return nil, fmt.Errorf("%w: %s/%s does not match", ErrPrecondition, o.collection, o.id)
			}
		case opRequireNone:
			err := tx.scan(o.collection, func(doc Document) error {
				if Matches(doc, o.filters) {
					return fmt.Errorf("%w: %s/%s already matches", ErrPrecondition, o.collection, doc.ID())
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return touched, nil
}

func touchedList(touched map[string]struct{}) []string {
	out := make([]string, 0, len(touched))
	for c := range touched {
		out = append(out, c)
	}
	return out
}
