package store

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// BBoltStore keeps one bucket per collection with JSON-encoded documents
// keyed by id. Every batch commits inside a single bbolt write transaction.
type BBoltStore struct {
	db     *bolt.DB
	broker *broker
	now    func() time.Time
}

var _ Store = (*BBoltStore)(nil)
var _ Dumper = (*BBoltStore)(nil)

func NewBBoltStore(path string) (*BBoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db at %s: %w", path, err)
	}

	// Reason: buckets must exist before read-only transactions look them up
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{CollectionParties, CollectionGuests, CollectionExpenses, CollectionInvites} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating collection buckets: %w", err)
	}

	return &BBoltStore{db: db, broker: newBroker(), now: time.Now}, nil
}

type boltTxn struct {
	tx *bolt.Tx
}

func (t boltTxn) get(collection, id string) (Document, error) {
	b := t.tx.Bucket([]byte(collection))
	if b == nil {
		return nil, ErrNotFound
	}
	data := b.Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	return decodeBody(id, data)
}

func (t boltTxn) put(collection, id string, body Document) error {
	b, err := t.tx.CreateBucketIfNotExists([]byte(collection))
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", collection, err)
	}
	data, err := encodeBody(body)
	if err != nil {
		return fmt.Errorf("marshaling document %s: %w", id, err)
	}
	return b.Put([]byte(id), data)
}

func (t boltTxn) remove(collection, id string) error {
	b := t.tx.Bucket([]byte(collection))
	if b == nil {
		return nil
	}
	return b.Delete([]byte(id))
}

func (t boltTxn) scan(collection string, fn func(Document) error) error {
	b := t.tx.Bucket([]byte(collection))
	if b == nil {
		return nil
	}
	return b.ForEach(func(k, v []byte) error {
		doc, err := decodeBody(string(k), v)
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

func (s *BBoltStore) commit(_ context.Context, ops []op) error {
	var touched map[string]struct{}
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		touched, err = applyOps(boltTxn{tx: tx}, ops, TimestampOf(s.now()))
		return err
	})
	if err != nil {
		return err
	}
	s.broker.Publish(touchedList(touched)...)
	return nil
}

func (s *BBoltStore) Batch() Batch {
	return newBatch(s.commit)
}

func (s *BBoltStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	b := s.Batch()
	id := b.Create(collection, doc)
	if err := b.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *BBoltStore) Get(_ context.Context, collection, id string) (Document, error) {
	var doc Document
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		doc, err = boltTxn{tx: tx}.get(collection, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *BBoltStore) Update(ctx context.Context, collection, id string, fields Document) error {
	b := s.Batch()
	b.Update(collection, id, fields)
	return b.Commit(ctx)
}

func (s *BBoltStore) Delete(ctx context.Context, collection, id string) error {
	b := s.Batch()
	b.Delete(collection, id)
	return b.Commit(ctx)
}

func (s *BBoltStore) Query(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}

	var result []Document
	err := s.db.View(func(tx *bolt.Tx) error {
		return boltTxn{tx: tx}.scan(collection, func(doc Document) error {
			if Matches(doc, filters) {
				result = append(result, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	return result, nil
}

func (s *BBoltStore) Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Document), onError func(error)) (func(), error) {
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}
	query := func(ctx context.Context) ([]Document, error) {
		return s.Query(ctx, collection, filters...)
	}
	return s.broker.Watch(ctx, collection, query, onChange, onError), nil
}

// Dump returns every document of every bucket.
func (s *BBoltStore) Dump(_ context.Context) (Snapshot, error) {
	snap := make(Snapshot)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			docs := make(map[string]Document)
			err := b.ForEach(func(k, v []byte) error {
				doc, err := decodeBody(string(k), v)
				if err != nil {
					return err
				}
				docs[string(k)] = doc
				return nil
			})
			if err != nil {
				return err
			}
			snap[string(name)] = docs
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Replace drops every bucket and writes snap in one transaction.
func (s *BBoltStore) Replace(_ context.Context, snap Snapshot) error {
	var touched []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("deleting bucket %s: %w", name, err)
			}
			touched = append(touched, string(name))
		}
		t := boltTxn{tx: tx}
		for _, name := range []string{CollectionParties, CollectionGuests, CollectionExpenses, CollectionInvites} {
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return fmt.Errorf("recreating bucket %s: %w", name, err)
			}
		}
		for collection, docs := range snap {
			for id, doc := range docs {
				if err := t.put(collection, id, doc); err != nil {
					return fmt.Errorf("writing %s/%s: %w", collection, id, err)
				}
			}
			touched = append(touched, collection)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.WithField("collections", len(snap)).Info("store replaced from snapshot")
	s.broker.Publish(touched...)
	return nil
}

func (s *BBoltStore) Close() error {
	s.broker.Close()
	return s.db.Close()
}
