package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

// SQLiteStore keeps every collection in one documents table with JSON bodies.
// Scalar filters are pushed down through json_extract/json_each and then
// re-checked in Go so both adapters share exact filter semantics.
type SQLiteStore struct {
	db     *sql.DB
	broker *broker
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)
var _ Dumper = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database file at path in WAL mode.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db at %s: %w", path, err)
	}
	// Reason: a single connection serialises batches the way one bbolt writer does
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db at %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	return &SQLiteStore{db: db, broker: newBroker(), now: time.Now}, nil
}

type sqlTxn struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t sqlTxn) get(collection, id string) (Document, error) {
	var body string
	err := t.tx.QueryRowContext(t.ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeBody(id, []byte(body))
}

func (t sqlTxn) put(collection, id string, body Document) error {
	data, err := encodeBody(body)
	if err != nil {
		return fmt.Errorf("marshaling document %s: %w", id, err)
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
		collection, id, string(data))
	return err
}

func (t sqlTxn) remove(collection, id string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	return err
}

func (t sqlTxn) scan(collection string, fn func(Document) error) error {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT id, body FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return err
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		doc, err := decodeBody(id, []byte(body))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) commit(ctx context.Context, ops []op) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	touched, err := applyOps(sqlTxn{ctx: ctx, tx: tx}, ops, TimestampOf(s.now()))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	s.broker.Publish(touchedList(touched)...)
	return nil
}

func (s *SQLiteStore) Batch() Batch {
	return newBatch(s.commit)
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	b := s.Batch()
	id := b.Create(collection, doc)
	if err := b.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", collection, id, err)
	}
	return decodeBody(id, []byte(body))
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Document) error {
	b := s.Batch()
	b.Update(collection, id, fields)
	return b.Commit(ctx)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	b := s.Batch()
	b.Delete(collection, id)
	return b.Commit(ctx)
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}

	where, args := sqlPredicates(collection, filters)
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM documents WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	result := docs[:0]
	for _, doc := range docs {
		if Matches(doc, filters) {
			result = append(result, doc)
		}
	}
	return result, nil
}

// sqlPredicates pushes scalar filters into SQL; anything else is left to Matches.
func sqlPredicates(collection string, filters []Filter) (string, []any) {
	clauses := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range filters {
		value, ok := sqlScalar(f.Value)
		if !ok {
			continue
		}
		switch {
		case f.Field == FieldID && f.Op == OpEqual:
			clauses = append(clauses, "id = ?")
		case f.Op == OpEqual:
			clauses = append(clauses, fmt.Sprintf("json_extract(body, '$.%s') = ?", f.Field))
		case f.Op == OpArrayContains:
			clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(body, '$.%s') WHERE json_each.value = ?)", f.Field))
		default:
			continue
		}
		args = append(args, value)
	}
	return strings.Join(clauses, " AND "), args
}

func sqlScalar(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	if f, ok := toFloat(v); ok {
		return f, true
	}
	return nil, false
}

func (s *SQLiteStore) Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Document), onError func(error)) (func(), error) {
	if err := ValidateFilters(filters); err != nil {
		return nil, err
	}
	query := func(ctx context.Context) ([]Document, error) {
		return s.Query(ctx, collection, filters...)
	}
	return s.broker.Watch(ctx, collection, query, onChange, onError), nil
}

func (s *SQLiteStore) Dump(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT collection, id, body FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("dumping documents: %w", err)
	}
	defer rows.Close()

	snap := Snapshot{
		CollectionParties:  {},
		CollectionGuests:   {},
		CollectionExpenses: {},
		CollectionInvites:  {},
	}
	for rows.Next() {
		var collection, id, body string
		if err := rows.Scan(&collection, &id, &body); err != nil {
			return nil, err
		}
		doc, err := decodeBody(id, []byte(body))
		if err != nil {
			return nil, err
		}
		if snap[collection] == nil {
			snap[collection] = make(map[string]Document)
		}
		snap[collection][id] = doc
	}
	return snap, rows.Err()
}

func (s *SQLiteStore) Replace(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var touched []string
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT collection FROM documents`)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return err
		}
		touched = append(touched, c)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	t := sqlTxn{ctx: ctx, tx: tx}
	for collection, docs := range snap {
		for id, doc := range docs {
			if err := t.put(collection, id, doc); err != nil {
				return fmt.Errorf("writing %s/%s: %w", collection, id, err)
			}
		}
		touched = append(touched, collection)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	log.WithField("collections", len(snap)).Info("store replaced from snapshot")
	s.broker.Publish(touched...)
	return nil
}

func (s *SQLiteStore) Close() error {
	s.broker.Close()
	return s.db.Close()
}
