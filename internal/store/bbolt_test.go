package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dimitarkovachev/partyplanner/internal/store"
	"github.com/dimitarkovachev/partyplanner/internal/store/storetest"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func newTestBBoltStore(t *testing.T) *store.BBoltStore {
	t.Helper()
	s, err := store.NewBBoltStore(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBBoltStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestBBoltStore(t)
	})
}

func TestBBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := tempDBPath(t)

	s, err := store.NewBBoltStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	id, err := s.Create(context.Background(), store.CollectionParties, store.Document{"name": "Bday"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = store.NewBBoltStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	doc, err := s.Get(context.Background(), store.CollectionParties, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["name"] != "Bday" {
		t.Fatalf("expected name Bday, got %v", doc["name"])
	}
}

func TestBBoltStore_UnknownCollectionIsEmpty(t *testing.T) {
	s := newTestBBoltStore(t)

	docs, err := s.Query(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestNewBBoltStore_InvalidPath(t *testing.T) {
	_, err := store.NewBBoltStore(filepath.Join(os.DevNull, "impossible", "path.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}
