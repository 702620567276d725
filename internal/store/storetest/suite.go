// Package storetest holds the conformance suite every store.Store adapter must pass.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimitarkovachev/partyplanner/internal/store"
)

// Run exercises the adapter contract against a fresh store returned by makeStore.
// Implementations should return an isolated, empty store and register cleanup.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("CreateGetRoundTrip", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		when := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		id, err := s.Create(ctx, store.CollectionParties, store.Document{
			"name":           "Bday",
			"date":           store.TimestampOf(when),
			"collaborators":  []string{},
			"createdAt":      store.ServerTimestamp(),
			"pricePerPerson": 50,
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := s.Get(ctx, store.CollectionParties, id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID())
		assert.Equal(t, "Bday", doc["name"])
		assert.Equal(t, store.TimestampOf(when), doc["date"])
		assert.IsType(t, store.Timestamp{}, doc["createdAt"])
		assert.EqualValues(t, 50, doc["pricePerPerson"])
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := makeStore(t)
		_, err := s.Get(context.Background(), store.CollectionGuests, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("UpdateMergesAndTransforms", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, store.CollectionParties, store.Document{
			"name":          "A",
			"budget":        100,
			"collaborators": []string{"a@example.com"},
		})
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, store.CollectionParties, id, store.Document{
			"name":          "B",
			"budget":        store.DeleteField(),
			"collaborators": store.ArrayUnion("b@example.com", "a@example.com"),
		}))

		doc, err := s.Get(ctx, store.CollectionParties, id)
		require.NoError(t, err)
		assert.Equal(t, "B", doc["name"])
		assert.NotContains(t, doc, "budget")
		assert.Equal(t, []any{"a@example.com", "b@example.com"}, doc["collaborators"])

		require.NoError(t, s.Update(ctx, store.CollectionParties, id, store.Document{
			"collaborators": store.ArrayRemove("a@example.com"),
		}))
		doc, err = s.Get(ctx, store.CollectionParties, id)
		require.NoError(t, err)
		assert.Equal(t, []any{"b@example.com"}, doc["collaborators"])
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := makeStore(t)
		err := s.Update(context.Background(), store.CollectionGuests, "nope", store.Document{"paid": true})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		id, err := s.Create(ctx, store.CollectionGuests, store.Document{"name": "Ana"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, store.CollectionGuests, id))
		require.NoError(t, s.Delete(ctx, store.CollectionGuests, id))
		_, err = s.Get(ctx, store.CollectionGuests, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("QueryFilters", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		for _, d := range []store.Document{
			{"partyId": "p1", "invitedEmail": "c@example.com", "status": "pending", "paid": true},
			{"partyId": "p1", "invitedEmail": "d@example.com", "status": "pending", "paid": false},
			{"partyId": "p2", "invitedEmail": "c@example.com", "status": "declined", "paid": true},
		} {
			_, err := s.Create(ctx, store.CollectionInvites, d)
			require.NoError(t, err)
		}
		_, err := s.Create(ctx, store.CollectionParties, store.Document{"ownerId": "u1", "collaborators": []string{"c@example.com"}})
		require.NoError(t, err)
		_, err = s.Create(ctx, store.CollectionParties, store.Document{"ownerId": "u2", "collaborators": []string{}})
		require.NoError(t, err)

		docs, err := s.Query(ctx, store.CollectionInvites, store.Eq("partyId", "p1"))
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		docs, err = s.Query(ctx, store.CollectionInvites, store.Eq("invitedEmail", "c@example.com"), store.Eq("status", "pending"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "p1", docs[0]["partyId"])

		docs, err = s.Query(ctx, store.CollectionInvites, store.Eq("paid", true))
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		docs, err = s.Query(ctx, store.CollectionParties, store.ArrayContains("collaborators", "c@example.com"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "u1", docs[0]["ownerId"])

		docs, err = s.Query(ctx, store.CollectionExpenses)
		require.NoError(t, err)
		assert.Empty(t, docs)

		_, err = s.Query(ctx, store.CollectionParties, store.Eq("owner'Id", "x"))
		assert.ErrorIs(t, err, store.ErrInvalidField)
	})

	t.Run("BatchIsAtomic", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		inviteID, err := s.Create(ctx, store.CollectionInvites, store.Document{"status": "pending"})
		require.NoError(t, err)

		b := s.Batch()
		b.Update(store.CollectionInvites, inviteID, store.Document{"status": "accepted"})
		b.Update(store.CollectionParties, "missing-party", store.Document{"collaborators": store.ArrayUnion("c@example.com")})
		err = b.Commit(ctx)
		require.ErrorIs(t, err, store.ErrNotFound)

		doc, err := s.Get(ctx, store.CollectionInvites, inviteID)
		require.NoError(t, err)
		assert.Equal(t, "pending", doc["status"])
	})

	t.Run("BatchPreconditions", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		inviteID, err := s.Create(ctx, store.CollectionInvites, store.Document{"partyId": "p1", "status": "declined"})
		require.NoError(t, err)

		b := s.Batch()
		b.Require(store.CollectionInvites, inviteID, store.Eq("status", "pending"))
		b.Update(store.CollectionInvites, inviteID, store.Document{"status": "accepted"})
		assert.ErrorIs(t, b.Commit(ctx), store.ErrPrecondition)

		b = s.Batch()
		b.Require(store.CollectionInvites, "missing")
		assert.ErrorIs(t, b.Commit(ctx), store.ErrPrecondition)

		b = s.Batch()
		b.RequireNone(store.CollectionInvites, store.Eq("partyId", "p1"))
		b.Create(store.CollectionInvites, store.Document{"partyId": "p1", "status": "pending"})
		assert.ErrorIs(t, b.Commit(ctx), store.ErrPrecondition)

		b = s.Batch()
		b.RequireNone(store.CollectionInvites, store.Eq("partyId", "p1"), store.Eq("status", "pending"))
		newID := b.Create(store.CollectionInvites, store.Document{"partyId": "p1", "status": "pending"})
		require.NoError(t, b.Commit(ctx))
		_, err = s.Get(ctx, store.CollectionInvites, newID)
		assert.NoError(t, err)
	})

	t.Run("SubscribeDeliversSnapshots", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		var mu sync.Mutex
		var snapshots [][]string
		updates := make(chan struct{}, 16)
		cancel, err := s.Subscribe(ctx, store.CollectionInvites,
			[]store.Filter{store.Eq("invitedEmail", "c@example.com"), store.Eq("status", "pending")},
			func(docs []store.Document) {
				ids := make([]string, 0, len(docs))
				for _, d := range docs {
					ids = append(ids, d.ID())
				}
				sort.Strings(ids)
				mu.Lock()
				snapshots = append(snapshots, ids)
				mu.Unlock()
				updates <- struct{}{}
			}, nil)
		require.NoError(t, err)

		waitFor(t, updates)
		id, err := s.Create(ctx, store.CollectionInvites, store.Document{"invitedEmail": "c@example.com", "status": "pending"})
		require.NoError(t, err)
		waitUntil(t, updates, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(snapshots[len(snapshots)-1]) == 1
		})

		require.NoError(t, s.Update(ctx, store.CollectionInvites, id, store.Document{"status": "accepted"}))
		waitUntil(t, updates, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(snapshots[len(snapshots)-1]) == 0
		})

		cancel()
		cancel()
		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		seen := len(snapshots)
		mu.Unlock()
		_, err = s.Create(ctx, store.CollectionInvites, store.Document{"invitedEmail": "c@example.com", "status": "pending"})
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		assert.Equal(t, seen, len(snapshots))
		mu.Unlock()
	})

	t.Run("SubscribeStopsOnContextCancel", func(t *testing.T) {
		s := makeStore(t)
		ctx, cancelCtx := context.WithCancel(context.Background())

		updates := make(chan struct{}, 16)
		cancel, err := s.Subscribe(ctx, store.CollectionGuests, nil, func([]store.Document) {
			updates <- struct{}{}
		}, nil)
		require.NoError(t, err)
		defer cancel()

		waitFor(t, updates)
		cancelCtx()
		time.Sleep(20 * time.Millisecond)

		_, err = s.Create(context.Background(), store.CollectionGuests, store.Document{"name": "x"})
		require.NoError(t, err)
		select {
		case <-updates:
			t.Fatal("expected no update after context cancellation")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("DumpAndReplace", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		d, ok := s.(store.Dumper)
		if !ok {
			t.Skip("adapter does not implement store.Dumper")
		}

		_, err := s.Create(ctx, store.CollectionGuests, store.Document{"name": "old"})
		require.NoError(t, err)

		err = d.Replace(ctx, store.Snapshot{
			store.CollectionParties: {"p1": {"name": "Bday", "ownerId": "u1"}},
		})
		require.NoError(t, err)

		snap, err := d.Dump(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap[store.CollectionGuests])
		require.Contains(t, snap[store.CollectionParties], "p1")
		assert.Equal(t, "Bday", snap[store.CollectionParties]["p1"]["name"])
	})

	t.Run("BatchCommitsOnce", func(t *testing.T) {
		s := makeStore(t)
		b := s.Batch()
		b.Update(store.CollectionGuests, "missing", store.Document{"x": 1})
		err := b.Commit(context.Background())
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
		assert.Error(t, b.Commit(context.Background()), "second commit must fail")
	})
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription update")
	}
}

func waitUntil(t *testing.T, ch <-chan struct{}, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-ch:
			if cond() {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for subscription state")
		}
	}
}
