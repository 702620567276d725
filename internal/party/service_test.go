package party_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

var (
	owner    = identity.Identity{ID: "u1", Email: "owner@example.com"}
	collab   = identity.Identity{ID: "u2", Email: "c@example.com"}
	stranger = identity.Identity{ID: "u3", Email: "x@example.com"}
	noEmail  = identity.Identity{ID: "u4"}
)

func newTestStore(t *testing.T) *store.BBoltStore {
	t.Helper()
	s, err := store.NewBBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestService(t *testing.T) (*party.Service, *store.BBoltStore) {
	t.Helper()
	s := newTestStore(t)
	return party.NewService(s), s
}

func bday() party.PartyInput {
	return party.PartyInput{
		Name:           "Bday",
		Date:           time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		PricePerPerson: 50,
		ChildAgeLimit:  7,
	}
}

func createParty(t *testing.T, svc *party.Service, who identity.Identity, name string) *party.Party {
	t.Helper()
	in := bday()
	in.Name = name
	p, err := svc.CreateParty(context.Background(), who, in)
	require.NoError(t, err)
	return p
}

// addCollaborator runs the full invite workflow so tests start from a party
// shared between owner and collab.
func addCollaborator(t *testing.T, svc *party.Service, partyID string, who identity.Identity) {
	t.Helper()
	ctx := context.Background()
	inv, err := svc.InviteCollaborator(ctx, owner, partyID, who.Email)
	require.NoError(t, err)
	_, err = svc.AcceptInvite(ctx, who, inv.ID)
	require.NoError(t, err)
}

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool { return &v }
func catPtr(v party.GuestCategory) *party.GuestCategory { return &v }

func requireKind(t *testing.T, err error, kind party.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, party.KindOf(err), "unexpected error: %v", err)
}
