package party_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

func TestCoerce(t *testing.T) {
	const limit = 7
	tests := []struct {
		name     string
		category party.GuestCategory
		age      *int
		paid     bool
		wantCat  party.GuestCategory
		wantPaid bool
	}{
		{"young adult input becomes child", party.CategoryAdult, intPtr(5), false, party.CategoryChild, true},
		{"age at limit is child", "", intPtr(7), false, party.CategoryChild, true},
		{"age above limit keeps paid", party.CategoryAdult, intPtr(8), false, party.CategoryAdult, false},
		{"no age keeps paid", party.CategoryAdult, nil, true, party.CategoryAdult, true},
		{"explicit child with adult age", party.CategoryChild, intPtr(40), false, party.CategoryChild, true},
		{"empty category defaults to adult", "", nil, false, party.CategoryAdult, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, paid := party.Coerce(tt.category, tt.age, tt.paid, limit)
			assert.Equal(t, tt.wantCat, cat)
			assert.Equal(t, tt.wantPaid, paid)
		})
	}
}

func TestCreateGuest_ChildAgeCoercion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")

	for age := 0; age <= 12; age++ {
		for _, paid := range []bool{true, false} {
			g, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "G", Category: party.CategoryAdult, Age: intPtr(age), Paid: paid})
			require.NoError(t, err)
			if age <= p.ChildAgeLimit {
				assert.Equal(t, party.CategoryChild, g.Category, "age %d", age)
				assert.True(t, g.Paid, "age %d", age)
			} else {
				assert.Equal(t, party.CategoryAdult, g.Category, "age %d", age)
				assert.Equal(t, paid, g.Paid, "age %d", age)
			}
		}
	}
}

func TestCreateGuest_RecordOwnerIsPartyOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")
	addCollaborator(t, svc, p.ID, collab)

	g, err := svc.CreateGuest(ctx, collab, p.ID, party.GuestInput{Name: "  Carla ", Observations: " vegan "})
	require.NoError(t, err)
	assert.Equal(t, "Carla", g.Name)
	assert.Equal(t, "vegan", g.Observations)
	assert.Equal(t, owner.ID, g.RecordOwnerID)
	assert.Equal(t, p.ID, g.PartyID)
}

func TestCreateGuest_Rejections(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")

	_, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "   "})
	requireKind(t, err, party.KindValidation)
	_, err = svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "A", Age: intPtr(-1)})
	requireKind(t, err, party.KindValidation)
	_, err = svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "A", Category: "alien"})
	requireKind(t, err, party.KindValidation)

	_, err = svc.CreateGuest(ctx, stranger, p.ID, party.GuestInput{Name: "Intruder"})
	requireKind(t, err, party.KindPermission)
	_, err = svc.CreateGuest(ctx, noEmail, p.ID, party.GuestInput{Name: "Intruder"})
	requireKind(t, err, party.KindPermission)

	docs, err := st.Query(ctx, store.CollectionGuests)
	require.NoError(t, err)
	assert.Empty(t, docs, "rejected creates must not write")
}

func TestGuests_CollaboratorLosesAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")
	addCollaborator(t, svc, p.ID, collab)

	g, err := svc.CreateGuest(ctx, collab, p.ID, party.GuestInput{Name: "Bob"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveCollaborator(ctx, owner, p.ID, collab.Email))

	_, err = svc.ListGuests(ctx, collab, p.ID, party.GuestFilter{})
	requireKind(t, err, party.KindPermission)
	err = svc.DeleteGuest(ctx, collab, p.ID, g.ID)
	requireKind(t, err, party.KindPermission)
	_, err = svc.UpdateGuest(ctx, collab, p.ID, g.ID, party.GuestPatch{Name: strPtr("X")})
	requireKind(t, err, party.KindPermission)
}

func TestListGuests_FilterAndOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")

	ana, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Ana", Age: intPtr(5)})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	bob, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Bob", Age: intPtr(30)})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	bia, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Bianca", Paid: true})
	require.NoError(t, err)

	tests := []struct {
		filter party.GuestFilter
		want   []string
	}{
		{party.GuestFilter{}, []string{bia.ID, bob.ID, ana.ID}},
		{party.GuestFilter{Status: party.GuestsAll}, []string{bia.ID, bob.ID, ana.ID}},
		{party.GuestFilter{Status: party.GuestsPaid}, []string{bia.ID, ana.ID}},
		{party.GuestFilter{Status: party.GuestsUnpaid}, []string{bob.ID}},
		{party.GuestFilter{Status: party.GuestsAdults}, []string{bia.ID, bob.ID}},
		{party.GuestFilter{Status: party.GuestsChildren}, []string{ana.ID}},
		{party.GuestFilter{Search: "b"}, []string{bia.ID, bob.ID}},
		{party.GuestFilter{Status: party.GuestsAdults, Search: "BIA"}, []string{bia.ID}},
	}
	for _, tt := range tests {
		guests, err := svc.ListGuests(ctx, owner, p.ID, tt.filter)
		require.NoError(t, err)
		assert.Equal(t, tt.want, guestIDs(guests), "filter %+v", tt.filter)
	}

	_, err = svc.ListGuests(ctx, owner, p.ID, party.GuestFilter{Status: "vip"})
	requireKind(t, err, party.KindValidation)
}

func TestUpdateGuest_RecomputesCoercion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")

	g, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Bob", Age: intPtr(30)})
	require.NoError(t, err)
	require.Equal(t, party.CategoryAdult, g.Category)
	require.False(t, g.Paid)

	g, err = svc.UpdateGuest(ctx, owner, p.ID, g.ID, party.GuestPatch{Age: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, party.CategoryChild, g.Category)
	assert.True(t, g.Paid)

	// Marking a child unpaid is overridden.
	g, err = svc.UpdateGuest(ctx, owner, p.ID, g.ID, party.GuestPatch{Paid: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, g.Paid)

	g, err = svc.UpdateGuest(ctx, owner, p.ID, g.ID, party.GuestPatch{Category: catPtr(party.CategoryAdult), Age: intPtr(20), Paid: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, party.CategoryAdult, g.Category)
	assert.False(t, g.Paid)
	require.NotNil(t, g.Age)
	assert.Equal(t, 20, *g.Age)

	g, err = svc.UpdateGuest(ctx, owner, p.ID, g.ID, party.GuestPatch{ClearAge: true, Observations: strPtr("arrives late")})
	require.NoError(t, err)
	assert.Nil(t, g.Age)
	assert.Equal(t, "arrives late", g.Observations)

	_, err = svc.UpdateGuest(ctx, owner, p.ID, g.ID, party.GuestPatch{Name: strPtr(" ")})
	requireKind(t, err, party.KindValidation)
}

func TestGuest_MustBelongToParty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := createParty(t, svc, owner, "A")
	b := createParty(t, svc, owner, "B")

	g, err := svc.CreateGuest(ctx, owner, a.ID, party.GuestInput{Name: "Ana"})
	require.NoError(t, err)

	err = svc.DeleteGuest(ctx, owner, b.ID, g.ID)
	requireKind(t, err, party.KindNotFound)
	_, err = svc.TogglePayment(ctx, owner, b.ID, g.ID)
	requireKind(t, err, party.KindNotFound)
	err = svc.DeleteGuest(ctx, owner, a.ID, "missing")
	requireKind(t, err, party.KindNotFound)

	require.NoError(t, svc.DeleteGuest(ctx, owner, a.ID, g.ID))
	guests, err := svc.ListGuests(ctx, owner, a.ID, party.GuestFilter{})
	require.NoError(t, err)
	assert.Empty(t, guests)
}

func TestTogglePayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")
	addCollaborator(t, svc, p.ID, collab)

	adult, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Bob", Age: intPtr(30)})
	require.NoError(t, err)
	child, err := svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Ana", Age: intPtr(3)})
	require.NoError(t, err)

	g, err := svc.TogglePayment(ctx, collab, p.ID, adult.ID)
	require.NoError(t, err)
	assert.True(t, g.Paid)
	g, err = svc.TogglePayment(ctx, owner, p.ID, adult.ID)
	require.NoError(t, err)
	assert.False(t, g.Paid)

	_, err = svc.TogglePayment(ctx, owner, p.ID, child.ID)
	requireKind(t, err, party.KindValidation)

	guests, err := svc.ListGuests(ctx, owner, p.ID, party.GuestFilter{Status: party.GuestsChildren})
	require.NoError(t, err)
	require.Len(t, guests, 1)
	assert.True(t, guests[0].Paid)
}

func TestGuestStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")

	inputs := []party.GuestInput{
		{Name: "Ana", Age: intPtr(5)},
		{Name: "Bob", Paid: true},
		{Name: "Carl", Paid: true},
		{Name: "Dora"},
	}
	for _, in := range inputs {
		_, err := svc.CreateGuest(ctx, owner, p.ID, in)
		require.NoError(t, err)
	}

	st, err := svc.GuestStats(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, party.GuestStats{
		Total:             4,
		Adults:            3,
		Children:          1,
		Paid:              3,
		Unpaid:            1,
		Revenue:           100,
		PendingRevenue:    50,
		PaymentPercentage: 67,
	}, *st)

	_, err = svc.GuestStats(ctx, stranger, p.ID)
	requireKind(t, err, party.KindPermission)
}

func TestComputeGuestStats_NoAdults(t *testing.T) {
	st := party.ComputeGuestStats([]party.Guest{{Category: party.CategoryChild, Paid: true}}, 50)
	assert.Equal(t, 0, st.PaymentPercentage)
	assert.Equal(t, 0.0, st.Revenue)
	assert.Equal(t, 0, st.Unpaid)
}

func TestWatchGuests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createParty(t, svc, owner, "Bday")
	addCollaborator(t, svc, p.ID, collab)

	var (
		mu        sync.Mutex
		snapshots [][]party.Guest
		errs      []error
	)
	cancel, err := svc.WatchGuests(ctx, collab, p.ID, func(guests []party.Guest) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, guests)
	}, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})
	require.NoError(t, err)
	defer cancel()

	latest := func() []party.Guest {
		mu.Lock()
		defer mu.Unlock()
		if len(snapshots) == 0 {
			return nil
		}
		return snapshots[len(snapshots)-1]
	}

	require.Eventually(t, func() bool { return latest() != nil }, time.Second, 5*time.Millisecond)
	assert.Empty(t, latest())

	_, err = svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Ana"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(latest()) == 1 }, time.Second, 5*time.Millisecond)

	// Revoking access ends the stream with a permission error.
	require.NoError(t, svc.RemoveCollaborator(ctx, owner, p.ID, collab.Email))
	_, err = svc.CreateGuest(ctx, owner, p.ID, party.GuestInput{Name: "Bob"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	requireKind(t, errs[0], party.KindPermission)
	mu.Unlock()
	assert.Len(t, latest(), 1)

	_, err = svc.WatchGuests(ctx, stranger, p.ID, func([]party.Guest) {}, nil)
	requireKind(t, err, party.KindPermission)
}

func guestIDs(guests []party.Guest) []string {
	ids := make([]string, len(guests))
	for i, g := range guests {
		ids[i] = g.ID
	}
	return ids
}
