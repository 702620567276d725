package party

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

// Coerce applies the child-age rule: a guest is a child when categorized as
// one or when their age is at or under the party's limit, and children are
// always marked paid.
func Coerce(category GuestCategory, age *int, paid bool, childAgeLimit int) (GuestCategory, bool) {
	if category == CategoryChild || (age != nil && *age <= childAgeLimit) {
		return CategoryChild, true
	}
	return CategoryAdult, paid
}

func validateGuestFields(op, name string, category GuestCategory, age *int) error {
	if name == "" {
		return validationError(op, "name is required")
	}
	if category != "" && !category.Valid() {
		return validationError(op, "unknown guest category %q", category)
	}
	if age != nil && *age < 0 {
		return validationError(op, "age must not be negative")
	}
	return nil
}

// CreateGuest adds a guest to a party the caller owns or collaborates on.
// The stored record is anchored to the party owner, not to the caller.
func (s *Service) CreateGuest(ctx context.Context, who identity.Identity, partyID string, in GuestInput) (*Guest, error) {
	const op = "add guest"
	in.Name = strings.TrimSpace(in.Name)
	if err := validateGuestFields(op, in.Name, in.Category, in.Age); err != nil {
		return nil, err
	}

	p, access, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return nil, err
	}

	g := Guest{
		Name:          in.Name,
		Age:           in.Age,
		Observations:  strings.TrimSpace(in.Observations),
		PartyID:       p.ID,
		RecordOwnerID: p.OwnerID,
	}
	g.Category, g.Paid = Coerce(in.Category, in.Age, in.Paid, p.ChildAgeLimit)

	b := s.store.Batch()
	requireAccess(b, who, access, partyID)
	id := b.Create(store.CollectionGuests, encodeGuest(g))
	if err := b.Commit(ctx); err != nil {
		return nil, s.partyWriteError(op, err)
	}

	created, err := s.loadGuest(ctx, id)
	if err != nil {
		return nil, storeError(op, err)
	}
	log.WithFields(log.Fields{"party_id": partyID, "guest_id": id, "category": g.Category}).Info("guest added")
	return created, nil
}

func (s *Service) loadGuest(ctx context.Context, id string) (*Guest, error) {
	doc, err := s.store.Get(ctx, store.CollectionGuests, id)
	if err != nil {
		return nil, err
	}
	return decodeGuest(doc)
}

// partyGuest loads a guest and checks it belongs to partyID. Access to the
// party has already been granted, so a missing guest is reported as such.
func (s *Service) partyGuest(ctx context.Context, op, partyID, guestID string) (*Guest, error) {
	if guestID == "" {
		return nil, notFoundError(op, "guest not found")
	}
	g, err := s.loadGuest(ctx, guestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError(op, "guest not found")
	}
	if err != nil {
		return nil, storeError(op, err)
	}
	if g.PartyID != partyID {
		return nil, notFoundError(op, "guest not found")
	}
	return g, nil
}

// ListGuests returns the party's guests, newest first, narrowed by filter.
func (s *Service) ListGuests(ctx context.Context, who identity.Identity, partyID string, filter GuestFilter) ([]Guest, error) {
	const op = "load guests"
	if !filter.Status.Valid() {
		return nil, validationError(op, "unknown guest filter %q", filter.Status)
	}
	if _, _, err := s.authorized(ctx, op, who, partyID, false); err != nil {
		return nil, err
	}

	guests, err := s.queryGuests(ctx, partyID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return filter.Apply(guests), nil
}

func (s *Service) queryGuests(ctx context.Context, partyID string) ([]Guest, error) {
	docs, err := s.store.Query(ctx, store.CollectionGuests, store.Eq(fieldPartyID, partyID))
	if err != nil {
		return nil, err
	}
	return sortedGuests(docs)
}

func sortedGuests(docs []store.Document) ([]Guest, error) {
	guests, err := decodeAll(docs, decodeGuest)
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(guests, func(g Guest) time.Time { return g.CreatedAt }, func(g Guest) string { return g.ID })
	return guests, nil
}

// UpdateGuest merges patch into the guest. Whenever age or category change the
// child-age rule is re-evaluated against the party's current limit.
func (s *Service) UpdateGuest(ctx context.Context, who identity.Identity, partyID, guestID string, patch GuestPatch) (*Guest, error) {
	const op = "update guest"
	p, access, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return nil, err
	}
	current, err := s.partyGuest(ctx, op, partyID, guestID)
	if err != nil {
		return nil, err
	}

	next := *current
	fields := store.Document{}
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
		fields[fieldName] = next.Name
	}
	if patch.Observations != nil {
		next.Observations = strings.TrimSpace(*patch.Observations)
		fields[fieldObservations] = next.Observations
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	switch {
	case patch.ClearAge:
		next.Age = nil
		fields[fieldAge] = store.DeleteField()
	case patch.Age != nil:
		age := *patch.Age
		next.Age = &age
		fields[fieldAge] = age
	}
	if patch.Paid != nil {
		next.Paid = *patch.Paid
	}
	if err := validateGuestFields(op, next.Name, next.Category, next.Age); err != nil {
		return nil, err
	}

	if patch.Category != nil || patch.Age != nil || patch.ClearAge {
		next.Category, next.Paid = Coerce(next.Category, next.Age, next.Paid, p.ChildAgeLimit)
	} else if next.Category == CategoryChild {
		next.Paid = true
	}
	if next.Category != current.Category {
		fields[fieldCategory] = string(next.Category)
	}
	if next.Paid != current.Paid {
		fields[fieldPaid] = next.Paid
	}
	if len(fields) == 0 {
		return current, nil
	}

	b := s.store.Batch()
	requireAccess(b, who, access, partyID)
	b.Require(store.CollectionGuests, guestID, store.Eq(fieldPartyID, partyID))
	b.Update(store.CollectionGuests, guestID, fields)
	if err := b.Commit(ctx); err != nil {
		return nil, s.partyWriteError(op, err)
	}

	updated, err := s.loadGuest(ctx, guestID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return updated, nil
}

// DeleteGuest removes a guest of the party. The caller needs party access.
func (s *Service) DeleteGuest(ctx context.Context, who identity.Identity, partyID, guestID string) error {
	const op = "delete guest"
	_, access, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return err
	}
	if _, err := s.partyGuest(ctx, op, partyID, guestID); err != nil {
		return err
	}

	b := s.store.Batch()
	requireAccess(b, who, access, partyID)
	b.Delete(store.CollectionGuests, guestID)
	if err := b.Commit(ctx); err != nil {
		return s.partyWriteError(op, err)
	}
	log.WithFields(log.Fields{"party_id": partyID, "guest_id": guestID}).Info("guest deleted")
	return nil
}

// TogglePayment flips the paid flag of an adult guest. Children are exempt
// and cannot be toggled.
func (s *Service) TogglePayment(ctx context.Context, who identity.Identity, partyID, guestID string) (*Guest, error) {
	const op = "toggle payment"
	_, access, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return nil, err
	}
	g, err := s.partyGuest(ctx, op, partyID, guestID)
	if err != nil {
		return nil, err
	}
	if g.Category == CategoryChild {
		return nil, validationError(op, "children are exempt from payment")
	}

	b := s.store.Batch()
	requireAccess(b, who, access, partyID)
	// Reason: two concurrent toggles must not both flip from the same value
	b.Require(store.CollectionGuests, guestID, store.Eq(fieldCategory, string(CategoryAdult)), store.Eq(fieldPaid, g.Paid))
	b.Update(store.CollectionGuests, guestID, store.Document{fieldPaid: !g.Paid})
	if err := b.Commit(ctx); err != nil {
		if errors.Is(err, store.ErrPrecondition) && s.CheckAccess(ctx, who, partyID).HasAccess {
			return nil, conflictError(op, "guest was modified concurrently")
		}
		return nil, s.partyWriteError(op, err)
	}

	g.Paid = !g.Paid
	log.WithFields(log.Fields{"party_id": partyID, "guest_id": guestID, "paid": g.Paid}).Info("guest payment toggled")
	return g, nil
}

// WatchGuests streams the party's full guest list, newest first, after every
// change until cancel is called or ctx ends.
func (s *Service) WatchGuests(ctx context.Context, who identity.Identity, partyID string, onChange func([]Guest), onError func(error)) (cancel func(), err error) {
	return s.watch(ctx, "watch guests", who, partyID, store.CollectionGuests, func(docs []store.Document) error {
		guests, err := sortedGuests(docs)
		if err != nil {
			return err
		}
		onChange(guests)
		return nil
	}, onError)
}

func (f GuestStatusFilter) Valid() bool {
	switch f {
	case "", GuestsAll, GuestsPaid, GuestsUnpaid, GuestsAdults, GuestsChildren:
		return true
	}
	return false
}

// Apply keeps the guests matching the status and a case-insensitive name search.
func (f GuestFilter) Apply(guests []Guest) []Guest {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Guest, 0, len(guests))
	for _, g := range guests {
		if search != "" && !strings.Contains(strings.ToLower(g.Name), search) {
			continue
		}
		switch f.Status {
		case GuestsPaid:
			if !g.Paid {
				continue
			}
		case GuestsUnpaid:
			if g.Paid {
				continue
			}
		case GuestsAdults:
			if g.Category != CategoryAdult {
				continue
			}
		case GuestsChildren:
			if g.Category != CategoryChild {
				continue
			}
		}
		out = append(out, g)
	}
	return out
}
