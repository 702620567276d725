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

func validatePartyFields(op string, name string, price float64, childAgeLimit int) error {
	if name == "" {
		return validationError(op, "name is required")
	}
	if price < 0 {
		return validationError(op, "price per person must not be negative")
	}
	if childAgeLimit < 0 {
		return validationError(op, "child age limit must not be negative")
	}
	return nil
}

// CreateParty stores a new party owned by the caller and returns it as
// written. The returned id is usable immediately; no re-query is needed.
func (s *Service) CreateParty(ctx context.Context, who identity.Identity, in PartyInput) (*Party, error) {
	const op = "create party"
	if who.ID == "" {
		return nil, &Error{Kind: KindPermission, Op: op, Msg: "authentication required"}
	}

	in.Name = strings.TrimSpace(in.Name)
	if err := validatePartyFields(op, in.Name, in.PricePerPerson, in.ChildAgeLimit); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, validationError(op, "date is required")
	}
	if in.Budget != nil && *in.Budget < 0 {
		return nil, validationError(op, "budget must not be negative")
	}

	id, err := s.store.Create(ctx, store.CollectionParties, encodeParty(in, who.ID))
	if err != nil {
		return nil, storeError(op, err)
	}
	p, err := s.loadParty(ctx, id)
	if err != nil {
		return nil, storeError(op, err)
	}

	log.WithFields(log.Fields{"party_id": id, "user_id": who.ID}).Info("party created")
	return p, nil
}

// GetParty returns the party together with the caller's access to it.
func (s *Service) GetParty(ctx context.Context, who identity.Identity, partyID string) (*Party, Access, error) {
	return s.authorized(ctx, "load party", who, partyID, false)
}

// CheckAccess never fails: store errors and unknown parties grant nothing.
func (s *Service) CheckAccess(ctx context.Context, who identity.Identity, partyID string) Access {
	p, err := s.loadParty(ctx, partyID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).WithField("party_id", partyID).Error("failed to check party access")
		}
		return Access{}
	}
	return Authorize(who, p)
}

// UpdateParty edits owner-editable fields. Owner and collaborators are not
// editable here.
func (s *Service) UpdateParty(ctx context.Context, who identity.Identity, partyID string, patch PartyPatch) (*Party, error) {
	const op = "update party"
	current, _, err := s.authorized(ctx, op, who, partyID, true)
	if err != nil {
		return nil, err
	}

	fields := store.Document{}
	name, price, limit := current.Name, current.PricePerPerson, current.ChildAgeLimit
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		fields[fieldName] = name
	}
	if patch.PricePerPerson != nil {
		price = *patch.PricePerPerson
		fields[fieldPricePerPerson] = price
	}
	if patch.ChildAgeLimit != nil {
		limit = *patch.ChildAgeLimit
		fields[fieldChildAgeLimit] = limit
	}
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return nil, validationError(op, "date is required")
		}
		fields[fieldDate] = store.TimestampOf(calendarDate(*patch.Date))
	}
	if err := validatePartyFields(op, name, price, limit); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return current, nil
	}

	if err := s.commitOwned(ctx, partyID, who.ID, fields); err != nil {
		return nil, s.partyWriteError(op, err)
	}
	log.WithFields(log.Fields{"party_id": partyID, "fields": len(fields)}).Info("party updated")
	return s.reload(ctx, op, partyID)
}

// UpdateBudget sets the party budget; nil clears it.
func (s *Service) UpdateBudget(ctx context.Context, who identity.Identity, partyID string, budget *float64) (*Party, error) {
	const op = "update budget"
	if budget != nil && *budget < 0 {
		return nil, validationError(op, "budget must not be negative")
	}
	if _, _, err := s.authorized(ctx, op, who, partyID, true); err != nil {
		return nil, err
	}

	var value any = store.DeleteField()
	if budget != nil {
		value = *budget
	}
	if err := s.commitOwned(ctx, partyID, who.ID, store.Document{fieldBudget: value}); err != nil {
		return nil, s.partyWriteError(op, err)
	}
	return s.reload(ctx, op, partyID)
}

// commitOwned updates the party only if it is still owned by ownerID at commit time.
func (s *Service) commitOwned(ctx context.Context, partyID, ownerID string, fields store.Document) error {
	b := s.store.Batch()
	b.Require(store.CollectionParties, partyID, store.Eq(fieldOwnerID, ownerID))
	b.Update(store.CollectionParties, partyID, fields)
	return b.Commit(ctx)
}

func (s *Service) partyWriteError(op string, err error) error {
	if errors.Is(err, store.ErrPrecondition) || errors.Is(err, store.ErrNotFound) {
		return accessDenied(op)
	}
	return storeError(op, err)
}

func (s *Service) reload(ctx context.Context, op, partyID string) (*Party, error) {
	p, err := s.loadParty(ctx, partyID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return p, nil
}

// ListParties is the party aggregation query: parties the caller owns united
// with parties listing the caller's email as collaborator, deduplicated by id
// and ordered by creation time, newest first. The collaborator query is
// skipped entirely when the caller has no email.
func (s *Service) ListParties(ctx context.Context, who identity.Identity) ([]Party, error) {
	const op = "load parties"
	if who.ID == "" {
		return nil, &Error{Kind: KindPermission, Op: op, Msg: "authentication required"}
	}

	owned, err := s.store.Query(ctx, store.CollectionParties, store.Eq(fieldOwnerID, who.ID))
	if err != nil {
		return nil, storeError(op, err)
	}

	var shared []store.Document
	if who.HasEmail() {
		shared, err = s.store.Query(ctx, store.CollectionParties, store.ArrayContains(fieldCollaborators, identity.NormalizeEmail(who.Email)))
		if err != nil {
			return nil, storeError(op, err)
		}
	}

	seen := make(map[string]struct{}, len(owned)+len(shared))
	parties := make([]Party, 0, len(owned)+len(shared))
	for _, doc := range append(owned, shared...) {
		if _, dup := seen[doc.ID()]; dup {
			continue
		}
		seen[doc.ID()] = struct{}{}
		p, err := decodeParty(doc)
		if err != nil {
			return nil, storeError(op, err)
		}
		parties = append(parties, *p)
	}

	sortByCreatedDesc(parties, func(p Party) time.Time { return p.CreatedAt }, func(p Party) string { return p.ID })
	log.WithFields(log.Fields{"user_id": who.ID, "owned": len(owned), "shared": len(shared), "total": len(parties)}).Debug("parties listed")
	return parties, nil
}

// deleteAttempts bounds how often DeleteParty re-lists children after a
// concurrent insert into the party.
const deleteAttempts = 3

// DeleteParty removes the party and every guest, expense and invite that
// references it in one atomic batch. Owner only. A child written between
// listing and commit fails the batch, which is then retried from scratch.
func (s *Service) DeleteParty(ctx context.Context, who identity.Identity, partyID string) error {
	const op = "delete party"
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		if _, _, err := s.authorized(ctx, op, who, partyID, true); err != nil {
			return err
		}

		counts, err := s.commitCascade(ctx, partyID, who.ID)
		if err == nil {
			log.WithFields(counts).Info("party deleted")
			return nil
		}
		if !errors.Is(err, store.ErrPrecondition) {
			return s.partyWriteError(op, err)
		}
		log.WithFields(log.Fields{"party_id": partyID, "attempt": attempt}).Warn("party changed during delete, retrying")
	}
	return conflictError(op, "party is being modified concurrently, try again")
}

func (s *Service) commitCascade(ctx context.Context, partyID, ownerID string) (log.Fields, error) {
	b := s.store.Batch()
	b.Require(store.CollectionParties, partyID, store.Eq(fieldOwnerID, ownerID))

	counts := log.Fields{"party_id": partyID}
	for _, collection := range []string{store.CollectionGuests, store.CollectionExpenses, store.CollectionInvites} {
		docs, err := s.store.Query(ctx, collection, store.Eq(fieldPartyID, partyID))
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			b.Delete(collection, doc.ID())
		}
		// anything still matching here was inserted after the query
		b.RequireNone(collection, store.Eq(fieldPartyID, partyID))
		counts[collection] = len(docs)
	}
	b.Delete(store.CollectionParties, partyID)

	return counts, b.Commit(ctx)
}
