// Package party implements the access-controlled data layer of the party
// planner: parties, their guests and expenses, and the collaborator invite
// workflow, on top of a store.Store.
//
// Every operation takes the caller's identity explicitly and re-reads the
// party it authorizes against; nothing is cached between calls because the
// collaborator set may change concurrently.
package party

import (
	"context"
	"errors"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// loadParty fetches and decodes a party. A missing party is reported as
// store.ErrNotFound so callers can decide how much to reveal.
func (s *Service) loadParty(ctx context.Context, partyID string) (*Party, error) {
	if partyID == "" {
		return nil, store.ErrNotFound
	}
	doc, err := s.store.Get(ctx, store.CollectionParties, partyID)
	if err != nil {
		return nil, err
	}
	return decodeParty(doc)
}

// authorized loads the party and checks the caller's access. Unknown and
// forbidden parties yield the same "access denied" error.
func (s *Service) authorized(ctx context.Context, op string, who identity.Identity, partyID string, ownerOnly bool) (*Party, Access, error) {
	p, err := s.loadParty(ctx, partyID)
	if errors.Is(err, store.ErrNotFound) {
		log.WithFields(log.Fields{"op": op, "party_id": partyID, "user_id": who.ID}).Warn("access denied: party not found")
		return nil, Access{}, accessDenied(op)
	}
	if err != nil {
		return nil, Access{}, storeError(op, err)
	}

	access := Authorize(who, p)
	allowed := access.HasAccess
	if ownerOnly {
		allowed = access.IsOwner
	}
	if !allowed {
		log.WithFields(log.Fields{"op": op, "party_id": partyID, "user_id": who.ID}).Warn("access denied")
		return nil, access, accessDenied(op)
	}
	return p, access, nil
}

// requireAccess makes a batch fail at commit time if the caller lost the
// access they had when the party was loaded, or the party is gone.
func requireAccess(b store.Batch, who identity.Identity, access Access, partyID string) {
	if access.IsOwner {
		b.Require(store.CollectionParties, partyID, store.Eq(fieldOwnerID, who.ID))
		return
	}
	b.Require(store.CollectionParties, partyID, store.ArrayContains(fieldCollaborators, identity.NormalizeEmail(who.Email)))
}

// watch subscribes to a party-scoped collection on behalf of who. Access is
// re-checked on every snapshot; once it is lost the caller gets a permission
// error and the subscription ends.
func (s *Service) watch(ctx context.Context, op string, who identity.Identity, partyID, collection string, deliver func([]store.Document) error, onError func(error)) (func(), error) {
	if _, _, err := s.authorized(ctx, op, who, partyID, false); err != nil {
		return nil, err
	}

	var cancel func()
	ready := make(chan struct{})

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}
	onChange := func(docs []store.Document) {
		if !s.CheckAccess(ctx, who, partyID).HasAccess {
			log.WithFields(log.Fields{"op": op, "party_id": partyID, "user_id": who.ID}).Warn("subscription closed: access revoked")
			report(accessDenied(op))
			<-ready
			cancel()
			return
		}
		if err := deliver(docs); err != nil {
			report(storeError(op, err))
		}
	}

	unsubscribe, err := s.store.Subscribe(ctx, collection, []store.Filter{store.Eq(fieldPartyID, partyID)}, onChange, func(err error) {
		report(storeError(op, err))
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	cancel = unsubscribe
	close(ready)
	return unsubscribe, nil
}

func sortByCreatedDesc[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]) < id(items[j])
	})
}
