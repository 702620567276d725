package party

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/store"
)

// DebugParties lists every party regardless of ownership. It is a
// best-effort diagnostic: failures are logged and an empty list returned.
func (s *Service) DebugParties(ctx context.Context) []Party {
	docs, err := s.store.Query(ctx, store.CollectionParties)
	if err != nil {
		log.WithError(err).Error("debug: failed to list parties")
		return []Party{}
	}
	parties := make([]Party, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeParty(doc)
		if err != nil {
			log.WithError(err).Warn("debug: skipping party")
			continue
		}
		parties = append(parties, *p)
	}
	log.WithField("count", len(parties)).Debug("debug: parties listed")
	return parties
}

// DebugGuests lists guests of one party, or of all parties when partyID is
// empty. Like DebugParties it never fails.
func (s *Service) DebugGuests(ctx context.Context, partyID string) []Guest {
	var filters []store.Filter
	if partyID != "" {
		filters = append(filters, store.Eq(fieldPartyID, partyID))
	}
	docs, err := s.store.Query(ctx, store.CollectionGuests, filters...)
	if err != nil {
		log.WithError(err).WithField("party_id", partyID).Error("debug: failed to list guests")
		return []Guest{}
	}
	guests := make([]Guest, 0, len(docs))
	for _, doc := range docs {
		g, err := decodeGuest(doc)
		if err != nil {
			log.WithError(err).Warn("debug: skipping guest")
			continue
		}
		guests = append(guests, *g)
	}
	return guests
}
