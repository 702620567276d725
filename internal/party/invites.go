package party

import (
	"context"
	"errors"
	"net/mail"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

// validEmail accepts a bare address only, no display name.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// InviteCollaborator offers collaborator access on a party to an email
// address. Only the owner may invite. At most one pending invite exists per
// party and address; accepted and declined invites do not block a new one.
func (s *Service) InviteCollaborator(ctx context.Context, who identity.Identity, partyID, invitedEmail string) (*Invite, error) {
	const op = "invite collaborator"
	email := identity.NormalizeEmail(invitedEmail)
	if email == "" {
		return nil, validationError(op, "email is required")
	}
	if !validEmail(email) {
		return nil, validationError(op, "invalid email address %q", invitedEmail)
	}

	p, _, err := s.authorized(ctx, op, who, partyID, true)
	if err != nil {
		return nil, err
	}

	ownerEmail := identity.NormalizeEmail(who.Email)
	if email == ownerEmail {
		return nil, validationError(op, "you cannot invite yourself")
	}
	for _, c := range p.Collaborators {
		if identity.NormalizeEmail(c) == email {
			return nil, conflictError(op, "this email is already a collaborator")
		}
	}

	pending := []store.Filter{
		store.Eq(fieldPartyID, partyID),
		store.Eq(fieldInvitedEmail, email),
		store.Eq(fieldStatus, string(InvitePending)),
	}
	existing, err := s.store.Query(ctx, store.CollectionInvites, pending...)
	if err != nil {
		return nil, storeError(op, err)
	}
	if len(existing) > 0 {
		return nil, conflictError(op, "an invite for this email is already pending")
	}

	inv := Invite{
		PartyID:      partyID,
		PartyName:    p.Name,
		OwnerEmail:   ownerEmail,
		InvitedEmail: email,
		Status:       InvitePending,
	}
	b := s.store.Batch()
	b.Require(store.CollectionParties, partyID, store.Eq(fieldOwnerID, who.ID))
	// Reason: the pre-check above can race with a concurrent invite
	b.RequireNone(store.CollectionInvites, pending...)
	id := b.Create(store.CollectionInvites, encodeInvite(inv))
	if err := b.Commit(ctx); err != nil {
		if errors.Is(err, store.ErrPrecondition) && s.CheckAccess(ctx, who, partyID).IsOwner {
			return nil, conflictError(op, "an invite for this email is already pending")
		}
		return nil, s.partyWriteError(op, err)
	}

	created, err := s.loadInvite(ctx, id)
	if err != nil {
		return nil, storeError(op, err)
	}
	log.WithFields(log.Fields{"party_id": partyID, "invite_id": id}).Info("collaborator invited")
	return created, nil
}

func (s *Service) loadInvite(ctx context.Context, id string) (*Invite, error) {
	doc, err := s.store.Get(ctx, store.CollectionInvites, id)
	if err != nil {
		return nil, err
	}
	return decodeInvite(doc)
}

// ownInvite loads an invite addressed to the caller. Invites addressed to
// someone else are reported as missing.
func (s *Service) ownInvite(ctx context.Context, op string, who identity.Identity, inviteID string) (*Invite, string, error) {
	email := identity.NormalizeEmail(who.Email)
	if email == "" {
		return nil, "", validationError(op, "an email address is required to answer invites")
	}
	if inviteID == "" {
		return nil, "", notFoundError(op, "invite not found")
	}
	inv, err := s.loadInvite(ctx, inviteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", notFoundError(op, "invite not found")
	}
	if err != nil {
		return nil, "", storeError(op, err)
	}
	if identity.NormalizeEmail(inv.InvitedEmail) != email {
		log.WithFields(log.Fields{"op": op, "invite_id": inviteID, "user_id": who.ID}).Warn("invite addressed to another email")
		return nil, "", notFoundError(op, "invite not found")
	}
	if inv.Status != InvitePending {
		return nil, "", conflictError(op, "invite was already "+string(inv.Status))
	}
	return inv, email, nil
}

// AcceptInvite marks the invite accepted and adds the caller's email to the
// party collaborators in one atomic batch. Either both happen or neither.
func (s *Service) AcceptInvite(ctx context.Context, who identity.Identity, inviteID string) (*Invite, error) {
	const op = "accept invite"
	inv, email, err := s.ownInvite(ctx, op, who, inviteID)
	if err != nil {
		return nil, err
	}

	b := s.store.Batch()
	b.Require(store.CollectionInvites, inviteID,
		store.Eq(fieldStatus, string(InvitePending)),
		store.Eq(fieldInvitedEmail, inv.InvitedEmail))
	b.Update(store.CollectionInvites, inviteID, store.Document{fieldStatus: string(InviteAccepted)})
	b.Update(store.CollectionParties, inv.PartyID, store.Document{fieldCollaborators: store.ArrayUnion(email)})
	if err := b.Commit(ctx); err != nil {
		return nil, s.resolveError(op, err)
	}

	inv.Status = InviteAccepted
	log.WithFields(log.Fields{"party_id": inv.PartyID, "invite_id": inviteID, "user_id": who.ID}).Info("invite accepted")
	return inv, nil
}

// DeclineInvite resolves a pending invite without touching the party.
func (s *Service) DeclineInvite(ctx context.Context, who identity.Identity, inviteID string) (*Invite, error) {
	const op = "decline invite"
	inv, _, err := s.ownInvite(ctx, op, who, inviteID)
	if err != nil {
		return nil, err
	}

	b := s.store.Batch()
	b.Require(store.CollectionInvites, inviteID, store.Eq(fieldStatus, string(InvitePending)))
	b.Update(store.CollectionInvites, inviteID, store.Document{fieldStatus: string(InviteDeclined)})
	if err := b.Commit(ctx); err != nil {
		return nil, s.resolveError(op, err)
	}

	inv.Status = InviteDeclined
	log.WithFields(log.Fields{"party_id": inv.PartyID, "invite_id": inviteID, "user_id": who.ID}).Info("invite declined")
	return inv, nil
}

func (s *Service) resolveError(op string, err error) error {
	if errors.Is(err, store.ErrPrecondition) || errors.Is(err, store.ErrNotFound) {
		return conflictError(op, "invite is no longer pending")
	}
	return storeError(op, err)
}

func pendingFilters(op string, who identity.Identity) ([]store.Filter, error) {
	email := identity.NormalizeEmail(who.Email)
	if email == "" {
		return nil, validationError(op, "an email address is required to list invites")
	}
	return []store.Filter{
		store.Eq(fieldInvitedEmail, email),
		store.Eq(fieldStatus, string(InvitePending)),
	}, nil
}

func sortedInvites(docs []store.Document) ([]Invite, error) {
	invites, err := decodeAll(docs, decodeInvite)
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(invites, func(i Invite) time.Time { return i.CreatedAt }, func(i Invite) string { return i.ID })
	return invites, nil
}

// PendingInvites lists invites awaiting the caller's answer, newest first.
func (s *Service) PendingInvites(ctx context.Context, who identity.Identity) ([]Invite, error) {
	const op = "load pending invites"
	filters, err := pendingFilters(op, who)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, store.CollectionInvites, filters...)
	if err != nil {
		return nil, storeError(op, err)
	}
	invites, err := sortedInvites(docs)
	if err != nil {
		return nil, storeError(op, err)
	}
	return invites, nil
}

// WatchPendingInvites emits the caller's full pending invite list after every
// change to the invites collection. It never ends on its own; the caller
// must call cancel or end ctx.
func (s *Service) WatchPendingInvites(ctx context.Context, who identity.Identity, onChange func([]Invite), onError func(error)) (cancel func(), err error) {
	const op = "watch pending invites"
	filters, err := pendingFilters(op, who)
	if err != nil {
		return nil, err
	}
	cancel, err = s.store.Subscribe(ctx, store.CollectionInvites, filters, func(docs []store.Document) {
		invites, err := sortedInvites(docs)
		if err != nil {
			if onError != nil {
				onError(storeError(op, err))
			}
			return
		}
		onChange(invites)
	}, func(err error) {
		if onError != nil {
			onError(storeError(op, err))
		}
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return cancel, nil
}

// ListPartyInvites returns every invite of the party, in any status. Owner only.
func (s *Service) ListPartyInvites(ctx context.Context, who identity.Identity, partyID string) ([]Invite, error) {
	const op = "load party invites"
	if _, _, err := s.authorized(ctx, op, who, partyID, true); err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, store.CollectionInvites, store.Eq(fieldPartyID, partyID))
	if err != nil {
		return nil, storeError(op, err)
	}
	invites, err := sortedInvites(docs)
	if err != nil {
		return nil, storeError(op, err)
	}
	return invites, nil
}

// RemoveCollaborator revokes a collaborator's access. Owner only.
func (s *Service) RemoveCollaborator(ctx context.Context, who identity.Identity, partyID, collaboratorEmail string) error {
	const op = "remove collaborator"
	email := identity.NormalizeEmail(collaboratorEmail)
	if email == "" {
		return validationError(op, "email is required")
	}
	p, _, err := s.authorized(ctx, op, who, partyID, true)
	if err != nil {
		return err
	}

	var stored []any
	for _, c := range p.Collaborators {
		if identity.NormalizeEmail(c) == email {
			stored = append(stored, c)
		}
	}
	if len(stored) == 0 {
		return notFoundError(op, "not a collaborator")
	}

	if err := s.commitOwned(ctx, partyID, who.ID, store.Document{fieldCollaborators: store.ArrayRemove(stored...)}); err != nil {
		return s.partyWriteError(op, err)
	}
	log.WithFields(log.Fields{"party_id": partyID, "removed": len(stored)}).Info("collaborator removed")
	return nil
}
