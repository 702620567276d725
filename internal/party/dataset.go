package party

import (
	"fmt"
	"time"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

// Dataset is a complete set of records with caller-chosen ids, used to
// bootstrap a store from a seed file or to restore an exported snapshot.
type Dataset struct {
	Parties  []Party
	Guests   []Guest
	Expenses []Expense
	Invites  []Invite
	// OwnerEmails optionally maps party id to the owner's email. Invites
	// carrying an OwnerEmail fill in the parties not listed here.
	OwnerEmails map[string]string
}

// DatasetFromSnapshot decodes an exported snapshot. Document ids come from
// the snapshot keys.
func DatasetFromSnapshot(snap store.Snapshot) (Dataset, error) {
	var d Dataset
	var err error
	if d.Parties, err = decodeCollection(snap, store.CollectionParties, decodeParty); err != nil {
		return Dataset{}, err
	}
	if d.Guests, err = decodeCollection(snap, store.CollectionGuests, decodeGuest); err != nil {
		return Dataset{}, err
	}
	if d.Expenses, err = decodeCollection(snap, store.CollectionExpenses, decodeExpense); err != nil {
		return Dataset{}, err
	}
	if d.Invites, err = decodeCollection(snap, store.CollectionInvites, decodeInvite); err != nil {
		return Dataset{}, err
	}
	return d, nil
}

func decodeCollection[T any](snap store.Snapshot, collection string, decode func(store.Document) (*T, error)) ([]T, error) {
	docs := make([]store.Document, 0, len(snap[collection]))
	for id, doc := range snap[collection] {
		withID := make(store.Document, len(doc)+1)
		for k, v := range doc {
			withID[k] = v
		}
		withID[store.FieldID] = id
		docs = append(docs, withID)
	}
	return decodeAll(docs, decode)
}

// Snapshot encodes d for store.Dumper.Replace. Ids must be unique per
// collection. Child records must reference a party in d; their RecordOwnerID
// is always taken from that party, and guests go through the same age
// coercion as CreateGuest. At most one invite per party and email may be
// pending, and neither collaborators nor invitees may be the owner. Records
// without CreatedAt are stamped with now.
func (d Dataset) Snapshot(now time.Time) (store.Snapshot, error) {
	snap := store.Snapshot{
		store.CollectionParties:  {},
		store.CollectionGuests:   {},
		store.CollectionExpenses: {},
		store.CollectionInvites:  {},
	}
	stamp := func(t time.Time) store.Timestamp {
		if t.IsZero() {
			return store.TimestampOf(now)
		}
		return store.TimestampOf(t)
	}
	put := func(collection, kind, id string, doc store.Document) error {
		if _, dup := snap[collection][id]; dup {
			return fmt.Errorf("%s %s: duplicate id", kind, id)
		}
		snap[collection][id] = doc
		return nil
	}

	ownerEmails, err := d.ownerEmails()
	if err != nil {
		return nil, err
	}

	parties := make(map[string]*Party, len(d.Parties))
	for i := range d.Parties {
		p := &d.Parties[i]
		if p.ID == "" || p.OwnerID == "" {
			return nil, fmt.Errorf("party %d: id and ownerId are required", i)
		}
		if err := validatePartyFields("seed party", p.Name, p.PricePerPerson, p.ChildAgeLimit); err != nil {
			return nil, fmt.Errorf("party %s: %w", p.ID, err)
		}
		if p.Date.IsZero() {
			return nil, fmt.Errorf("party %s: date is required", p.ID)
		}
		if p.Budget != nil && *p.Budget < 0 {
			return nil, fmt.Errorf("party %s: budget must not be negative", p.ID)
		}

		doc := encodeParty(PartyInput{
			Name:           p.Name,
			Date:           p.Date,
			PricePerPerson: p.PricePerPerson,
			ChildAgeLimit:  p.ChildAgeLimit,
			Budget:         p.Budget,
		}, p.OwnerID)
		collaborators := make([]string, 0, len(p.Collaborators))
		seen := make(map[string]bool, len(p.Collaborators))
		for _, c := range p.Collaborators {
			email := identity.NormalizeEmail(c)
			if owner := ownerEmails[p.ID]; owner != "" && email == owner {
				return nil, fmt.Errorf("party %s: owner %s listed as collaborator", p.ID, email)
			}
			if seen[email] {
				continue
			}
			seen[email] = true
			collaborators = append(collaborators, email)
		}
		doc[fieldCollaborators] = collaborators
		doc[fieldCreatedAt] = stamp(p.CreatedAt)
		if err := put(store.CollectionParties, "party", p.ID, doc); err != nil {
			return nil, err
		}
		parties[p.ID] = p
	}

	owner := func(kind, id, partyID string) (*Party, error) {
		if id == "" {
			return nil, fmt.Errorf("%s without id", kind)
		}
		p, ok := parties[partyID]
		if !ok {
			return nil, fmt.Errorf("%s %s: unknown party %q", kind, id, partyID)
		}
		return p, nil
	}

	for _, g := range d.Guests {
		p, err := owner("guest", g.ID, g.PartyID)
		if err != nil {
			return nil, err
		}
		if g.Category == "" {
			g.Category = CategoryAdult
		}
		if err := validateGuestFields("seed guest", g.Name, g.Category, g.Age); err != nil {
			return nil, fmt.Errorf("guest %s: %w", g.ID, err)
		}
		g.Category, g.Paid = Coerce(g.Category, g.Age, g.Paid, p.ChildAgeLimit)
		g.RecordOwnerID = p.OwnerID
		doc := encodeGuest(g)
		doc[fieldCreatedAt] = stamp(g.CreatedAt)
		if err := put(store.CollectionGuests, "guest", g.ID, doc); err != nil {
			return nil, err
		}
	}

	for _, e := range d.Expenses {
		p, err := owner("expense", e.ID, e.PartyID)
		if err != nil {
			return nil, err
		}
		if e.Category == "" {
			e.Category = ExpenseOther
		}
		if err := validateExpenseFields("seed expense", e.Description, e.Amount, e.Category); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		if e.Date.IsZero() {
			return nil, fmt.Errorf("expense %s: date is required", e.ID)
		}
		e.RecordOwnerID = p.OwnerID
		doc := encodeExpense(e)
		doc[fieldCreatedAt] = stamp(e.CreatedAt)
		if err := put(store.CollectionExpenses, "expense", e.ID, doc); err != nil {
			return nil, err
		}
	}

	pending := make(map[[2]string]string)
	for _, inv := range d.Invites {
		p, err := owner("invite", inv.ID, inv.PartyID)
		if err != nil {
			return nil, err
		}
		inv.InvitedEmail = identity.NormalizeEmail(inv.InvitedEmail)
		if !validEmail(inv.InvitedEmail) {
			return nil, fmt.Errorf("invite %s: invalid email %q", inv.ID, inv.InvitedEmail)
		}
		inv.OwnerEmail = ownerEmails[p.ID]
		if inv.OwnerEmail != "" && inv.InvitedEmail == inv.OwnerEmail {
			return nil, fmt.Errorf("invite %s: owner cannot be invited", inv.ID)
		}
		switch inv.Status {
		case "":
			inv.Status = InvitePending
		case InvitePending, InviteAccepted, InviteDeclined:
		default:
			return nil, fmt.Errorf("invite %s: unknown status %q", inv.ID, inv.Status)
		}
		if inv.Status == InvitePending {
			key := [2]string{inv.PartyID, inv.InvitedEmail}
			if other, dup := pending[key]; dup {
				return nil, fmt.Errorf("invite %s: %s already has pending invite %s", inv.ID, inv.InvitedEmail, other)
			}
			pending[key] = inv.ID
		}
		if inv.PartyName == "" {
			inv.PartyName = p.Name
		}
		doc := encodeInvite(inv)
		doc[fieldCreatedAt] = stamp(inv.CreatedAt)
		if err := put(store.CollectionInvites, "invite", inv.ID, doc); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// ownerEmails resolves the owner email of each party from OwnerEmails and the
// invites, rejecting parties whose sources disagree.
func (d Dataset) ownerEmails() (map[string]string, error) {
	out := make(map[string]string, len(d.OwnerEmails))
	for partyID, email := range d.OwnerEmails {
		if email = identity.NormalizeEmail(email); email != "" {
			out[partyID] = email
		}
	}
	for _, inv := range d.Invites {
		email := identity.NormalizeEmail(inv.OwnerEmail)
		if email == "" {
			continue
		}
		known, ok := out[inv.PartyID]
		if !ok {
			out[inv.PartyID] = email
			continue
		}
		if known != email {
			return nil, fmt.Errorf("invite %s: owner email %s, expected %s", inv.ID, email, known)
		}
	}
	return out, nil
}
