package party

import (
	"fmt"
	"math"
	"time"

	"github.com/dimitarkovachev/partyplanner/internal/store"
)

// Stored field names.
const (
	fieldName           = "name"
	fieldDate           = "date"
	fieldPricePerPerson = "pricePerPerson"
	fieldChildAgeLimit  = "childAgeLimit"
	fieldOwnerID        = "ownerId"
	fieldCollaborators  = "collaborators"
	fieldCreatedAt      = "createdAt"
	fieldBudget         = "budget"
	fieldCategory       = "category"
	fieldAge            = "age"
	fieldPaid           = "paid"
	fieldObservations   = "observations"
	fieldPartyID        = "partyId"
	fieldRecordOwnerID  = "recordOwnerId"
	fieldDescription    = "description"
	fieldAmount         = "amount"
	fieldNotes          = "notes"
	fieldPartyName      = "partyName"
	fieldOwnerEmail     = "ownerEmail"
	fieldInvitedEmail   = "invitedEmail"
	fieldStatus         = "status"
)

// fieldReader decodes typed values out of a loosely typed document and
// remembers the first type mismatch. Absent fields decode to zero values.
type fieldReader struct {
	doc store.Document
	err error
}

func (r *fieldReader) fail(key string, want string, got any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: expected %s, got %T", key, want, got)
	}
}

func (r *fieldReader) str(key string) string {
	v, ok := r.doc[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, "string", v)
	}
	return s
}

func (r *fieldReader) number(key string) (float64, bool) {
	v, ok := r.doc[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	r.fail(key, "number", v)
	return 0, false
}

func (r *fieldReader) float(key string) float64 {
	f, _ := r.number(key)
	return f
}

func (r *fieldReader) optFloat(key string) *float64 {
	f, ok := r.number(key)
	if !ok {
		return nil
	}
	return &f
}

func (r *fieldReader) int(key string) int {
	f, _ := r.number(key)
	return int(math.Round(f))
}

func (r *fieldReader) optInt(key string) *int {
	f, ok := r.number(key)
	if !ok {
		return nil
	}
	i := int(math.Round(f))
	return &i
}

func (r *fieldReader) boolean(key string) bool {
	v, ok := r.doc[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, "bool", v)
	}
	return b
}

func (r *fieldReader) strings(key string) []string {
	v, ok := r.doc[key]
	if !ok || v == nil {
		return []string{}
	}
	switch items := v.(type) {
	case []string:
		return append([]string{}, items...)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				r.fail(key, "string array", v)
				return out
			}
			out = append(out, s)
		}
		return out
	}
	r.fail(key, "string array", v)
	return []string{}
}

func (r *fieldReader) time(key string) time.Time {
	v, ok := r.doc[key]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case store.Timestamp:
		return t.AsTime()
	case time.Time:
		return t.UTC()
	}
	r.fail(key, "timestamp", v)
	return time.Time{}
}

func malformed(collection string, doc store.Document, err error) error {
	return fmt.Errorf("malformed document %s/%s: %w", collection, doc.ID(), err)
}

func decodeParty(doc store.Document) (*Party, error) {
	r := &fieldReader{doc: doc}
	p := &Party{
		ID:             doc.ID(),
		Name:           r.str(fieldName),
		Date:           r.time(fieldDate),
		PricePerPerson: r.float(fieldPricePerPerson),
		ChildAgeLimit:  r.int(fieldChildAgeLimit),
		OwnerID:        r.str(fieldOwnerID),
		Collaborators:  r.strings(fieldCollaborators),
		CreatedAt:      r.time(fieldCreatedAt),
		Budget:         r.optFloat(fieldBudget),
	}
	if r.err != nil {
		return nil, malformed(store.CollectionParties, doc, r.err)
	}
	return p, nil
}

func encodeParty(in PartyInput, ownerID string) store.Document {
	doc := store.Document{
		fieldName:           in.Name,
		fieldDate:           store.TimestampOf(calendarDate(in.Date)),
		fieldPricePerPerson: in.PricePerPerson,
		fieldChildAgeLimit:  in.ChildAgeLimit,
		fieldOwnerID:        ownerID,
		fieldCollaborators:  []string{},
		fieldCreatedAt:      store.ServerTimestamp(),
	}
	if in.Budget != nil {
		doc[fieldBudget] = *in.Budget
	}
	return doc
}

func decodeGuest(doc store.Document) (*Guest, error) {
	r := &fieldReader{doc: doc}
	g := &Guest{
		ID:            doc.ID(),
		Name:          r.str(fieldName),
		Category:      GuestCategory(r.str(fieldCategory)),
		Age:           r.optInt(fieldAge),
		Paid:          r.boolean(fieldPaid),
		Observations:  r.str(fieldObservations),
		PartyID:       r.str(fieldPartyID),
		RecordOwnerID: r.str(fieldRecordOwnerID),
		CreatedAt:     r.time(fieldCreatedAt),
	}
	if r.err != nil {
		return nil, malformed(store.CollectionGuests, doc, r.err)
	}
	return g, nil
}

func encodeGuest(g Guest) store.Document {
	doc := store.Document{
		fieldName:          g.Name,
		fieldCategory:      string(g.Category),
		fieldPaid:          g.Paid,
		fieldObservations:  g.Observations,
		fieldPartyID:       g.PartyID,
		fieldRecordOwnerID: g.RecordOwnerID,
		fieldCreatedAt:     store.ServerTimestamp(),
	}
	if g.Age != nil {
		doc[fieldAge] = *g.Age
	}
	return doc
}

func decodeExpense(doc store.Document) (*Expense, error) {
	r := &fieldReader{doc: doc}
	e := &Expense{
		ID:            doc.ID(),
		Description:   r.str(fieldDescription),
		Amount:        r.float(fieldAmount),
		Category:      ExpenseCategory(r.str(fieldCategory)),
		Date:          r.time(fieldDate),
		Notes:         r.str(fieldNotes),
		PartyID:       r.str(fieldPartyID),
		RecordOwnerID: r.str(fieldRecordOwnerID),
		CreatedAt:     r.time(fieldCreatedAt),
	}
	if r.err != nil {
		return nil, malformed(store.CollectionExpenses, doc, r.err)
	}
	return e, nil
}

func encodeExpense(e Expense) store.Document {
	return store.Document{
		fieldDescription:   e.Description,
		fieldAmount:        e.Amount,
		fieldCategory:      string(e.Category),
		fieldDate:          store.TimestampOf(calendarDate(e.Date)),
		fieldNotes:         e.Notes,
		fieldPartyID:       e.PartyID,
		fieldRecordOwnerID: e.RecordOwnerID,
		fieldCreatedAt:     store.ServerTimestamp(),
	}
}

func decodeInvite(doc store.Document) (*Invite, error) {
	r := &fieldReader{doc: doc}
	inv := &Invite{
		ID:           doc.ID(),
		PartyID:      r.str(fieldPartyID),
		PartyName:    r.str(fieldPartyName),
		OwnerEmail:   r.str(fieldOwnerEmail),
		InvitedEmail: r.str(fieldInvitedEmail),
		Status:       InviteStatus(r.str(fieldStatus)),
		CreatedAt:    r.time(fieldCreatedAt),
	}
	if r.err != nil {
		return nil, malformed(store.CollectionInvites, doc, r.err)
	}
	return inv, nil
}

func encodeInvite(inv Invite) store.Document {
	return store.Document{
		fieldPartyID:      inv.PartyID,
		fieldPartyName:    inv.PartyName,
		fieldOwnerEmail:   inv.OwnerEmail,
		fieldInvitedEmail: inv.InvitedEmail,
		fieldStatus:       string(inv.Status),
		fieldCreatedAt:    store.ServerTimestamp(),
	}
}

// calendarDate drops the clock part, keeping the calendar day as seen in t's location.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func decodeAll[T any](docs []store.Document, decode func(store.Document) (*T, error)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
