package api

import (
	"encoding/json"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/dimitarkovachev/partyplanner/internal/party"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type Error struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type Party struct {
	Id             string             `json:"id"`
	Name           string             `json:"name"`
	Date           openapi_types.Date `json:"date"`
	PricePerPerson float64            `json:"pricePerPerson"`
	ChildAgeLimit  int                `json:"childAgeLimit"`
	OwnerId        string             `json:"ownerId"`
	Collaborators  []string           `json:"collaborators"`
	CreatedAt      time.Time          `json:"createdAt"`
	Budget         *float64           `json:"budget,omitempty"`
}

type Access struct {
	IsOwner        bool `json:"isOwner"`
	IsCollaborator bool `json:"isCollaborator"`
	HasAccess      bool `json:"hasAccess"`
}

type PartyDetail struct {
	Party  Party  `json:"party"`
	Access Access `json:"access"`
}

type PartyCreate struct {
	Name           string             `json:"name"`
	Date           openapi_types.Date `json:"date"`
	PricePerPerson float64            `json:"pricePerPerson"`
	ChildAgeLimit  int                `json:"childAgeLimit"`
	Budget         *float64           `json:"budget,omitempty"`
}

type PartyUpdate struct {
	Name           *string             `json:"name,omitempty"`
	Date           *openapi_types.Date `json:"date,omitempty"`
	PricePerPerson *float64            `json:"pricePerPerson,omitempty"`
	ChildAgeLimit  *int                `json:"childAgeLimit,omitempty"`
}

// BudgetUpdate clears the budget when Budget is null.
type BudgetUpdate struct {
	Budget *float64 `json:"budget"`
}

type Guest struct {
	Id            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Age           *int      `json:"age,omitempty"`
	Paid          bool      `json:"paid"`
	Observations  string    `json:"observations,omitempty"`
	PartyId       string    `json:"partyId"`
	RecordOwnerId string    `json:"recordOwnerId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type GuestCreate struct {
	Name         string  `json:"name"`
	Category     *string `json:"category,omitempty"`
	Age          *int    `json:"age,omitempty"`
	Paid         *bool   `json:"paid,omitempty"`
	Observations *string `json:"observations,omitempty"`
}

// NullableInt tells an absent field apart from an explicit null.
type NullableInt struct {
	Set   bool
	Value *int
}

func (n *NullableInt) UnmarshalJSON(data []byte) error {
	n.Set = true
	return json.Unmarshal(data, &n.Value)
}

type GuestUpdate struct {
	Name         *string     `json:"name,omitempty"`
	Category     *string     `json:"category,omitempty"`
	Age          NullableInt `json:"age"`
	Paid         *bool       `json:"paid,omitempty"`
	Observations *string     `json:"observations,omitempty"`
}

type Expense struct {
	Id            string             `json:"id"`
	Description   string             `json:"description"`
	Amount        float64            `json:"amount"`
	Category      string             `json:"category"`
	Date          openapi_types.Date `json:"date"`
	Notes         string             `json:"notes,omitempty"`
	PartyId       string             `json:"partyId"`
	RecordOwnerId string             `json:"recordOwnerId"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type ExpenseCreate struct {
	Description string             `json:"description"`
	Amount      float64            `json:"amount"`
	Category    *string            `json:"category,omitempty"`
	Date        openapi_types.Date `json:"date"`
	Notes       *string            `json:"notes,omitempty"`
}

type ExpenseUpdate struct {
	Description *string             `json:"description,omitempty"`
	Amount      *float64            `json:"amount,omitempty"`
	Category    *string             `json:"category,omitempty"`
	Date        *openapi_types.Date `json:"date,omitempty"`
	Notes       *string             `json:"notes,omitempty"`
}

type Invite struct {
	Id           string              `json:"id"`
	PartyId      string              `json:"partyId"`
	PartyName    string              `json:"partyName"`
	OwnerEmail   string              `json:"ownerEmail"`
	InvitedEmail openapi_types.Email `json:"invitedEmail"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
}

type InviteCreate struct {
	Email openapi_types.Email `json:"email"`
}

type ListGuestsParams struct {
	Status *string `form:"status"`
	Search *string `form:"search"`
}

type ListExpensesParams struct {
	Category *string `form:"category"`
	Search   *string `form:"search"`
}

func toParty(p *party.Party) Party {
	collaborators := p.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	return Party{
		Id:             p.ID,
		Name:           p.Name,
		Date:           openapi_types.Date{Time: p.Date},
		PricePerPerson: p.PricePerPerson,
		ChildAgeLimit:  p.ChildAgeLimit,
		OwnerId:        p.OwnerID,
		Collaborators:  collaborators,
		CreatedAt:      p.CreatedAt,
		Budget:         p.Budget,
	}
}

func toAccess(a party.Access) Access {
	return Access{IsOwner: a.IsOwner, IsCollaborator: a.IsCollaborator, HasAccess: a.HasAccess}
}

func toGuest(g *party.Guest) Guest {
	return Guest{
		Id:            g.ID,
		Name:          g.Name,
		Category:      string(g.Category),
		Age:           g.Age,
		Paid:          g.Paid,
		Observations:  g.Observations,
		PartyId:       g.PartyID,
		RecordOwnerId: g.RecordOwnerID,
		CreatedAt:     g.CreatedAt,
	}
}

func toExpense(e *party.Expense) Expense {
	return Expense{
		Id:            e.ID,
		Description:   e.Description,
		Amount:        e.Amount,
		Category:      string(e.Category),
		Date:          openapi_types.Date{Time: e.Date},
		Notes:         e.Notes,
		PartyId:       e.PartyID,
		RecordOwnerId: e.RecordOwnerID,
		CreatedAt:     e.CreatedAt,
	}
}

func toInvite(inv *party.Invite) Invite {
	return Invite{
		Id:           inv.ID,
		PartyId:      inv.PartyID,
		PartyName:    inv.PartyName,
		OwnerEmail:   inv.OwnerEmail,
		InvitedEmail: openapi_types.Email(inv.InvitedEmail),
		Status:       string(inv.Status),
		CreatedAt:    inv.CreatedAt,
	}
}

func mapAll[T, U any](items []T, conv func(*T) U) []U {
	out := make([]U, len(items))
	for i := range items {
		out[i] = conv(&items[i])
	}
	return out
}
