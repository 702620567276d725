package party

import "time"

type GuestCategory string

const (
	CategoryAdult GuestCategory = "adult"
	CategoryChild GuestCategory = "child"
)

func (c GuestCategory) Valid() bool {
	return c == CategoryAdult || c == CategoryChild
}

type ExpenseCategory string

const (
	ExpenseFood          ExpenseCategory = "food"
	ExpenseDecoration    ExpenseCategory = "decoration"
	ExpenseEntertainment ExpenseCategory = "entertainment"
	ExpenseVenue         ExpenseCategory = "venue"
	ExpenseOther         ExpenseCategory = "other"
)

// ExpenseCategories lists every category in display order.
var ExpenseCategories = []ExpenseCategory{ExpenseFood, ExpenseDecoration, ExpenseEntertainment, ExpenseVenue, ExpenseOther}

func (c ExpenseCategory) Valid() bool {
	for _, v := range ExpenseCategories {
		if c == v {
			return true
		}
	}
	return false
}

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Party is the root aggregate. OwnerID never changes after creation and
// Collaborators only changes through the invite workflow.
type Party struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	PricePerPerson float64   `json:"pricePerPerson"`
	ChildAgeLimit  int       `json:"childAgeLimit"`
	OwnerID        string    `json:"ownerId"`
	Collaborators  []string  `json:"collaborators"`
	CreatedAt      time.Time `json:"createdAt"`
	Budget         *float64  `json:"budget,omitempty"`
}

// Guest always carries the party owner's id in RecordOwnerID, whoever wrote it.
type Guest struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Category      GuestCategory `json:"category"`
	Age           *int          `json:"age,omitempty"`
	Paid          bool          `json:"paid"`
	Observations  string        `json:"observations,omitempty"`
	PartyID       string        `json:"partyId"`
	RecordOwnerID string        `json:"recordOwnerId"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type Expense struct {
	ID            string          `json:"id"`
	Description   string          `json:"description"`
	Amount        float64         `json:"amount"`
	Category      ExpenseCategory `json:"category"`
	Date          time.Time       `json:"date"`
	Notes         string          `json:"notes,omitempty"`
	PartyID       string          `json:"partyId"`
	RecordOwnerID string          `json:"recordOwnerId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Invite struct {
	ID           string       `json:"id"`
	PartyID      string       `json:"partyId"`
	PartyName    string       `json:"partyName"`
	OwnerEmail   string       `json:"ownerEmail"`
	InvitedEmail string       `json:"invitedEmail"`
	Status       InviteStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type PartyInput struct {
	Name           string
	Date           time.Time
	PricePerPerson float64
	ChildAgeLimit  int
	Budget         *float64
}

// PartyPatch holds the owner-editable fields; nil means unchanged.
type PartyPatch struct {
	Name           *string
	Date           *time.Time
	PricePerPerson *float64
	ChildAgeLimit  *int
}

type GuestInput struct {
	Name         string
	Category     GuestCategory
	Age          *int
	Paid         bool
	Observations string
}

// GuestPatch is a partial guest update. ClearAge removes a stored age.
type GuestPatch struct {
	Name         *string
	Category     *GuestCategory
	Age          *int
	ClearAge     bool
	Paid         *bool
	Observations *string
}

type ExpenseInput struct {
	Description string
	Amount      float64
	Category    ExpenseCategory
	Date        time.Time
	Notes       string
}

type ExpensePatch struct {
	Description *string
	Amount      *float64
	Category    *ExpenseCategory
	Date        *time.Time
	Notes       *string
}

// GuestStatusFilter narrows guest listings the way the guest list screen does.
type GuestStatusFilter string

const (
	GuestsAll      GuestStatusFilter = "all"
	GuestsPaid     GuestStatusFilter = "paid"
	GuestsUnpaid   GuestStatusFilter = "unpaid"
	GuestsAdults   GuestStatusFilter = "adults"
	GuestsChildren GuestStatusFilter = "children"
)

type GuestFilter struct {
	Status GuestStatusFilter
	Search string
}

type ExpenseFilter struct {
	Category ExpenseCategory
	Search   string
}
