package party

import (
	"context"
	"math"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
)

// GuestStats summarizes attendance and collections. Children never count as
// unpaid and never contribute revenue.
type GuestStats struct {
	Total             int     `json:"total"`
	Adults            int     `json:"adults"`
	Children          int     `json:"children"`
	Paid              int     `json:"paid"`
	Unpaid            int     `json:"unpaid"`
	Revenue           float64 `json:"revenue"`
	PendingRevenue    float64 `json:"pendingRevenue"`
	PaymentPercentage int     `json:"paymentPercentage"`
}

func ComputeGuestStats(guests []Guest, pricePerPerson float64) GuestStats {
	st := GuestStats{Total: len(guests)}
	paidAdults := 0
	for _, g := range guests {
		if g.Paid {
			st.Paid++
		}
		if g.Category == CategoryChild {
			st.Children++
			continue
		}
		st.Adults++
		if g.Paid {
			paidAdults++
		} else {
			st.Unpaid++
		}
	}
	st.Revenue = float64(paidAdults) * pricePerPerson
	st.PendingRevenue = float64(st.Unpaid) * pricePerPerson
	if st.Adults > 0 {
		st.PaymentPercentage = int(math.Round(float64(paidAdults) / float64(st.Adults) * 100))
	}
	return st
}

func (s *Service) GuestStats(ctx context.Context, who identity.Identity, partyID string) (*GuestStats, error) {
	const op = "load guest stats"
	p, _, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return nil, err
	}
	guests, err := s.queryGuests(ctx, partyID)
	if err != nil {
		return nil, storeError(op, err)
	}
	st := ComputeGuestStats(guests, p.PricePerPerson)
	return &st, nil
}

type CategoryTotal struct {
	Category ExpenseCategory `json:"category"`
	Amount   float64         `json:"amount"`
	Count    int             `json:"count"`
}

// ExpenseSummary compares spending with the party budget. A party without a
// budget is treated as a zero budget, so Remaining goes negative.
type ExpenseSummary struct {
	Total      float64         `json:"total"`
	Count      int             `json:"count"`
	Budget     float64         `json:"budget"`
	Remaining  float64         `json:"remaining"`
	ByCategory []CategoryTotal `json:"byCategory"`
}

func ComputeExpenseSummary(expenses []Expense, budget *float64) ExpenseSummary {
	sum := ExpenseSummary{Count: len(expenses), ByCategory: make([]CategoryTotal, len(ExpenseCategories))}
	index := make(map[ExpenseCategory]int, len(ExpenseCategories))
	for i, c := range ExpenseCategories {
		sum.ByCategory[i].Category = c
		index[c] = i
	}
	for _, e := range expenses {
		sum.Total += e.Amount
		if i, ok := index[e.Category]; ok {
			sum.ByCategory[i].Amount += e.Amount
			sum.ByCategory[i].Count++
		}
	}
	if budget != nil {
		sum.Budget = *budget
	}
	sum.Remaining = sum.Budget - sum.Total
	return sum
}

func (s *Service) ExpenseSummary(ctx context.Context, who identity.Identity, partyID string) (*ExpenseSummary, error) {
	const op = "load expense summary"
	p, _, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return nil, err
	}
	expenses, err := s.queryExpenses(ctx, partyID)
	if err != nil {
		return nil, storeError(op, err)
	}
	sum := ComputeExpenseSummary(expenses, p.Budget)
	return &sum, nil
}
