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

func validateExpenseFields(op string, description string, amount float64, category ExpenseCategory) error {
	if description == "" {
		return validationError(op, "description is required")
	}
	if amount < 0 {
		return validationError(op, "amount must not be negative")
	}
	if !category.Valid() {
		return validationError(op, "unknown expense category %q", category)
	}
	return nil
}

// CreateExpense records an expense against the party. Expenses are gated
// exactly like guests.
func (s *Service) CreateExpense(ctx context.Context, who identity.Identity, partyID string, in ExpenseInput) (*Expense, error) {
	const op = "add expense"
	in.Description = strings.TrimSpace(in.Description)
	if in.Category == "" {
		in.Category = ExpenseOther
	}
	if err := validateExpenseFields(op, in.Description, in.Amount, in.Category); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, validationError(op, "date is required")
	}

	p, access, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return nil, err
	}

	e := Expense{
		Description:   in.Description,
		Amount:        in.Amount,
		Category:      in.Category,
		Date:          in.Date,
		Notes:         strings.TrimSpace(in.Notes),
		PartyID:       p.ID,
		RecordOwnerID: p.OwnerID,
	}
	b := s.store.Batch()
	requireAccess(b, who, access, partyID)
	id := b.Create(store.CollectionExpenses, encodeExpense(e))
	if err := b.Commit(ctx); err != nil {
		return nil, s.partyWriteError(op, err)
	}

	created, err := s.loadExpense(ctx, id)
	if err != nil {
		return nil, storeError(op, err)
	}
	log.WithFields(log.Fields{"party_id": partyID, "expense_id": id, "amount": e.Amount}).Info("expense added")
	return created, nil
}

func (s *Service) loadExpense(ctx context.Context, id string) (*Expense, error) {
	doc, err := s.store.Get(ctx, store.CollectionExpenses, id)
	if err != nil {
		return nil, err
	}
	return decodeExpense(doc)
}

func (s *Service) partyExpense(ctx context.Context, op, partyID, expenseID string) (*Expense, error) {
	if expenseID == "" {
		return nil, notFoundError(op, "expense not found")
	}
	e, err := s.loadExpense(ctx, expenseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError(op, "expense not found")
	}
	if err != nil {
		return nil, storeError(op, err)
	}
	if e.PartyID != partyID {
		return nil, notFoundError(op, "expense not found")
	}
	return e, nil
}

func (s *Service) ListExpenses(ctx context.Context, who identity.Identity, partyID string, filter ExpenseFilter) ([]Expense, error) {
	const op = "load expenses"
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, validationError(op, "unknown expense category %q", filter.Category)
	}
	if _, _, err := s.authorized(ctx, op, who, partyID, false); err != nil {
		return nil, err
	}

	expenses, err := s.queryExpenses(ctx, partyID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return filter.Apply(expenses), nil
}

func (s *Service) queryExpenses(ctx context.Context, partyID string) ([]Expense, error) {
	docs, err := s.store.Query(ctx, store.CollectionExpenses, store.Eq(fieldPartyID, partyID))
	if err != nil {
		return nil, err
	}
	return sortedExpenses(docs)
}

func sortedExpenses(docs []store.Document) ([]Expense, error) {
	expenses, err := decodeAll(docs, decodeExpense)
	if err != nil {
		return nil, err
	}
	sortByCreatedDesc(expenses, func(e Expense) time.Time { return e.CreatedAt }, func(e Expense) string { return e.ID })
	return expenses, nil
}

func (s *Service) UpdateExpense(ctx context.Context, who identity.Identity, partyID, expenseID string, patch ExpensePatch) (*Expense, error) {
	const op = "update expense"
	_, access, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return nil, err
	}
	current, err := s.partyExpense(ctx, op, partyID, expenseID)
	if err != nil {
		return nil, err
	}

	next := *current
	fields := store.Document{}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
		fields[fieldDescription] = next.Description
	}
	if patch.Amount != nil {
		next.Amount = *patch.Amount
		fields[fieldAmount] = next.Amount
	}
	if patch.Category != nil {
		next.Category = *patch.Category
		fields[fieldCategory] = string(next.Category)
	}
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return nil, validationError(op, "date is required")
		}
		fields[fieldDate] = store.TimestampOf(calendarDate(*patch.Date))
	}
	if patch.Notes != nil {
		fields[fieldNotes] = strings.TrimSpace(*patch.Notes)
	}
	if err := validateExpenseFields(op, next.Description, next.Amount, next.Category); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return current, nil
	}

	b := s.store.Batch()
	requireAccess(b, who, access, partyID)
	b.Require(store.CollectionExpenses, expenseID, store.Eq(fieldPartyID, partyID))
	b.Update(store.CollectionExpenses, expenseID, fields)
	if err := b.Commit(ctx); err != nil {
		return nil, s.partyWriteError(op, err)
	}

	updated, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return updated, nil
}

func (s *Service) DeleteExpense(ctx context.Context, who identity.Identity, partyID, expenseID string) error {
	const op = "delete expense"
	_, access, err := s.authorized(ctx, op, who, partyID, false)
	if err != nil {
		return err
	}
	if _, err := s.partyExpense(ctx, op, partyID, expenseID); err != nil {
		return err
	}

	b := s.store.Batch()
	requireAccess(b, who, access, partyID)
	b.Delete(store.CollectionExpenses, expenseID)
	if err := b.Commit(ctx); err != nil {
		return s.partyWriteError(op, err)
	}
	log.WithFields(log.Fields{"party_id": partyID, "expense_id": expenseID}).Info("expense deleted")
	return nil
}

func (s *Service) WatchExpenses(ctx context.Context, who identity.Identity, partyID string, onChange func([]Expense), onError func(error)) (cancel func(), err error) {
	return s.watch(ctx, "watch expenses", who, partyID, store.CollectionExpenses, func(docs []store.Document) error {
		expenses, err := sortedExpenses(docs)
		if err != nil {
			return err
		}
		onChange(expenses)
		return nil
	}, onError)
}

// Apply keeps expenses of the category (any when empty) whose description or
// notes contain the search text, case-insensitively.
func (f ExpenseFilter) Apply(expenses []Expense) []Expense {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Description), search) &&
			!strings.Contains(strings.ToLower(e.Notes), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}
