package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/party"
)

// Handler implements ServerInterface on top of the party service.
type Handler struct {
	svc        *party.Service
	identities identity.Provider
}

func NewHandler(svc *party.Service, identities identity.Provider) *Handler {
	return &Handler{svc: svc, identities: identities}
}

var _ ServerInterface = (*Handler)(nil)

func (h *Handler) caller(c *gin.Context) (identity.Identity, bool) {
	who, err := h.identities.Current(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Error{Message: "authentication required", Kind: "unauthenticated"})
		return identity.Identity{}, false
	}
	return who, true
}

func statusOf(kind party.Kind) int {
	switch kind {
	case party.KindValidation:
		return http.StatusBadRequest
	case party.KindPermission:
		return http.StatusForbidden
	case party.KindConflict:
		return http.StatusConflict
	case party.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fail writes err as an Error body. Store failures are logged with their
// cause and reported without it.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := party.KindOf(err)
	status := statusOf(kind)
	logger := log.WithError(err).WithFields(log.Fields{"path": c.FullPath(), "status": status})
	if status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Info("request rejected")
	}
	c.JSON(status, Error{Message: party.Message(err), Kind: string(kind)})
}

func (h *Handler) bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		log.WithError(err).WithField("path", c.FullPath()).Warn("invalid request body")
		c.JSON(http.StatusBadRequest, Error{Message: "invalid request body", Kind: string(party.KindValidation)})
		return false
	}
	return true
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) ListParties(c *gin.Context) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	parties, err := h.svc.ListParties(c.Request.Context(), who)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAll(parties, toParty))
}

func (h *Handler) CreateParty(c *gin.Context) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body PartyCreate
	if !h.bind(c, &body) {
		return
	}

	p, err := h.svc.CreateParty(c.Request.Context(), who, party.PartyInput{
		Name:           body.Name,
		Date:           body.Date.Time,
		PricePerPerson: body.PricePerPerson,
		ChildAgeLimit:  body.ChildAgeLimit,
		Budget:         body.Budget,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toParty(p))
}

func (h *Handler) GetParty(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	p, access, err := h.svc.GetParty(c.Request.Context(), who, partyId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PartyDetail{Party: toParty(p), Access: toAccess(access)})
}

func (h *Handler) UpdateParty(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body PartyUpdate
	if !h.bind(c, &body) {
		return
	}

	patch := party.PartyPatch{
		Name:           body.Name,
		PricePerPerson: body.PricePerPerson,
		ChildAgeLimit:  body.ChildAgeLimit,
	}
	if body.Date != nil {
		d := body.Date.Time
		patch.Date = &d
	}
	p, err := h.svc.UpdateParty(c.Request.Context(), who, partyId, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toParty(p))
}

func (h *Handler) DeleteParty(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteParty(c.Request.Context(), who, partyId); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) PutPartyBudget(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body BudgetUpdate
	if !h.bind(c, &body) {
		return
	}
	p, err := h.svc.UpdateBudget(c.Request.Context(), who, partyId, body.Budget)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toParty(p))
}

func (h *Handler) GetPartyAccess(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toAccess(h.svc.CheckAccess(c.Request.Context(), who, partyId)))
}

func (h *Handler) ListGuests(c *gin.Context, partyId string, params ListGuestsParams) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var filter party.GuestFilter
	if params.Status != nil {
		filter.Status = party.GuestStatusFilter(*params.Status)
	}
	if params.Search != nil {
		filter.Search = *params.Search
	}
	guests, err := h.svc.ListGuests(c.Request.Context(), who, partyId, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAll(guests, toGuest))
}

func (h *Handler) CreateGuest(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body GuestCreate
	if !h.bind(c, &body) {
		return
	}

	in := party.GuestInput{Name: body.Name, Age: body.Age}
	if body.Category != nil {
		in.Category = party.GuestCategory(*body.Category)
	}
	if body.Paid != nil {
		in.Paid = *body.Paid
	}
	if body.Observations != nil {
		in.Observations = *body.Observations
	}
	g, err := h.svc.CreateGuest(c.Request.Context(), who, partyId, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toGuest(g))
}

func (h *Handler) GetGuestStats(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	st, err := h.svc.GuestStats(c.Request.Context(), who, partyId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateGuest(c *gin.Context, partyId string, guestId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body GuestUpdate
	if !h.bind(c, &body) {
		return
	}

	patch := party.GuestPatch{
		Name:         body.Name,
		Paid:         body.Paid,
		Observations: body.Observations,
	}
	if body.Category != nil {
		cat := party.GuestCategory(*body.Category)
		patch.Category = &cat
	}
	if body.Age.Set {
		patch.Age = body.Age.Value
		patch.ClearAge = body.Age.Value == nil
	}
	g, err := h.svc.UpdateGuest(c.Request.Context(), who, partyId, guestId, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toGuest(g))
}

func (h *Handler) DeleteGuest(c *gin.Context, partyId string, guestId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteGuest(c.Request.Context(), who, partyId, guestId); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleGuestPayment(c *gin.Context, partyId string, guestId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	g, err := h.svc.TogglePayment(c.Request.Context(), who, partyId, guestId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toGuest(g))
}

func (h *Handler) ListExpenses(c *gin.Context, partyId string, params ListExpensesParams) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var filter party.ExpenseFilter
	if params.Category != nil {
		filter.Category = party.ExpenseCategory(*params.Category)
	}
	if params.Search != nil {
		filter.Search = *params.Search
	}
	expenses, err := h.svc.ListExpenses(c.Request.Context(), who, partyId, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAll(expenses, toExpense))
}

func (h *Handler) CreateExpense(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body ExpenseCreate
	if !h.bind(c, &body) {
		return
	}

	in := party.ExpenseInput{
		Description: body.Description,
		Amount:      body.Amount,
		Date:        body.Date.Time,
	}
	if body.Category != nil {
		in.Category = party.ExpenseCategory(*body.Category)
	}
	if body.Notes != nil {
		in.Notes = *body.Notes
	}
	e, err := h.svc.CreateExpense(c.Request.Context(), who, partyId, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toExpense(e))
}

func (h *Handler) GetExpenseSummary(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	sum, err := h.svc.ExpenseSummary(c.Request.Context(), who, partyId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) UpdateExpense(c *gin.Context, partyId string, expenseId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body ExpenseUpdate
	if !h.bind(c, &body) {
		return
	}

	patch := party.ExpensePatch{
		Description: body.Description,
		Amount:      body.Amount,
		Notes:       body.Notes,
	}
	if body.Category != nil {
		cat := party.ExpenseCategory(*body.Category)
		patch.Category = &cat
	}
	if body.Date != nil {
		d := body.Date.Time
		patch.Date = &d
	}
	e, err := h.svc.UpdateExpense(c.Request.Context(), who, partyId, expenseId, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpense(e))
}

func (h *Handler) DeleteExpense(c *gin.Context, partyId string, expenseId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteExpense(c.Request.Context(), who, partyId, expenseId); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListPartyInvites(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	invites, err := h.svc.ListPartyInvites(c.Request.Context(), who, partyId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAll(invites, toInvite))
}

func (h *Handler) CreateInvite(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	var body InviteCreate
	if !h.bind(c, &body) {
		return
	}
	inv, err := h.svc.InviteCollaborator(c.Request.Context(), who, partyId, string(body.Email))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvite(inv))
}

func (h *Handler) RemoveCollaborator(c *gin.Context, partyId string, email string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveCollaborator(c.Request.Context(), who, partyId, email); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListPendingInvites(c *gin.Context) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	invites, err := h.svc.PendingInvites(c.Request.Context(), who)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAll(invites, toInvite))
}

func (h *Handler) AcceptInvite(c *gin.Context, inviteId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	inv, err := h.svc.AcceptInvite(c.Request.Context(), who, inviteId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvite(inv))
}

func (h *Handler) DeclineInvite(c *gin.Context, inviteId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	inv, err := h.svc.DeclineInvite(c.Request.Context(), who, inviteId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvite(inv))
}
