package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface has one method per operation in openapi.yaml.
type ServerInterface interface {
	GetHealth(c *gin.Context)

	ListParties(c *gin.Context)
	CreateParty(c *gin.Context)
	GetParty(c *gin.Context, partyId string)
	UpdateParty(c *gin.Context, partyId string)
	DeleteParty(c *gin.Context, partyId string)
	PutPartyBudget(c *gin.Context, partyId string)
	GetPartyAccess(c *gin.Context, partyId string)

	ListGuests(c *gin.Context, partyId string, params ListGuestsParams)
	CreateGuest(c *gin.Context, partyId string)
	GetGuestStats(c *gin.Context, partyId string)
	StreamGuests(c *gin.Context, partyId string)
	UpdateGuest(c *gin.Context, partyId string, guestId string)
	DeleteGuest(c *gin.Context, partyId string, guestId string)
	ToggleGuestPayment(c *gin.Context, partyId string, guestId string)

	ListExpenses(c *gin.Context, partyId string, params ListExpensesParams)
	CreateExpense(c *gin.Context, partyId string)
	GetExpenseSummary(c *gin.Context, partyId string)
	StreamExpenses(c *gin.Context, partyId string)
	UpdateExpense(c *gin.Context, partyId string, expenseId string)
	DeleteExpense(c *gin.Context, partyId string, expenseId string)

	ListPartyInvites(c *gin.Context, partyId string)
	CreateInvite(c *gin.Context, partyId string)
	RemoveCollaborator(c *gin.Context, partyId string, email string)
	ListPendingInvites(c *gin.Context)
	StreamPendingInvites(c *gin.Context)
	AcceptInvite(c *gin.Context, inviteId string)
	DeclineInvite(c *gin.Context, inviteId string)
}

type wrapper struct {
	handler ServerInterface
}

func (w *wrapper) pathParam(c *gin.Context, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, c.Param(name), &value)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, Error{Message: "invalid format for parameter " + name, Kind: "validation"})
		return "", false
	}
	return value, true
}

func (w *wrapper) queryParam(c *gin.Context, name string, dest **string) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, c.Request.URL.Query(), dest); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, Error{Message: "invalid format for parameter " + name, Kind: "validation"})
		return false
	}
	return true
}

// party wraps handlers addressed by a party id.
func (w *wrapper) party(fn func(*gin.Context, string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if partyId, ok := w.pathParam(c, "partyId"); ok {
			fn(c, partyId)
		}
	}
}

// child wraps handlers addressed by a party id and one nested id.
func (w *wrapper) child(name string, fn func(*gin.Context, string, string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		partyId, ok := w.pathParam(c, "partyId")
		if !ok {
			return
		}
		childId, ok := w.pathParam(c, name)
		if !ok {
			return
		}
		fn(c, partyId, childId)
	}
}

func (w *wrapper) invite(fn func(*gin.Context, string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if inviteId, ok := w.pathParam(c, "inviteId"); ok {
			fn(c, inviteId)
		}
	}
}

func (w *wrapper) listGuests(c *gin.Context) {
	partyId, ok := w.pathParam(c, "partyId")
	if !ok {
		return
	}
	var params ListGuestsParams
	if !w.queryParam(c, "status", &params.Status) || !w.queryParam(c, "search", &params.Search) {
		return
	}
	w.handler.ListGuests(c, partyId, params)
}

func (w *wrapper) listExpenses(c *gin.Context) {
	partyId, ok := w.pathParam(c, "partyId")
	if !ok {
		return
	}
	var params ListExpensesParams
	if !w.queryParam(c, "category", &params.Category) || !w.queryParam(c, "search", &params.Search) {
		return
	}
	w.handler.ListExpenses(c, partyId, params)
}

// RegisterHandlers mounts every operation on router. /health is public; all
// other routes run behind the protected middlewares, in order.
func RegisterHandlers(router gin.IRouter, si ServerInterface, protected ...gin.HandlerFunc) {
	w := &wrapper{handler: si}

	router.GET("/health", si.GetHealth)

	g := router.Group("", protected...)

	g.GET("/parties", si.ListParties)
	g.POST("/parties", si.CreateParty)
	g.GET("/parties/:partyId", w.party(si.GetParty))
	g.PATCH("/parties/:partyId", w.party(si.UpdateParty))
	g.DELETE("/parties/:partyId", w.party(si.DeleteParty))
	g.PUT("/parties/:partyId/budget", w.party(si.PutPartyBudget))
	g.GET("/parties/:partyId/access", w.party(si.GetPartyAccess))

	g.GET("/parties/:partyId/guests", w.listGuests)
	g.POST("/parties/:partyId/guests", w.party(si.CreateGuest))
	g.GET("/parties/:partyId/guests/stats", w.party(si.GetGuestStats))
	g.GET("/parties/:partyId/guests/stream", w.party(si.StreamGuests))
	g.PATCH("/parties/:partyId/guests/:guestId", w.child("guestId", si.UpdateGuest))
	g.DELETE("/parties/:partyId/guests/:guestId", w.child("guestId", si.DeleteGuest))
	g.POST("/parties/:partyId/guests/:guestId/payment", w.child("guestId", si.ToggleGuestPayment))

	g.GET("/parties/:partyId/expenses", w.listExpenses)
	g.POST("/parties/:partyId/expenses", w.party(si.CreateExpense))
	g.GET("/parties/:partyId/expenses/summary", w.party(si.GetExpenseSummary))
	g.GET("/parties/:partyId/expenses/stream", w.party(si.StreamExpenses))
	g.PATCH("/parties/:partyId/expenses/:expenseId", w.child("expenseId", si.UpdateExpense))
	g.DELETE("/parties/:partyId/expenses/:expenseId", w.child("expenseId", si.DeleteExpense))

	g.GET("/parties/:partyId/invites", w.party(si.ListPartyInvites))
	g.POST("/parties/:partyId/invites", w.party(si.CreateInvite))
	g.DELETE("/parties/:partyId/collaborators/:email", w.child("email", si.RemoveCollaborator))

	g.GET("/invites/pending", si.ListPendingInvites)
	g.GET("/invites/pending/stream", si.StreamPendingInvites)
	g.POST("/invites/:inviteId/accept", w.invite(si.AcceptInvite))
	g.POST("/invites/:inviteId/decline", w.invite(si.DeclineInvite))
}
