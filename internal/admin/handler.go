package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

// TokenIssuer mints bearer tokens for the public API.
type TokenIssuer interface {
	Issue(id identity.Identity) (string, error)
}

var knownCollections = map[string]bool{
	store.CollectionParties:  true,
	store.CollectionGuests:   true,
	store.CollectionExpenses: true,
	store.CollectionInvites:  true,
}

type Handler struct {
	store  store.Dumper
	svc    *party.Service
	tokens TokenIssuer
}

func NewHandler(d store.Dumper, svc *party.Service, tokens TokenIssuer) *Handler {
	return &Handler{store: d, svc: svc, tokens: tokens}
}

var _ ServerInterface = (*Handler)(nil)

func (h *Handler) GetAdminSnapshot(c *gin.Context) {
	snap, err := h.store.Dump(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to dump store")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (h *Handler) PutAdminSnapshot(c *gin.Context) {
	var snap store.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, Error{Message: "invalid request body"})
		return
	}
	for collection := range snap {
		if !knownCollections[collection] {
			c.JSON(http.StatusBadRequest, Error{Message: "unknown collection " + collection})
			return
		}
	}

	// Reason: restores go through the same checks as seeding, so coercion
	// and owner anchoring hold for imported records
	ds, err := party.DatasetFromSnapshot(snap)
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	clean, err := ds.Snapshot(time.Now())
	if err != nil {
		log.WithError(err).Info("rejected snapshot import")
		c.JSON(http.StatusBadRequest, Error{Message: err.Error()})
		return
	}

	if err := h.store.Replace(c.Request.Context(), clean); err != nil {
		log.WithError(err).Error("failed to replace store")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	resp := ReplaceResponse{Collections: make(map[string]int, len(knownCollections))}
	for collection := range knownCollections {
		resp.Collections[collection] = len(clean[collection])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetAdminDebugParties(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.DebugParties(c.Request.Context()))
}

func (h *Handler) GetAdminDebugGuests(c *gin.Context, params GetAdminDebugGuestsParams) {
	var partyID string
	if params.PartyId != nil {
		partyID = *params.PartyId
	}
	c.JSON(http.StatusOK, h.svc.DebugGuests(c.Request.Context(), partyID))
}

func (h *Handler) PostAdminTokens(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, Error{Message: "id is required"})
		return
	}

	token, err := h.tokens.Issue(identity.Identity{ID: req.ID, Email: req.Email})
	if err != nil {
		log.WithError(err).Error("failed to issue token")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	log.WithField("user_id", req.ID).Info("development token issued")
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}
