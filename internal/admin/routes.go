package admin

import (
	"github.com/gin-gonic/gin"
)

type Error struct {
	Message string `json:"message"`
}

// TokenRequest names the identity a development token is minted for.
type TokenRequest struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// ReplaceResponse reports how many documents each collection holds after a
// snapshot replace.
type ReplaceResponse struct {
	Collections map[string]int `json:"collections"`
}

type GetAdminDebugGuestsParams struct {
	PartyId *string `form:"partyId"`
}

// ServerInterface is the admin API, served on its own port.
type ServerInterface interface {
	GetAdminSnapshot(c *gin.Context)
	PutAdminSnapshot(c *gin.Context)
	GetAdminDebugParties(c *gin.Context)
	GetAdminDebugGuests(c *gin.Context, params GetAdminDebugGuestsParams)
	PostAdminTokens(c *gin.Context)
}

func RegisterHandlers(router gin.IRouter, si ServerInterface) {
	router.GET("/admin/snapshot", si.GetAdminSnapshot)
	router.PUT("/admin/snapshot", si.PutAdminSnapshot)
	router.GET("/admin/debug/parties", si.GetAdminDebugParties)
	router.GET("/admin/debug/guests", func(c *gin.Context) {
		var params GetAdminDebugGuestsParams
		if partyID, ok := c.GetQuery("partyId"); ok {
			params.PartyId = &partyID
		}
		si.GetAdminDebugGuests(c, params)
	})
	router.POST("/admin/tokens", si.PostAdminTokens)
}
