package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(token string) (identity.Identity, error)
}

// NewBearerAuth rejects requests without a valid bearer token and attaches
// the verified identity to the request context.
func NewBearerAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortUnauthenticated(c, "missing bearer token")
			return
		}

		who, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			log.WithError(err).WithField("path", c.Request.URL.Path).Warn("rejected bearer token")
			abortUnauthenticated(c, "invalid or expired token")
			return
		}

		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), who))
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="partyplanner"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"message": msg,
		"kind":    "unauthenticated",
	})
}
