package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewOpenAPIValidator creates a Gin middleware that checks requests against
// the OpenAPI document before they reach a handler. Malformed requests are
// rejected with 400 and an Error body of kind "validation".
func NewOpenAPIValidator(spec *openapi3.T) (gin.HandlerFunc, error) {
	// Reason: clear servers so the router matches paths without a server URL prefix
	spec.Servers = nil

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		return nil, fmt.Errorf("creating openapi router: %w", err)
	}

	return validatorHandler(router), nil
}

func validatorHandler(router routers.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"message": "route not found in API specification",
				"kind":    "not_found",
			})
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				// Reason: bearer tokens are verified by NewBearerAuth, after routing
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("request validation failed")

			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"message": sanitizeValidationError(err),
				"kind":    "validation",
			})
			return
		}

		c.Next()
	}
}

// sanitizeValidationError keeps the first line of the kin-openapi error, which
// names the failing parameter or body field without dumping the schema.
func sanitizeValidationError(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("invalid %s parameter %q", reqErr.Parameter.In, reqErr.Parameter.Name)
		}
		if reqErr.RequestBody != nil {
			var schemaErr *openapi3.SchemaError
			if errors.As(reqErr.Err, &schemaErr) {
				return "invalid request body: " + firstLine(schemaErr.Reason)
			}
			return "invalid request body"
		}
	}
	return firstLine(err.Error())
}

func firstLine(msg string) string {
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	return strings.TrimSpace(msg)
}
