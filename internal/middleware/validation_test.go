package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"

	"github.com/dimitarkovachev/partyplanner/internal/api"
)

func loadTestSpec(t *testing.T) *openapi3.T {
	t.Helper()
	spec, err := api.GetSwagger()
	if err != nil {
		t.Fatalf("failed to load openapi spec: %v", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("invalid openapi spec: %v", err)
	}
	return spec
}

func setupValidationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	spec := loadTestSpec(t)

	mw, err := NewOpenAPIValidator(spec)
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r := gin.New()
	r.Use(mw)
	r.POST("/parties", ok)
	r.POST("/parties/:partyId/guests", ok)
	r.GET("/parties/:partyId/guests", ok)
	r.PATCH("/parties/:partyId/guests/:guestId", ok)
	r.POST("/parties/:partyId/invites", ok)
	r.GET("/health", ok)
	return r
}

func send(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidation_ValidCreateParty(t *testing.T) {
	r := setupValidationRouter(t)

	w := send(r, http.MethodPost, "/parties", map[string]any{
		"name":           "Lucas turns 6",
		"date":           "2026-12-05",
		"pricePerPerson": 50,
		"childAgeLimit":  5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValidation_RejectsBadRequests(t *testing.T) {
	r := setupValidationRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"missing required field", http.MethodPost, "/parties", map[string]any{"name": "P", "date": "2026-12-05"}},
		{"unknown field", http.MethodPost, "/parties", map[string]any{"name": "P", "date": "2026-12-05", "pricePerPerson": 1, "childAgeLimit": 5, "ownerId": "u9"}},
		{"negative price", http.MethodPost, "/parties", map[string]any{"name": "P", "date": "2026-12-05", "pricePerPerson": -5, "childAgeLimit": 5}},
		{"bad guest category", http.MethodPost, "/parties/p1/guests", map[string]any{"name": "Ana", "category": "vip"}},
		{"empty guest patch", http.MethodPatch, "/parties/p1/guests/g1", map[string]any{}},
		{"bad status filter", http.MethodGet, "/parties/p1/guests?status=vip", nil},
		{"missing invite email", http.MethodPost, "/parties/p1/invites", map[string]any{}},
		{"bad party id", http.MethodGet, "/parties/p%20one/guests", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(r, tt.method, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp["kind"] != "validation" || resp["message"] == "" {
				t.Fatalf("unexpected error body: %v", resp)
			}
		})
	}
}

func TestValidation_NullableAgeAccepted(t *testing.T) {
	r := setupValidationRouter(t)

	w := send(r, http.MethodPatch, "/parties/p1/guests/g1", map[string]any{"age": nil})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValidation_UnknownRoute(t *testing.T) {
	r := setupValidationRouter(t)

	w := send(r, http.MethodGet, "/venues", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestValidation_HealthEndpointPassesThrough(t *testing.T) {
	r := setupValidationRouter(t)

	w := send(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
