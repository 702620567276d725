package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var owner = identity.Identity{ID: "u1", Email: "owner@example.com"}

type adminEnv struct {
	router  *gin.Engine
	svc     *party.Service
	tokens  *identity.Tokens
	partyID string
}

func setupAdminRouter(t *testing.T) *adminEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewBBoltStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	svc := party.NewService(s)
	p, err := svc.CreateParty(context.Background(), owner, party.PartyInput{
		Name:           "Lucas turns 6",
		Date:           time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC),
		PricePerPerson: 50,
		ChildAgeLimit:  5,
	})
	if err != nil {
		t.Fatalf("failed to create party: %v", err)
	}
	if _, err := svc.CreateGuest(context.Background(), owner, p.ID, party.GuestInput{Name: "Ana"}); err != nil {
		t.Fatalf("failed to create guest: %v", err)
	}

	tokens, err := identity.NewTokens("test-secret", "partyplanner", time.Hour)
	if err != nil {
		t.Fatalf("failed to create tokens: %v", err)
	}

	r := gin.New()
	RegisterHandlers(r, NewHandler(s, svc, tokens))
	return &adminEnv{router: r, svc: svc, tokens: tokens, partyID: p.ID}
}

func (e *adminEnv) do(method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func TestHandler_GetAdminSnapshot(t *testing.T) {
	e := setupAdminRouter(t)

	w := e.do(http.MethodGet, "/admin/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap map[string]map[string]map[string]any
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(snap[store.CollectionParties]) != 1 || len(snap[store.CollectionGuests]) != 1 {
		t.Fatalf("unexpected snapshot sizes: %d parties, %d guests", len(snap[store.CollectionParties]), len(snap[store.CollectionGuests]))
	}
	if snap[store.CollectionParties][e.partyID]["name"] != "Lucas turns 6" {
		t.Fatalf("unexpected party document: %v", snap[store.CollectionParties][e.partyID])
	}
}

func TestHandler_PutAdminSnapshot_RoundTrip(t *testing.T) {
	e := setupAdminRouter(t)

	w := e.do(http.MethodGet, "/admin/snapshot", nil)
	exported := w.Body.Bytes()

	// wipe everything, then restore the export
	w = e.do(http.MethodPut, "/admin/snapshot", []byte(`{}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := e.svc.DebugParties(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty store, got %d parties", len(got))
	}

	w = e.do(http.MethodPut, "/admin/snapshot", exported)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ReplaceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Collections[store.CollectionParties] != 1 || resp.Collections[store.CollectionGuests] != 1 {
		t.Fatalf("unexpected counts: %v", resp.Collections)
	}

	p, _, err := e.svc.GetParty(context.Background(), owner, e.partyID)
	if err != nil {
		t.Fatalf("restored party not readable: %v", err)
	}
	if p.CreatedAt.IsZero() || p.Date.Format("2006-01-02") != "2026-12-05" {
		t.Fatalf("timestamps lost in round trip: %+v", p)
	}
}

func TestHandler_PutAdminSnapshot_Rejects(t *testing.T) {
	e := setupAdminRouter(t)

	for _, body := range []string{"not json", `{"guestbook":{}}`} {
		w := e.do(http.MethodPut, "/admin/snapshot", []byte(body))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", body, w.Code, w.Body.String())
		}
	}
	if got := e.svc.DebugParties(context.Background()); len(got) != 1 {
		t.Fatalf("rejected replace must not touch the store, got %d parties", len(got))
	}
}

func TestHandler_PutAdminSnapshot_AppliesDomainRules(t *testing.T) {
	e := setupAdminRouter(t)

	body := `{
		"parties": {"p1": {"name": "Picnic", "date": {"__timestamp": "2026-06-01T00:00:00Z"}, "pricePerPerson": 10, "childAgeLimit": 5, "ownerId": "u1"}},
		"guests": {"g1": {"name": "Tom", "age": 3, "category": "adult", "paid": false, "partyId": "p1", "recordOwnerId": "intruder"}}
	}`
	w := e.do(http.MethodPut, "/admin/snapshot", []byte(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	guests := e.svc.DebugGuests(context.Background(), "p1")
	if len(guests) != 1 {
		t.Fatalf("expected 1 guest, got %d", len(guests))
	}
	g := guests[0]
	if g.Category != party.CategoryChild || !g.Paid || g.RecordOwnerID != "u1" {
		t.Fatalf("guest not normalized on import: %+v", g)
	}
	if g.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to be stamped")
	}

	rejects := []string{
		`{"guests": {"g1": {"name": "Orphan", "partyId": "gone"}}}`,
		`{"parties": {"p1": {"name": "Picnic", "date": {"__timestamp": "2026-06-01T00:00:00Z"}, "ownerId": "u1"}},
		  "invites": {
			"i1": {"partyId": "p1", "ownerEmail": "owner@example.com", "invitedEmail": "c@example.com", "status": "pending"},
			"i2": {"partyId": "p1", "ownerEmail": "owner@example.com", "invitedEmail": "c@example.com", "status": "pending"}}}`,
		`{"parties": {"p1": {"name": "Picnic", "date": "June 1", "ownerId": "u1"}}}`,
	}
	for _, body := range rejects {
		w := e.do(http.MethodPut, "/admin/snapshot", []byte(body))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
		}
	}
	if got := e.svc.DebugGuests(context.Background(), "p1"); len(got) != 1 {
		t.Fatalf("rejected import must not touch the store, got %d guests", len(got))
	}
}

func TestHandler_DebugListings(t *testing.T) {
	e := setupAdminRouter(t)

	w := e.do(http.MethodGet, "/admin/debug/parties", nil)
	var parties []party.Party
	if err := json.NewDecoder(w.Body).Decode(&parties); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(parties) != 1 {
		t.Fatalf("expected 1 party, got %d", len(parties))
	}

	w = e.do(http.MethodGet, "/admin/debug/guests?partyId="+e.partyID, nil)
	var guests []party.Guest
	if err := json.NewDecoder(w.Body).Decode(&guests); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(guests) != 1 || guests[0].Name != "Ana" {
		t.Fatalf("unexpected guests: %+v", guests)
	}

	w = e.do(http.MethodGet, "/admin/debug/guests?partyId=other", nil)
	if w.Body.String() != "[]" {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}
}

func TestHandler_PostAdminTokens(t *testing.T) {
	e := setupAdminRouter(t)

	w := e.do(http.MethodPost, "/admin/tokens", []byte(`{"id":"u7","email":"Seven@Example.com"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	who, err := e.tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if who.ID != "u7" || who.Email != "seven@example.com" {
		t.Fatalf("unexpected identity: %+v", who)
	}

	w = e.do(http.MethodPost, "/admin/tokens", []byte(`{"email":"x@example.com"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
