package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimitarkovachev/partyplanner/internal/admin"
	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

func newAdminServer(t *testing.T) (*httptest.Server, *party.Service, *identity.Tokens) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.NewBBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tokens, err := identity.NewTokens("test-secret", "partyplanner", time.Hour)
	require.NoError(t, err)

	svc := party.NewService(s)
	r := gin.New()
	admin.RegisterHandlers(r, admin.NewHandler(s, svc, tokens))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc, tokens
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, svc, _ := newAdminServer(t)
	owner := identity.Identity{ID: "u1", Email: "owner@example.com"}
	_, err := svc.CreateParty(ctx, owner, party.PartyInput{
		Name:           "Picnic",
		Date:           time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		PricePerPerson: 10,
		ChildAgeLimit:  3,
	})
	require.NoError(t, err)

	c := newAdminClient(srv.URL)
	var out bytes.Buffer
	require.NoError(t, runExport(ctx, c, &out))
	assert.Contains(t, out.String(), `"Picnic"`)

	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o600))

	// empty the store, then restore it from the file
	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	require.NoError(t, runImport(ctx, c, empty, &bytes.Buffer{}))
	assert.Empty(t, svc.DebugParties(ctx))

	out.Reset()
	require.NoError(t, runImport(ctx, c, path, &out))
	parties := svc.DebugParties(ctx)
	require.Len(t, parties, 1)
	assert.Equal(t, "Picnic", parties[0].Name)
}

func TestImportRejectsInvalidFile(t *testing.T) {
	srv, _, _ := newAdminServer(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	err := runImport(context.Background(), newAdminClient(srv.URL), path, &bytes.Buffer{})
	require.Error(t, err)
}

func TestImportSurfacesServerError(t *testing.T) {
	srv, _, _ := newAdminServer(t)
	path := filepath.Join(t.TempDir(), "unknown.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"guestbook":{}}`), 0o600))

	err := runImport(context.Background(), newAdminClient(srv.URL), path, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestRunToken(t *testing.T) {
	srv, _, tokens := newAdminServer(t)

	var out bytes.Buffer
	require.NoError(t, runToken(context.Background(), newAdminClient(srv.URL), "u7", "Seven@Example.com", &out))

	who, err := tokens.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{ID: "u7", Email: "seven@example.com"}, who)
}
