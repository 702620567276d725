package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

const yamlSeed = `
parties:
  - id: lucas-6
    name: Lucas turns 6
    date: 2026-12-05
    pricePerPerson: 50
    childAgeLimit: 5
    ownerId: u1
    collaborators: [Grandma@Example.com]
    budget: 1000
guests:
  - id: g1
    partyId: lucas-6
    name: Ana
  - id: g2
    partyId: lucas-6
    name: Tom
    age: 4
expenses:
  - id: e1
    partyId: lucas-6
    description: Cake
    amount: 120
    category: food
    date: 2026-12-01
invites:
  - id: i1
    partyId: lucas-6
    ownerEmail: owner@example.com
    invitedEmail: uncle@example.com
`

const jsonSeed = `{
  "parties": [{"id": "p1", "name": "Picnic", "date": "2026-06-01", "pricePerPerson": 0, "childAgeLimit": 3, "ownerId": "u9"}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func newStore(t *testing.T) *store.BBoltStore {
	t.Helper()
	s, err := store.NewBBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadFromFile_YAML(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := LoadFromFile(ctx, writeFile(t, "seed.yaml", yamlSeed), s); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	svc := party.NewService(s)
	grandma := identity.Identity{ID: "u2", Email: "grandma@example.com"}
	p, access, err := svc.GetParty(ctx, grandma, "lucas-6")
	if err != nil {
		t.Fatalf("collaborator should see seeded party: %v", err)
	}
	if !access.IsCollaborator || p.OwnerID != "u1" || p.Budget == nil || *p.Budget != 1000 {
		t.Fatalf("unexpected party %+v access %+v", p, access)
	}

	guests, err := svc.ListGuests(ctx, grandma, "lucas-6", party.GuestFilter{})
	if err != nil {
		t.Fatalf("list guests: %v", err)
	}
	if len(guests) != 2 {
		t.Fatalf("expected 2 guests, got %d", len(guests))
	}
	for _, g := range guests {
		if g.RecordOwnerID != "u1" {
			t.Fatalf("guest %s has record owner %q", g.ID, g.RecordOwnerID)
		}
		if g.ID == "g2" && (g.Category != party.CategoryChild || !g.Paid) {
			t.Fatalf("expected Tom coerced to paid child, got %+v", g)
		}
	}

	pending, err := svc.PendingInvites(ctx, identity.Identity{ID: "u5", Email: "uncle@example.com"})
	if err != nil {
		t.Fatalf("pending invites: %v", err)
	}
	if len(pending) != 1 || pending[0].PartyName != "Lucas turns 6" {
		t.Fatalf("unexpected pending invites: %+v", pending)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := LoadFromFile(ctx, writeFile(t, "seed.json", jsonSeed), s); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	parties, err := party.NewService(s).ListParties(ctx, identity.Identity{ID: "u9"})
	if err != nil {
		t.Fatalf("list parties: %v", err)
	}
	if len(parties) != 1 || parties[0].Name != "Picnic" {
		t.Fatalf("unexpected parties: %+v", parties)
	}
}

func TestLoadFromFile_SkipsNonEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := LoadFromFile(ctx, writeFile(t, "seed.json", jsonSeed), s); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	if err := LoadFromFile(ctx, writeFile(t, "seed.yaml", yamlSeed), s); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	snap, err := s.Dump(ctx)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if _, ok := snap[store.CollectionParties]["lucas-6"]; ok {
		t.Fatal("second seed must not overwrite a populated store")
	}
}

func TestLoadFromFile_EmptyPathIsNoop(t *testing.T) {
	if err := LoadFromFile(context.Background(), "", newStore(t)); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestLoadFromFile_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"broken yaml", "seed.yml", "parties: [\n"},
		{"broken json", "seed.json", "{"},
		{"bad date", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"June 1","ownerId":"u1"}]}`},
		{"unknown party", "seed.json", `{"guests":[{"id":"g1","partyId":"nope","name":"Ana"}]}`},
		{"missing owner", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01"}]}`},
		{"bad invite email", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1"}],"invites":[{"id":"i1","partyId":"p1","invitedEmail":"nope"}]}`},
		{"duplicate guest id", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1"}],"guests":[{"id":"g1","partyId":"p1","name":"Ana"},{"id":"g1","partyId":"p1","name":"Bob"}]}`},
		{"duplicate expense id", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1"}],"expenses":[{"id":"e1","partyId":"p1","description":"Cake","amount":1,"date":"2026-06-01"},{"id":"e1","partyId":"p1","description":"Balloons","amount":2,"date":"2026-06-01"}]}`},
		{"duplicate invite id", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1"}],"invites":[{"id":"i1","partyId":"p1","invitedEmail":"a@example.com","status":"declined"},{"id":"i1","partyId":"p1","invitedEmail":"b@example.com","status":"declined"}]}`},
		{"two pending invites", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1"}],"invites":[{"id":"i1","partyId":"p1","invitedEmail":"a@example.com"},{"id":"i2","partyId":"p1","invitedEmail":"A@Example.com","status":"pending"}]}`},
		{"owner as collaborator", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1","ownerEmail":"o@example.com","collaborators":["O@example.com"]}]}`},
		{"owner as collaborator via invite", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1","collaborators":["o@example.com"]}],"invites":[{"id":"i1","partyId":"p1","ownerEmail":"o@example.com","invitedEmail":"a@example.com","status":"accepted"}]}`},
		{"owner invited", "seed.json", `{"parties":[{"id":"p1","name":"P","date":"2026-06-01","ownerId":"u1","ownerEmail":"o@example.com"}],"invites":[{"id":"i1","partyId":"p1","invitedEmail":"o@example.com"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			if err := LoadFromFile(context.Background(), writeFile(t, tt.file, tt.content), s); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
