package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dimitarkovachev/partyplanner/internal/party"
	"github.com/dimitarkovachev/partyplanner/internal/store"
)

const dateLayout = "2006-01-02"

type SeedParty struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Date           string   `json:"date" yaml:"date"`
	PricePerPerson float64  `json:"pricePerPerson" yaml:"pricePerPerson"`
	ChildAgeLimit  int      `json:"childAgeLimit" yaml:"childAgeLimit"`
	OwnerID        string   `json:"ownerId" yaml:"ownerId"`
	OwnerEmail     string   `json:"ownerEmail,omitempty" yaml:"ownerEmail,omitempty"`
	Collaborators  []string `json:"collaborators" yaml:"collaborators"`
	Budget         *float64 `json:"budget,omitempty" yaml:"budget,omitempty"`
}

type SeedGuest struct {
	ID           string `json:"id" yaml:"id"`
	PartyID      string `json:"partyId" yaml:"partyId"`
	Name         string `json:"name" yaml:"name"`
	Category     string `json:"category" yaml:"category"`
	Age          *int   `json:"age,omitempty" yaml:"age,omitempty"`
	Paid         bool   `json:"paid" yaml:"paid"`
	Observations string `json:"observations" yaml:"observations"`
}

type SeedExpense struct {
	ID          string  `json:"id" yaml:"id"`
	PartyID     string  `json:"partyId" yaml:"partyId"`
	Description string  `json:"description" yaml:"description"`
	Amount      float64 `json:"amount" yaml:"amount"`
	Category    string  `json:"category" yaml:"category"`
	Date        string  `json:"date" yaml:"date"`
	Notes       string  `json:"notes" yaml:"notes"`
}

type SeedInvite struct {
	ID           string `json:"id" yaml:"id"`
	PartyID      string `json:"partyId" yaml:"partyId"`
	OwnerEmail   string `json:"ownerEmail" yaml:"ownerEmail"`
	InvitedEmail string `json:"invitedEmail" yaml:"invitedEmail"`
	Status       string `json:"status" yaml:"status"`
}

// SeedData is the seed file layout. Dates are calendar days (YYYY-MM-DD).
type SeedData struct {
	Parties  []SeedParty   `json:"parties" yaml:"parties"`
	Guests   []SeedGuest   `json:"guests" yaml:"guests"`
	Expenses []SeedExpense `json:"expenses" yaml:"expenses"`
	Invites  []SeedInvite  `json:"invites" yaml:"invites"`
}

// Parse decodes seed data. Files ending in .yaml or .yml are read as YAML,
// everything else as JSON.
func Parse(path string, data []byte) (*SeedData, error) {
	var sd SeedData
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("parsing yaml seed %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("parsing json seed %s: %w", path, err)
		}
	}
	return &sd, nil
}

// Dataset converts the seed layout into domain records.
func (sd *SeedData) Dataset() (party.Dataset, error) {
	var ds party.Dataset
	for _, p := range sd.Parties {
		date, err := time.Parse(dateLayout, p.Date)
		if err != nil {
			return ds, fmt.Errorf("party %s: invalid date %q", p.ID, p.Date)
		}
		ds.Parties = append(ds.Parties, party.Party{
			ID:             p.ID,
			Name:           p.Name,
			Date:           date,
			PricePerPerson: p.PricePerPerson,
			ChildAgeLimit:  p.ChildAgeLimit,
			OwnerID:        p.OwnerID,
			Collaborators:  p.Collaborators,
			Budget:         p.Budget,
		})
		if p.OwnerEmail != "" {
			if ds.OwnerEmails == nil {
				ds.OwnerEmails = make(map[string]string)
			}
			ds.OwnerEmails[p.ID] = p.OwnerEmail
		}
	}
	for _, g := range sd.Guests {
		ds.Guests = append(ds.Guests, party.Guest{
			ID:           g.ID,
			PartyID:      g.PartyID,
			Name:         g.Name,
			Category:     party.GuestCategory(g.Category),
			Age:          g.Age,
			Paid:         g.Paid,
			Observations: g.Observations,
		})
	}
	for _, e := range sd.Expenses {
		date, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			return ds, fmt.Errorf("expense %s: invalid date %q", e.ID, e.Date)
		}
		ds.Expenses = append(ds.Expenses, party.Expense{
			ID:          e.ID,
			PartyID:     e.PartyID,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    party.ExpenseCategory(e.Category),
			Date:        date,
			Notes:       e.Notes,
		})
	}
	for _, inv := range sd.Invites {
		ds.Invites = append(ds.Invites, party.Invite{
			ID:           inv.ID,
			PartyID:      inv.PartyID,
			OwnerEmail:   inv.OwnerEmail,
			InvitedEmail: inv.InvitedEmail,
			Status:       party.InviteStatus(inv.Status),
		})
	}
	return ds, nil
}

// LoadFromFile reads seed data from a JSON or YAML file and writes it into an
// empty store. A store that already holds documents is left untouched.
// Returns nil if path is empty (seeding disabled).
func LoadFromFile(ctx context.Context, path string, d store.Dumper) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file %s: %w", path, err)
	}
	sd, err := Parse(path, data)
	if err != nil {
		return err
	}
	ds, err := sd.Dataset()
	if err != nil {
		return fmt.Errorf("seed file %s: %w", path, err)
	}
	snap, err := ds.Snapshot(time.Now())
	if err != nil {
		return fmt.Errorf("seed file %s: %w", path, err)
	}

	current, err := d.Dump(ctx)
	if err != nil {
		return fmt.Errorf("inspecting store before seeding: %w", err)
	}
	for collection, docs := range current {
		if len(docs) > 0 {
			log.WithField("collection", collection).Info("store not empty, skipping seed")
			return nil
		}
	}

	log.WithFields(log.Fields{
		"parties":  len(ds.Parties),
		"guests":   len(ds.Guests),
		"expenses": len(ds.Expenses),
		"invites":  len(ds.Invites),
	}).Info("seeding store from file")

	return d.Replace(ctx, snap)
}
