package party

import "github.com/dimitarkovachev/partyplanner/internal/identity"

// Access is the caller's relationship to one party.
type Access struct {
	IsOwner        bool `json:"isOwner"`
	IsCollaborator bool `json:"isCollaborator"`
	HasAccess      bool `json:"hasAccess"`
}

// Authorize is a pure function of the caller and a freshly loaded party.
// A nil party grants nothing. A caller without an email is never a collaborator.
func Authorize(who identity.Identity, p *Party) Access {
	if p == nil || who.ID == "" {
		return Access{}
	}
	a := Access{IsOwner: p.OwnerID == who.ID}
	if who.HasEmail() {
		email := identity.NormalizeEmail(who.Email)
		for _, c := range p.Collaborators {
			if identity.NormalizeEmail(c) == email {
				a.IsCollaborator = true
				break
			}
		}
	}
	a.HasAccess = a.IsOwner || a.IsCollaborator
	return a
}
