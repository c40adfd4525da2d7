// Package aggregate joins, filters and derives view data from an in-memory
// snapshot of the record store. Every function here is a pure read: inputs
// are never mutated and results are fresh slices.
package aggregate

import "github.com/boddenberg/client-portal-go/internal/domain"

// Snapshot is a point-in-time copy of every collection, each in store order.
type Snapshot struct {
	Clients       []domain.Client
	Projects      []domain.Project
	Invoices      []domain.Invoice
	Team          []domain.TeamMember
	Notifications []domain.Notification
}

// ============================================================
// Lookups
// ============================================================

// ClientByID returns the client with the given id.
func (s *Snapshot) ClientByID(id string) (domain.Client, bool) {
	for _, c := range s.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Client{}, false
}

// ProjectByID returns the project with the given id.
func (s *Snapshot) ProjectByID(id string) (domain.Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

// InvoiceByID returns the invoice with the given id.
func (s *Snapshot) InvoiceByID(id string) (domain.Invoice, bool) {
	for _, inv := range s.Invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return domain.Invoice{}, false
}

// TeamMemberByID returns the team member with the given id.
func (s *Snapshot) TeamMemberByID(id string) (domain.TeamMember, bool) {
	for _, m := range s.Team {
		if m.ID == id {
			return m, true
		}
	}
	return domain.TeamMember{}, false
}

// ProjectsByClientID returns the client's projects in store order.
// The result is never nil.
func (s *Snapshot) ProjectsByClientID(clientID string) []domain.Project {
	out := make([]domain.Project, 0)
	for _, p := range s.Projects {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out
}

// InvoicesByClientID returns the client's invoices in store order.
func (s *Snapshot) InvoicesByClientID(clientID string) []domain.Invoice {
	out := make([]domain.Invoice, 0)
	for _, inv := range s.Invoices {
		if inv.ClientID == clientID {
			out = append(out, inv)
		}
	}
	return out
}

// InvoicesByProjectID returns the project's invoices in store order.
func (s *Snapshot) InvoicesByProjectID(projectID string) []domain.Invoice {
	out := make([]domain.Invoice, 0)
	for _, inv := range s.Invoices {
		if inv.ProjectID == projectID {
			out = append(out, inv)
		}
	}
	return out
}

// TeamForProject resolves the project's teamIds, skipping ids that no longer
// exist.
func (s *Snapshot) TeamForProject(p domain.Project) []domain.TeamMember {
	out := make([]domain.TeamMember, 0, len(p.TeamIDs))
	for _, id := range p.TeamIDs {
		if m, ok := s.TeamMemberByID(id); ok {
			out = append(out, m)
		}
	}
	return out
}

// UnknownClientName labels records whose client no longer exists.
const UnknownClientName = "Unknown client"

// ClientDisplayName returns the list label for a client id.
func (s *Snapshot) ClientDisplayName(clientID string) string {
	c, ok := s.ClientByID(clientID)
	if !ok {
		return UnknownClientName
	}
	if name := c.DisplayName(); name != "" {
		return name
	}
	return UnknownClientName
}

// ProjectCountsByClient counts projects per clientId.
func (s *Snapshot) ProjectCountsByClient() map[string]int {
	counts := make(map[string]int, len(s.Clients))
	for _, p := range s.Projects {
		counts[p.ClientID]++
	}
	return counts
}

// TeamProjectCounts counts, per team member id, the projects listing that
// member in teamIds. Duplicate ids on one project count once.
func (s *Snapshot) TeamProjectCounts() map[string]int {
	counts := make(map[string]int, len(s.Team))
	for _, p := range s.Projects {
		seen := make(map[string]struct{}, len(p.TeamIDs))
		for _, id := range p.TeamIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			counts[id]++
		}
	}
	return counts
}

// TeamWithProjectCounts returns the team with ProjectCount derived from
// project assignments instead of the stored value.
func (s *Snapshot) TeamWithProjectCounts() []domain.TeamMember {
	counts := s.TeamProjectCounts()
	out := make([]domain.TeamMember, len(s.Team))
	for i, m := range s.Team {
		m.ProjectCount = counts[m.ID]
		out[i] = m
	}
	return out
}
