package aggregate

import (
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

// ClientListItem is a client row with its derived totals.
type ClientListItem struct {
	domain.Client
	ProjectCount int     `json:"projectCount"`
	TotalSpent   float64 `json:"totalSpent"`
}

// WithClientTotals joins clients with project counts and amounts paid.
func (s *Snapshot) WithClientTotals(clients []domain.Client) []ClientListItem {
	counts := s.ProjectCountsByClient()
	out := make([]ClientListItem, len(clients))
	for i, c := range clients {
		out[i] = ClientListItem{Client: c, ProjectCount: counts[c.ID], TotalSpent: s.ClientTotalSpent(c.ID)}
	}
	return out
}

// InvoiceListItem is an invoice row joined with names and its overdue flag.
type InvoiceListItem struct {
	domain.Invoice
	ClientName  string `json:"clientName"`
	ProjectName string `json:"projectName"`
	Overdue     bool   `json:"overdue"`
}

// WithInvoiceNames joins invoices with client and project names.
func (s *Snapshot) WithInvoiceNames(invoices []domain.Invoice, today time.Time) []InvoiceListItem {
	out := make([]InvoiceListItem, len(invoices))
	for i, inv := range invoices {
		item := InvoiceListItem{
			Invoice:    inv,
			ClientName: s.ClientDisplayName(inv.ClientID),
			Overdue:    IsOverdue(inv, today),
		}
		if p, ok := s.ProjectByID(inv.ProjectID); ok {
			item.ProjectName = p.Name
		}
		out[i] = item
	}
	return out
}

// ProjectDetail is the full project page: the record plus everything it
// references.
type ProjectDetail struct {
	domain.Project
	ClientName string              `json:"clientName"`
	Team       []domain.TeamMember `json:"team"`
	Invoices   []domain.Invoice    `json:"invoices"`
	Summary    FinancialSummary    `json:"financialSummary"`
}

// ProjectDetail assembles the project page for id.
func (s *Snapshot) ProjectDetail(id string) (ProjectDetail, bool) {
	p, ok := s.ProjectByID(id)
	if !ok {
		return ProjectDetail{}, false
	}
	if p.Financial != nil {
		f := *p.Financial
		RecomputeBalance(&f)
		p.Financial = &f
	}
	return ProjectDetail{
		Project:    p,
		ClientName: s.ClientDisplayName(p.ClientID),
		Team:       s.TeamForProject(p),
		Invoices:   s.InvoicesByProjectID(p.ID),
		Summary:    SummarizeFinancial(p),
	}, true
}
