package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

// StatusAll disables the status filter.
const StatusAll = "All"

// Sort orders accepted by the list views.
const (
	SortNameAsc      = "name-asc"
	SortNameDesc     = "name-desc"
	SortProjectsDesc = "projects-desc"
	SortDateNewest   = "date-newest"
	SortDateOldest   = "date-oldest"
	SortDueSoonest   = "due-soonest"
	SortProgressDesc = "progress-desc"
	SortBudgetDesc   = "budget-desc"
	SortAmountDesc   = "amount-desc"
	SortAmountAsc    = "amount-asc"
)

// ClientSorts, ProjectSorts and InvoiceSorts list the orders each view offers.
var (
	ClientSorts  = []string{SortNameAsc, SortNameDesc, SortProjectsDesc, SortDateNewest}
	ProjectSorts = []string{SortNameAsc, SortNameDesc, SortDateNewest, SortDueSoonest, SortProgressDesc, SortBudgetDesc}
	InvoiceSorts = []string{SortDateNewest, SortDateOldest, SortAmountDesc, SortAmountAsc, SortDueSoonest}
)

// ListQuery holds the three list controls. Zero values match everything and
// keep store order.
type ListQuery struct {
	Search string
	Status string
	Sort   string
}

// filterSort runs base → search → status → sort. The sort is stable so rows
// with equal keys keep their filtered order across refreshes.
func filterSort[T any](base []T, q ListQuery, fields func(T) []string, status func(T) string, cmpFn func(a, b T) int) []T {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]T, 0, len(base))
	for _, item := range base {
		if term != "" && !matchesAny(fields(item), term) {
			continue
		}
		if q.Status != "" && q.Status != StatusAll && status(item) != q.Status {
			continue
		}
		out = append(out, item)
	}
	if cmpFn != nil {
		slices.SortStableFunc(out, cmpFn)
	}
	return out
}

func matchesAny(fields []string, term string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// num treats NaN as zero so it cannot break an ordering.
func num(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// compareDates orders calendar dates ascending with missing or unparsable
// dates last.
func compareDates(a, b string) int {
	ta, okA := ParseDate(a)
	tb, okB := ParseDate(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return ta.Compare(tb)
}

// ParseDate reads a YYYY-MM-DD date, also accepting RFC 3339 timestamps.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func byName(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

// ============================================================
// Clients
// ============================================================

// FilterClients searches name, email and company name.
func (s *Snapshot) FilterClients(q ListQuery) []domain.Client {
	var cmpFn func(a, b domain.Client) int
	switch q.Sort {
	case SortNameAsc:
		cmpFn = func(a, b domain.Client) int { return byName(a.Name, b.Name) }
	case SortNameDesc:
		cmpFn = func(a, b domain.Client) int { return byName(b.Name, a.Name) }
	case SortProjectsDesc:
		counts := s.ProjectCountsByClient()
		cmpFn = func(a, b domain.Client) int { return cmp.Compare(counts[b.ID], counts[a.ID]) }
	case SortDateNewest:
		cmpFn = func(a, b domain.Client) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) }
	}
	return filterSort(s.Clients, q,
		func(c domain.Client) []string { return []string{c.Name, c.Email, c.CompanyName} },
		func(c domain.Client) string { return string(c.Status) },
		cmpFn,
	)
}

// ============================================================
// Projects
// ============================================================

// FilterProjects searches the project name and the owning client's name.
func (s *Snapshot) FilterProjects(q ListQuery) []domain.Project {
	return s.filterProjects(s.Projects, q)
}

// FilterClientProjects applies q to one client's projects only.
func (s *Snapshot) FilterClientProjects(clientID string, q ListQuery) []domain.Project {
	return s.filterProjects(s.ProjectsByClientID(clientID), q)
}

func (s *Snapshot) filterProjects(base []domain.Project, q ListQuery) []domain.Project {
	var cmpFn func(a, b domain.Project) int
	switch q.Sort {
	case SortNameAsc:
		cmpFn = func(a, b domain.Project) int { return byName(a.Name, b.Name) }
	case SortNameDesc:
		cmpFn = func(a, b domain.Project) int { return byName(b.Name, a.Name) }
	case SortDateNewest:
		cmpFn = func(a, b domain.Project) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) }
	case SortDueSoonest:
		cmpFn = func(a, b domain.Project) int { return compareDates(a.DueDate, b.DueDate) }
	case SortProgressDesc:
		cmpFn = func(a, b domain.Project) int { return cmp.Compare(b.Progress, a.Progress) }
	case SortBudgetDesc:
		cmpFn = func(a, b domain.Project) int { return cmp.Compare(num(b.Budget), num(a.Budget)) }
	}
	return filterSort(base, q,
		func(p domain.Project) []string { return []string{p.Name, s.ClientDisplayName(p.ClientID)} },
		func(p domain.Project) string { return string(p.Status) },
		cmpFn,
	)
}

// ============================================================
// Invoices
// ============================================================

// FilterInvoices searches the client's display name and the invoice id.
func (s *Snapshot) FilterInvoices(q ListQuery) []domain.Invoice {
	return s.filterInvoices(s.Invoices, q)
}

// FilterClientInvoices applies q to one client's invoices only.
func (s *Snapshot) FilterClientInvoices(clientID string, q ListQuery) []domain.Invoice {
	return s.filterInvoices(s.InvoicesByClientID(clientID), q)
}

func (s *Snapshot) filterInvoices(base []domain.Invoice, q ListQuery) []domain.Invoice {
	var cmpFn func(a, b domain.Invoice) int
	switch q.Sort {
	case SortDateNewest:
		cmpFn = func(a, b domain.Invoice) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) }
	case SortDateOldest:
		cmpFn = func(a, b domain.Invoice) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) }
	case SortAmountDesc:
		cmpFn = func(a, b domain.Invoice) int { return cmp.Compare(num(b.Amount), num(a.Amount)) }
	case SortAmountAsc:
		cmpFn = func(a, b domain.Invoice) int { return cmp.Compare(num(a.Amount), num(b.Amount)) }
	case SortDueSoonest:
		cmpFn = func(a, b domain.Invoice) int { return compareDates(a.DueDate, b.DueDate) }
	}
	return filterSort(base, q,
		func(inv domain.Invoice) []string { return []string{s.ClientDisplayName(inv.ClientID), inv.ID} },
		func(inv domain.Invoice) string { return string(inv.Status) },
		cmpFn,
	)
}
