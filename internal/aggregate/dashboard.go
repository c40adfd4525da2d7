package aggregate

import (
	"cmp"
	"slices"
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/shopspring/decimal"
)

// AdminOverview feeds the admin dashboard cards and charts.
type AdminOverview struct {
	TotalClients      int                `json:"totalClients"`
	ActiveClients     int                `json:"activeClients"`
	TotalProjects     int                `json:"totalProjects"`
	ActiveProjects    int                `json:"activeProjects"`
	ProjectsByStatus  map[string]int     `json:"projectsByStatus"`
	Revenue           float64            `json:"revenue"`
	Outstanding       float64            `json:"outstanding"`
	OverdueInvoices   int                `json:"overdueInvoices"`
	MonthlyRevenue    []MonthlyAmount    `json:"monthlyRevenue"`
	RecentProjects    []ProjectListItem  `json:"recentProjects"`
	TeamSize          int                `json:"teamSize"`
	PendingApprovals  int                `json:"pendingApprovals"`
	UnreadAdminAlerts int                `json:"unreadAdminAlerts"`
	ApprovalBreakdown map[string]int     `json:"approvalBreakdown"`
	RevenueByClient   map[string]float64 `json:"revenueByClient"`
}

// MonthlyAmount is one point of a month-bucketed series.
type MonthlyAmount struct {
	Month  string  `json:"month"` // YYYY-MM
	Amount float64 `json:"amount"`
}

// ProjectListItem is a project row joined with its client's name.
type ProjectListItem struct {
	domain.Project
	ClientName string `json:"clientName"`
}

// ClientOverview feeds the client-facing home page.
type ClientOverview struct {
	Client          domain.Client     `json:"client"`
	Projects        []domain.Project  `json:"projects"`
	Invoices        []domain.Invoice  `json:"invoices"`
	TotalSpent      float64           `json:"totalSpent"`
	Outstanding     float64           `json:"outstanding"`
	UnreadCount     int               `json:"unreadCount"`
	AverageProgress int               `json:"averageProgress"`
	AwaitingReview  []ProjectListItem `json:"awaitingReview"`
}

// IsOverdue reports whether an invoice is overdue on the given day: either
// marked so, or still pending past its due date.
func IsOverdue(inv domain.Invoice, today time.Time) bool {
	if inv.Status == domain.PaymentOverdue {
		return true
	}
	if inv.Status != domain.PaymentPending {
		return false
	}
	due, ok := ParseDate(inv.DueDate)
	if !ok {
		return false
	}
	y, m, d := today.Date()
	return due.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// WithClientNames joins each project with its client's display name.
func (s *Snapshot) WithClientNames(projects []domain.Project) []ProjectListItem {
	out := make([]ProjectListItem, len(projects))
	for i, p := range projects {
		out[i] = ProjectListItem{Project: p, ClientName: s.ClientDisplayName(p.ClientID)}
	}
	return out
}

// MonthlyRevenue buckets paid invoices by the month of issue (falling back
// to createdAt) over the trailing months ending with now's month.
func MonthlyRevenue(invoices []domain.Invoice, now time.Time, months int) []MonthlyAmount {
	if months <= 0 {
		return []MonthlyAmount{}
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	buckets := make([]decimal.Decimal, months)
	for _, inv := range invoices {
		if inv.Status != domain.PaymentPaid {
			continue
		}
		at, ok := ParseDate(inv.IssuedDate)
		if !ok {
			if inv.CreatedAt == 0 {
				continue
			}
			at = time.UnixMilli(inv.CreatedAt).UTC()
		}
		idx := (at.Year()-start.Year())*12 + int(at.Month()) - int(start.Month())
		if idx < 0 || idx >= months {
			continue
		}
		buckets[idx] = buckets[idx].Add(money(inv.Amount))
	}
	out := make([]MonthlyAmount, months)
	for i := range buckets {
		amount, _ := buckets[i].Float64()
		out[i] = MonthlyAmount{Month: start.AddDate(0, i, 0).Format("2006-01"), Amount: amount}
	}
	return out
}

// AdminOverview derives the admin dashboard from the snapshot.
func (s *Snapshot) AdminOverview(now time.Time) AdminOverview {
	ov := AdminOverview{
		TotalClients:      len(s.Clients),
		TotalProjects:     len(s.Projects),
		TeamSize:          len(s.Team),
		ProjectsByStatus:  make(map[string]int),
		ApprovalBreakdown: make(map[string]int),
		RevenueByClient:   make(map[string]float64),
	}
	for _, c := range s.Clients {
		if c.Status == domain.ClientActive {
			ov.ActiveClients++
		}
	}
	for _, p := range s.Projects {
		ov.ProjectsByStatus[string(p.Status)]++
		if p.Status != domain.ProjectCompleted {
			ov.ActiveProjects++
		}
		if p.Financial != nil {
			status := p.Financial.ApprovalStatus.Normalized()
			ov.ApprovalBreakdown[string(status)]++
			if status == domain.ApprovalPending {
				ov.PendingApprovals++
			}
		}
	}
	for _, inv := range s.Invoices {
		if IsOverdue(inv, now) {
			ov.OverdueInvoices++
		}
	}
	ov.Revenue = TotalSpent(s.Invoices)
	ov.Outstanding = Outstanding(s.Invoices)
	for _, c := range s.Clients {
		ov.RevenueByClient[c.ID] = s.ClientTotalSpent(c.ID)
	}
	ov.MonthlyRevenue = MonthlyRevenue(s.Invoices, now, 6)

	recent := slices.Clone(s.Projects)
	slices.SortStableFunc(recent, func(a, b domain.Project) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
	if len(recent) > 5 {
		recent = recent[:5]
	}
	ov.RecentProjects = s.WithClientNames(recent)
	ov.UnreadAdminAlerts = UnreadCount(s.Notifications, domain.AdminActor())
	return ov
}

// ClientOverview derives the client home page. ok is false when the client
// does not exist.
func (s *Snapshot) ClientOverview(clientID string) (ClientOverview, bool) {
	c, ok := s.ClientByID(clientID)
	if !ok {
		return ClientOverview{}, false
	}
	projects := s.ProjectsByClientID(clientID)
	invoices := s.InvoicesByClientID(clientID)
	ov := ClientOverview{
		Client:         c,
		Projects:       projects,
		Invoices:       invoices,
		TotalSpent:     TotalSpent(invoices),
		Outstanding:    Outstanding(invoices),
		AwaitingReview: make([]ProjectListItem, 0),
	}
	if actor, err := domain.ClientActor(clientID); err == nil {
		ov.UnreadCount = UnreadCount(s.Notifications, actor)
	}
	if len(projects) > 0 {
		total := 0
		for _, p := range projects {
			total += p.Progress
		}
		ov.AverageProgress = total / len(projects)
	}
	for _, p := range projects {
		if p.Financial != nil && !p.Financial.ApprovalStatus.IsTerminal() {
			ov.AwaitingReview = append(ov.AwaitingReview, ProjectListItem{Project: p, ClientName: c.DisplayName()})
		}
	}
	return ov, true
}
