package aggregate_test

import (
	"testing"
	"time"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOverdue(t *testing.T) {
	today := time.Date(2025, 5, 10, 15, 0, 0, 0, time.UTC)

	assert.True(t, aggregate.IsOverdue(domain.Invoice{Status: domain.PaymentOverdue}, today))
	assert.True(t, aggregate.IsOverdue(domain.Invoice{Status: domain.PaymentPending, DueDate: "2025-05-09"}, today))
	assert.False(t, aggregate.IsOverdue(domain.Invoice{Status: domain.PaymentPending, DueDate: "2025-05-10"}, today))
	assert.False(t, aggregate.IsOverdue(domain.Invoice{Status: domain.PaymentPaid, DueDate: "2020-01-01"}, today))
	assert.False(t, aggregate.IsOverdue(domain.Invoice{Status: domain.PaymentPending}, today))
}

func TestMonthlyRevenue(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	invoices := []domain.Invoice{
		{Amount: 100, Status: domain.PaymentPaid, IssuedDate: "2025-03-02"},
		{Amount: 40, Status: domain.PaymentPaid, IssuedDate: "2025-01-20"},
		{Amount: 999, Status: domain.PaymentPending, IssuedDate: "2025-03-02"},
		{Amount: 7, Status: domain.PaymentPaid, IssuedDate: "2024-01-01"},
		{Amount: 5, Status: domain.PaymentPaid, CreatedAt: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC).UnixMilli()},
	}

	series := aggregate.MonthlyRevenue(invoices, now, 3)
	require.Len(t, series, 3)
	assert.Equal(t, aggregate.MonthlyAmount{Month: "2025-01", Amount: 40}, series[0])
	assert.Equal(t, aggregate.MonthlyAmount{Month: "2025-02", Amount: 5}, series[1])
	assert.Equal(t, aggregate.MonthlyAmount{Month: "2025-03", Amount: 100}, series[2])
}

func TestAdminOverview(t *testing.T) {
	s := fixture()
	s.Projects[0].Financial = &domain.Financial{TotalCost: 10}
	s.Projects[1].Financial = &domain.Financial{ApprovalStatus: domain.ApprovalApproved}
	s.Notifications = []domain.Notification{{ID: "n", UserID: "admin"}}

	ov := s.AdminOverview(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, ov.TotalClients)
	assert.Equal(t, 1, ov.ActiveClients)
	assert.Equal(t, 3, ov.ActiveProjects)
	assert.Equal(t, 100.0, ov.Revenue)
	assert.Equal(t, 120.0, ov.Outstanding)
	assert.Equal(t, 1, ov.OverdueInvoices)
	assert.Equal(t, 1, ov.PendingApprovals)
	assert.Equal(t, 1, ov.UnreadAdminAlerts)
	assert.Equal(t, 100.0, ov.RevenueByClient["c-1"])
	assert.Len(t, ov.RecentProjects, 3)
}

func TestClientOverview(t *testing.T) {
	s := fixture()
	s.Projects[0].Progress = 50
	s.Projects[2].Progress = 100
	s.Projects[2].Financial = &domain.Financial{}

	ov, ok := s.ClientOverview("c-1")
	require.True(t, ok)
	assert.Equal(t, 100.0, ov.TotalSpent)
	assert.Equal(t, 50.0, ov.Outstanding)
	assert.Equal(t, 75, ov.AverageProgress)
	require.Len(t, ov.AwaitingReview, 1)
	assert.Equal(t, "p-2", ov.AwaitingReview[0].ID)

	_, ok = s.ClientOverview("missing")
	assert.False(t, ok)
}
