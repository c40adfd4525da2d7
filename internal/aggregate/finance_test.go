package aggregate_test

import (
	"math"
	"testing"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestTotalSpent_OnlyPaid(t *testing.T) {
	invoices := []domain.Invoice{
		{Amount: 100, Status: domain.PaymentPaid},
		{Amount: 50, Status: domain.PaymentPending},
	}

	assert.Equal(t, 100.0, aggregate.TotalSpent(invoices))
	assert.Equal(t, 50.0, aggregate.Outstanding(invoices))
	assert.Equal(t, 0.0, aggregate.TotalSpent(nil))
}

func TestTotalSpent_DecimalSafe(t *testing.T) {
	invoices := []domain.Invoice{
		{Amount: 0.1, Status: domain.PaymentPaid},
		{Amount: 0.2, Status: domain.PaymentPaid},
		{Amount: math.NaN(), Status: domain.PaymentPaid},
	}

	assert.Equal(t, 0.3, aggregate.TotalSpent(invoices))
}

func TestClientTotalSpent(t *testing.T) {
	s := fixture()

	assert.Equal(t, 100.0, s.ClientTotalSpent("c-1"))
	assert.Equal(t, 0.0, s.ClientTotalSpent("c-2"))
}

func TestRecomputeBalance_Idempotent(t *testing.T) {
	f := &domain.Financial{TotalCost: 1000, TotalPaid: 250.5, Balance: 9999}

	aggregate.RecomputeBalance(f)
	assert.Equal(t, 749.5, f.Balance)
	aggregate.RecomputeBalance(f)
	assert.Equal(t, 749.5, f.Balance)
	assert.Equal(t, f.TotalCost-f.TotalPaid, f.Balance)

	aggregate.RecomputeBalance(nil)
	assert.Equal(t, 0.0, aggregate.Balance(nil))
}

func TestAddPayment(t *testing.T) {
	f := &domain.Financial{TotalCost: 1000, TotalPaid: 100}

	aggregate.AddPayment(f, 0.1)
	aggregate.AddPayment(f, 0.2)
	assert.Equal(t, 100.3, f.TotalPaid)
	assert.Equal(t, 899.7, f.Balance)
}

func TestSummarizeFinancial_AbsentBlock(t *testing.T) {
	sum := aggregate.SummarizeFinancial(domain.Project{ID: "p"})

	assert.Equal(t, 0.0, sum.TotalCost)
	assert.Equal(t, 0.0, sum.Balance)
	assert.Equal(t, domain.ApprovalPending, sum.ApprovalStatus)
	assert.Equal(t, aggregate.DefaultCurrency, sum.Currency)
}

func TestSummarizeFinancial_IgnoresStaleBalance(t *testing.T) {
	p := domain.Project{Financial: &domain.Financial{
		TotalCost: 2000,
		TotalPaid: 500,
		Balance:   1,
		Currency:  "EUR",
		PaymentMilestones: []domain.PaymentMilestone{
			{Name: "Deposit", Percentage: 25, Amount: 500, Status: domain.PaymentPaid},
			{Name: "Delivery", Percentage: 60, Amount: 1200, Status: domain.PaymentPending},
		},
		ApprovalStatus: domain.ApprovalChangeRequested,
		ChangeRequest:  "split the delivery payment",
	}}

	sum := aggregate.SummarizeFinancial(p)
	assert.Equal(t, 1500.0, sum.Balance)
	assert.Equal(t, 25.0, sum.PaidPercent)
	assert.Equal(t, 85.0, sum.PercentageTotal)
	assert.Equal(t, 500.0, sum.MilestoneTotals["Paid"])
	assert.Equal(t, 1200.0, sum.MilestoneTotals["Pending"])
	assert.Equal(t, "EUR", sum.Currency)
	assert.Equal(t, "split the delivery payment", sum.ChangeRequest)
}
