package aggregate

import (
	"math"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/shopspring/decimal"
)

// money converts a stored amount, treating NaN and ±Inf as zero.
func money(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// RecomputeBalance sets f.Balance to TotalCost - TotalPaid. It must run on
// every write to the financial block; calling it twice is a no-op.
func RecomputeBalance(f *domain.Financial) {
	if f == nil {
		return
	}
	f.Balance = Balance(f)
}

// Balance derives the outstanding amount without trusting the stored
// balance. An absent block has a zero balance.
func Balance(f *domain.Financial) float64 {
	if f == nil {
		return 0
	}
	b, _ := money(f.TotalCost).Sub(money(f.TotalPaid)).Float64()
	return b
}

// TotalSpent sums the amounts of paid invoices. Pending and overdue
// invoices contribute nothing.
func TotalSpent(invoices []domain.Invoice) float64 {
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.Status == domain.PaymentPaid {
			total = total.Add(money(inv.Amount))
		}
	}
	f, _ := total.Float64()
	return f
}

// Outstanding sums the amounts of invoices that are not paid.
func Outstanding(invoices []domain.Invoice) float64 {
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.Status != domain.PaymentPaid {
			total = total.Add(money(inv.Amount))
		}
	}
	f, _ := total.Float64()
	return f
}

// ClientTotalSpent is TotalSpent over the client's invoices.
func (s *Snapshot) ClientTotalSpent(clientID string) float64 {
	return TotalSpent(s.InvoicesByClientID(clientID))
}

// FinancialSummary is the display-ready view of a project's payment plan.
type FinancialSummary struct {
	TotalCost       float64               `json:"totalCost"`
	TotalPaid       float64               `json:"totalPaid"`
	Balance         float64               `json:"balance"`
	Currency        string                `json:"currency"`
	PaidPercent     float64               `json:"paidPercent"`
	MilestoneTotals map[string]float64    `json:"milestoneTotals"`
	PercentageTotal float64               `json:"percentageTotal"`
	ApprovalStatus  domain.ApprovalStatus `json:"approvalStatus"`
	ChangeRequest   string                `json:"changeRequest,omitempty"`
}

// DefaultCurrency is used when a plan has none.
const DefaultCurrency = "USD"

// SummarizeFinancial derives the summary for a project. Missing numbers
// default to zero and a missing block yields an all-zero pending summary.
func SummarizeFinancial(p domain.Project) FinancialSummary {
	sum := FinancialSummary{
		Currency: DefaultCurrency,
		MilestoneTotals: map[string]float64{
			string(domain.PaymentPending): 0,
			string(domain.PaymentPaid):    0,
			string(domain.PaymentOverdue): 0,
		},
		ApprovalStatus: domain.ApprovalPending,
	}
	f := p.Financial
	if f == nil {
		return sum
	}

	cost := money(f.TotalCost)
	paid := money(f.TotalPaid)
	sum.TotalCost, _ = cost.Float64()
	sum.TotalPaid, _ = paid.Float64()
	sum.Balance = Balance(f)
	if f.Currency != "" {
		sum.Currency = f.Currency
	}
	if cost.IsPositive() {
		sum.PaidPercent, _ = paid.Div(cost).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	}

	pct := decimal.Zero
	totals := make(map[string]decimal.Decimal, 3)
	for _, m := range f.PaymentMilestones {
		totals[string(m.Status)] = totals[string(m.Status)].Add(money(m.Amount))
		pct = pct.Add(money(m.Percentage))
	}
	for status, v := range totals {
		sum.MilestoneTotals[status], _ = v.Float64()
	}
	sum.PercentageTotal, _ = pct.Float64()
	sum.ApprovalStatus = f.ApprovalStatus.Normalized()
	sum.ChangeRequest = f.ChangeRequest
	return sum
}

// AddPayment adds amount to TotalPaid and recomputes the balance.
func AddPayment(f *domain.Financial, amount float64) {
	if f == nil {
		return
	}
	f.TotalPaid, _ = money(f.TotalPaid).Add(money(amount)).Float64()
	RecomputeBalance(f)
}
