package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoice_Validation(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	a := tp.mustClient(t, "a", "CODE-A")
	b := tp.mustClient(t, "b", "CODE-B")
	pr := tp.mustProject(t, a.ID, "Website", nil)

	var verr *domain.ErrValidation
	_, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: b.ID, ProjectID: pr.ID, Amount: 100})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "projectId", verr.Field)

	_, err = tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: a.ID, ProjectID: pr.ID, Amount: 0})
	require.ErrorAs(t, err, &verr)

	_, err = tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: a.ID, ProjectID: pr.ID, Amount: 10, Status: "Refunded"})
	require.ErrorAs(t, err, &verr)
}

func TestCreateInvoice_DefaultsAndNotifies(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})

	inv, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: 250, DueDate: "2025-04-01"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, inv.Status)
	assert.Equal(t, "2025-03-14", inv.IssuedDate)
	assert.Zero(t, inv.PaidAt)

	list, err := tp.Notifications(ctx, clientActor(t, c.ID))
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, domain.NotifyPayment, list[0].Type)
	assert.Equal(t, "Invoice of 250.00 USD for Website, due 2025-04-01.", list[0].Description)
}

func TestPayInvoice_UpdatesProjectAndNotifiesAdmin(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})
	inv, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: 400})
	require.NoError(t, err)

	paid, err := tp.PayInvoice(ctx, clientActor(t, c.ID), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, paid.Status)
	assert.Equal(t, fixedNow.UnixMilli(), paid.PaidAt)

	stored, err := tp.store.GetProject(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 400.0, stored.Financial.TotalPaid)
	assert.Equal(t, 600.0, stored.Financial.Balance)

	admin := adminNotifications(t, tp)
	require.Len(t, admin, 1)
	assert.Equal(t, domain.NotifyPayment, admin[0].Type)
	assert.Equal(t, "Payment received", admin[0].Title)

	_, err = tp.PayInvoice(ctx, clientActor(t, c.ID), inv.ID)
	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestPayInvoice_ConcurrentPaymentsCountOnce(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})
	inv, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: 400})
	require.NoError(t, err)

	meet := newRendezvous(2)
	tp.hooks.afterGetInvoice = func(string) { meet.wait() }

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = tp.PayInvoice(ctx, clientActor(t, c.ID), inv.ID)
		}()
	}
	wg.Wait()
	tp.hooks.afterGetInvoice = nil

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *domain.ErrConflict
		assert.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := tp.store.GetProject(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 400.0, stored.Financial.TotalPaid)
	assert.Equal(t, 600.0, stored.Financial.Balance)
	assert.Len(t, adminNotifications(t, tp), 1)
}

func TestPayInvoice_ConcurrentInvoicesOnOneProjectAddUp(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})
	var ids []string
	for _, amount := range []float64{400, 300} {
		inv, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: amount})
		require.NoError(t, err)
		ids = append(ids, inv.ID)
	}

	meet := newRendezvous(2)
	tp.hooks.afterGetProject = func(string) { meet.wait() }

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tp.PayInvoice(ctx, clientActor(t, c.ID), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	tp.hooks.afterGetProject = nil

	stored, err := tp.store.GetProject(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 700.0, stored.Financial.TotalPaid)
	assert.Equal(t, 300.0, stored.Financial.Balance)
}

func TestPayInvoice_OtherClientSeesNotFound(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	a := tp.mustClient(t, "a", "CODE-A")
	b := tp.mustClient(t, "b", "CODE-B")
	pr := tp.mustProject(t, a.ID, "Website", nil)
	inv, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: a.ID, ProjectID: pr.ID, Amount: 40})
	require.NoError(t, err)

	_, err = tp.PayInvoice(ctx, clientActor(t, b.ID), inv.ID)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)

	_, err = tp.PayInvoice(ctx, domain.AdminActor(), inv.ID)
	var forbidden *domain.ErrForbidden
	require.ErrorAs(t, err, &forbidden)
}

func TestSetInvoiceStatus_LeavingPaidReversesPayment(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0), TotalPaid: ptr(100.0)})

	inv, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: 300, Status: domain.PaymentPaid})
	require.NoError(t, err)
	assert.NotZero(t, inv.PaidAt)

	stored, err := tp.store.GetProject(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 400.0, stored.Financial.TotalPaid)

	inv, err = tp.SetInvoiceStatus(ctx, inv.ID, domain.PaymentOverdue)
	require.NoError(t, err)
	assert.Zero(t, inv.PaidAt)

	stored, err = tp.store.GetProject(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Financial.TotalPaid)
	assert.Equal(t, 900.0, stored.Financial.Balance)

	reloaded, err := tp.store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentOverdue, reloaded.Status)
	assert.Zero(t, reloaded.PaidAt)

	_, err = tp.SetInvoiceStatus(ctx, inv.ID, "Void")
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
}

func TestListInvoices_JoinsNamesAndFlagsOverdue(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", nil)
	_, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: 10, DueDate: "2025-03-01"})
	require.NoError(t, err)
	_, err = tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: 20, DueDate: "2025-05-01"})
	require.NoError(t, err)

	list, err := tp.ListInvoices(ctx, aggregate.ListQuery{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	overdue := 0
	for _, item := range list {
		assert.Equal(t, "acme", item.ClientName)
		assert.Equal(t, "Website", item.ProjectName)
		if item.Overdue {
			overdue++
		}
	}
	assert.Equal(t, 1, overdue)

	mine, err := tp.ClientInvoices(ctx, clientActor(t, c.ID), aggregate.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = tp.ListInvoices(ctx, aggregate.ListQuery{Status: "Lost"})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
}

func TestDeleteInvoice(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", nil)
	inv, err := tp.CreateInvoice(ctx, &domain.CreateInvoiceRequest{ClientID: c.ID, ProjectID: pr.ID, Amount: 10})
	require.NoError(t, err)

	require.NoError(t, tp.DeleteInvoice(ctx, inv.ID))
	err = tp.DeleteInvoice(ctx, inv.ID)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
}
