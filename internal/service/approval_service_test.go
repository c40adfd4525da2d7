package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminNotifications(t *testing.T, tp *testPortal) []domain.Notification {
	t.Helper()
	list, err := tp.Notifications(context.Background(), domain.AdminActor())
	require.NoError(t, err)
	return list
}

func TestDecidePaymentPlan_Approve(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})
	before := len(adminNotifications(t, tp))

	f, err := tp.DecidePaymentPlan(ctx, clientActor(t, c.ID), pr.ID, &domain.ApprovalRequest{Action: domain.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, f.ApprovalStatus)
	assert.Equal(t, fixedNow.UnixMilli(), f.ApprovedAt)

	admin := adminNotifications(t, tp)
	require.Len(t, admin, before+1)
	assert.Equal(t, domain.NotifyApprovalRequest, admin[0].Type)
	assert.False(t, admin[0].Read)

	stored, err := tp.store.GetProject(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, stored.Financial.ApprovalStatus)
	assert.Equal(t, 1000.0, stored.Financial.Balance)

	// second decision is refused and creates nothing
	_, err = tp.DecidePaymentPlan(ctx, clientActor(t, c.ID), pr.ID, &domain.ApprovalRequest{Action: domain.ActionApprove})
	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Len(t, adminNotifications(t, tp), before+1)

	assert.Equal(t, int64(1), tp.metrics.Summary().ApprovalsApproved)
}

func TestDecidePaymentPlan_ConcurrentApprovals(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})
	before := len(adminNotifications(t, tp))

	meet := newRendezvous(2)
	tp.hooks.afterGetProject = func(string) { meet.wait() }

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = tp.DecidePaymentPlan(ctx, clientActor(t, c.ID), pr.ID, &domain.ApprovalRequest{Action: domain.ActionApprove})
		}()
	}
	wg.Wait()
	tp.hooks.afterGetProject = nil

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
	assert.Len(t, adminNotifications(t, tp), before+1)
	assert.Equal(t, int64(1), tp.metrics.Summary().ApprovalsApproved)
}

func TestDecidePaymentPlan_RejectWithFeedbackIsChangeRequest(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})

	feedback := "Split the deposit into two payments, please."
	f, err := tp.DecidePaymentPlan(ctx, clientActor(t, c.ID), pr.ID, &domain.ApprovalRequest{Action: domain.ActionReject, Feedback: feedback})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalChangeRequested, f.ApprovalStatus)
	assert.Equal(t, feedback, f.ChangeRequest)
	assert.NotZero(t, f.ChangeRequestedAt)

	admin := adminNotifications(t, tp)
	require.NotEmpty(t, admin)
	assert.Contains(t, admin[0].Description, feedback)
}

func TestDecidePaymentPlan_RejectWithoutFeedback(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(1000.0)})

	f, err := tp.DecidePaymentPlan(context.Background(), clientActor(t, c.ID), pr.ID, &domain.ApprovalRequest{Action: domain.ActionReject, Feedback: "   "})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, f.ApprovalStatus)
	assert.NotZero(t, f.RejectedAt)
	assert.Empty(t, f.ChangeRequest)
}

func TestDecidePaymentPlan_Guards(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	a := tp.mustClient(t, "a", "CODE-A")
	b := tp.mustClient(t, "b", "CODE-B")
	withPlan := tp.mustProject(t, a.ID, "Planned", &domain.FinancialInput{TotalCost: ptr(10.0)})
	noPlan := tp.mustProject(t, a.ID, "Unplanned", nil)
	approve := &domain.ApprovalRequest{Action: domain.ActionApprove}

	_, err := tp.DecidePaymentPlan(ctx, domain.AdminActor(), withPlan.ID, approve)
	var forbidden *domain.ErrForbidden
	require.ErrorAs(t, err, &forbidden)

	_, err = tp.DecidePaymentPlan(ctx, clientActor(t, b.ID), withPlan.ID, approve)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)

	_, err = tp.DecidePaymentPlan(ctx, clientActor(t, a.ID), noPlan.ID, approve)
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)

	_, err = tp.DecidePaymentPlan(ctx, clientActor(t, a.ID), withPlan.ID, &domain.ApprovalRequest{Action: "maybe"})
	require.ErrorAs(t, err, &verr)
}

func TestClientDashboard_AwaitingReview(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	ctx := context.Background()
	c := tp.mustClient(t, "acme", "ACME-1")
	pr := tp.mustProject(t, c.ID, "Website", &domain.FinancialInput{TotalCost: ptr(10.0)})

	ov, err := tp.ClientDashboard(ctx, clientActor(t, c.ID))
	require.NoError(t, err)
	require.Len(t, ov.AwaitingReview, 1)
	assert.Equal(t, pr.ID, ov.AwaitingReview[0].ID)

	_, err = tp.DecidePaymentPlan(ctx, clientActor(t, c.ID), pr.ID, &domain.ApprovalRequest{Action: domain.ActionApprove})
	require.NoError(t, err)
	ov, err = tp.ClientDashboard(ctx, clientActor(t, c.ID))
	require.NoError(t, err)
	assert.Empty(t, ov.AwaitingReview)

	admin, err := tp.AdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, admin.ApprovalBreakdown[string(domain.ApprovalApproved)])
	assert.Equal(t, 1, admin.TotalClients)

	_, err = tp.ClientDashboard(ctx, domain.AdminActor())
	var forbidden *domain.ErrForbidden
	require.ErrorAs(t, err, &forbidden)
}
