package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Payment plan approval (client)
// ============================================================

// DecidePaymentPlan records the owning client's decision on a project's
// payment plan and tells the admin. Only a pending plan can be decided.
func (p *Portal) DecidePaymentPlan(ctx context.Context, actor domain.Actor, projectID string, req *domain.ApprovalRequest) (*domain.Financial, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.DecidePaymentPlan")
	defer span.End()
	span.SetAttributes(
		attribute.String("project.id", projectID),
		attribute.String("approval.action", string(req.Action)),
	)

	if !actor.IsClient() {
		return nil, &domain.ErrForbidden{Action: "decide payment plan"}
	}
	defer p.locks.Lock(projectKey(projectID))()
	pr, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if pr.ClientID != actor.ClientID() {
		return nil, &domain.ErrNotFound{Resource: "project", ID: projectID}
	}
	if pr.Financial == nil {
		return nil, &domain.ErrValidation{Field: "financial", Message: "project has no payment plan"}
	}

	feedback := strings.TrimSpace(req.Feedback)
	next, err := domain.NextApprovalStatus(pr.Financial.ApprovalStatus, req.Action, feedback)
	if err != nil {
		return nil, err
	}

	f := *pr.Financial
	now := p.nowMillis()
	f.ApprovalStatus = next
	f.UpdatedAt = now
	switch next {
	case domain.ApprovalApproved:
		f.ApprovedAt = now
	case domain.ApprovalRejected:
		f.RejectedAt = now
	case domain.ApprovalChangeRequested:
		f.ChangeRequestedAt = now
		f.ChangeRequest = req.Feedback
	}

	if err := p.writeProject(ctx, pr, map[string]any{"financial": &f}); err != nil {
		return nil, err
	}
	p.metrics.IncrApproval(next)

	clientName := pr.ClientID
	if c, err := p.store.GetClient(ctx, pr.ClientID); err == nil {
		clientName = c.DisplayName()
	}
	title, description := approvalMessage(next, clientName, pr.Name, req.Feedback)
	if err := p.notify(ctx, domain.AdminActor(), domain.NotifyApprovalRequest, title, description); err != nil {
		return nil, err
	}

	p.logger.Info("payment plan decided",
		zap.String("project_id", projectID),
		zap.String("client_id", pr.ClientID),
		zap.String("status", string(next)),
	)
	return &f, nil
}

func approvalMessage(status domain.ApprovalStatus, client, project, feedback string) (string, string) {
	switch status {
	case domain.ApprovalApproved:
		return "Payment plan approved", fmt.Sprintf("%s approved the payment plan for %s.", client, project)
	case domain.ApprovalChangeRequested:
		return "Changes requested", fmt.Sprintf("%s requested changes to the payment plan for %s: %s", client, project, feedback)
	default:
		return "Payment plan rejected", fmt.Sprintf("%s rejected the payment plan for %s.", client, project)
	}
}
