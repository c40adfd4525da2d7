package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Financial plan
// ============================================================

// applyFinancial merges admin input into a copy of current (nil for a new
// plan) and recomputes the balance. Approval fields are carried over.
func (p *Portal) applyFinancial(current *domain.Financial, in *domain.FinancialInput) (*domain.Financial, error) {
	f := &domain.Financial{ApprovalStatus: domain.ApprovalPending, CreatedAt: p.nowMillis()}
	if current != nil {
		cp := *current
		cp.PaymentMilestones = slices.Clone(current.PaymentMilestones)
		f = &cp
	}

	if in.TotalCost != nil {
		if err := validAmount("financial.totalCost", *in.TotalCost, true); err != nil {
			return nil, err
		}
		f.TotalCost = *in.TotalCost
	}
	if in.TotalPaid != nil {
		if err := validAmount("financial.totalPaid", *in.TotalPaid, true); err != nil {
			return nil, err
		}
		f.TotalPaid = *in.TotalPaid
	}
	if in.Currency != nil {
		f.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
	}
	if f.Currency == "" {
		f.Currency = aggregate.DefaultCurrency
	}
	if in.PaymentMilestones != nil {
		ms := slices.Clone(*in.PaymentMilestones)
		for i := range ms {
			if err := firstErr(
				required(fmt.Sprintf("financial.paymentMilestones[%d].name", i), ms[i].Name),
				validAmount(fmt.Sprintf("financial.paymentMilestones[%d].amount", i), ms[i].Amount, true),
				validAmount(fmt.Sprintf("financial.paymentMilestones[%d].percentage", i), ms[i].Percentage, true),
				validDate(fmt.Sprintf("financial.paymentMilestones[%d].dueDate", i), ms[i].DueDate),
			); err != nil {
				return nil, err
			}
			if ms[i].Status == "" {
				ms[i].Status = domain.PaymentPending
			}
			if !ms[i].Status.Valid() {
				return nil, &domain.ErrValidation{
					Field:   fmt.Sprintf("financial.paymentMilestones[%d].status", i),
					Message: fmt.Sprintf("unknown status %q", ms[i].Status),
				}
			}
			if ms[i].ID == "" {
				ms[i].ID = uuid.NewString()
			}
		}
		f.PaymentMilestones = ms
	}

	f.UpdatedAt = p.nowMillis()
	aggregate.RecomputeBalance(f)
	return f, nil
}

// UpdateFinancial edits the payment plan. The balance is always derived.
func (p *Portal) UpdateFinancial(ctx context.Context, projectID string, in *domain.FinancialInput) (*domain.Financial, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.UpdateFinancial")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", projectID))

	defer p.locks.Lock(projectKey(projectID))()
	pr, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	f, err := p.applyFinancial(pr.Financial, in)
	if err != nil {
		return nil, err
	}
	if err := p.writeProject(ctx, pr, map[string]any{"financial": f}); err != nil {
		return nil, err
	}

	if pr.Financial == nil {
		if err := p.notifyClient(ctx, pr.ClientID, domain.NotifyApprovalRequest,
			"Quotation ready for review", fmt.Sprintf("A payment plan for %s is waiting for your approval.", pr.Name)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// writeProject stamps updatedAt, writes and announces.
func (p *Portal) writeProject(ctx context.Context, pr *domain.Project, fields map[string]any) error {
	fields["updatedAt"] = p.nowMillis()
	if err := p.store.UpdateProject(ctx, pr.ID, fields); err != nil {
		p.metrics.IncrStoreError(domain.CollectionProjects)
		return fmt.Errorf("update project: %w", err)
	}
	p.changedFor(ctx, pr.ClientID, domain.CollectionProjects, domain.OpUpdated, pr.ID)
	return nil
}

// ============================================================
// Notes, milestones, documents
// ============================================================

// AddNote appends a note written by actor.
func (p *Portal) AddNote(ctx context.Context, actor domain.Actor, projectID string, req *domain.NoteRequest) (*domain.Note, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.AddNote")
	defer span.End()

	if err := required("content", req.Content); err != nil {
		return nil, err
	}
	defer p.locks.Lock(projectKey(projectID))()
	pr, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	note := domain.Note{
		ID:        uuid.NewString(),
		Category:  req.Category,
		Content:   strings.TrimSpace(req.Content),
		CreatedAt: p.nowMillis(),
		CreatedBy: actor.UserID(),
	}
	notes := append(slices.Clone(pr.Notes), note)
	if err := p.writeProject(ctx, pr, map[string]any{"notes": notes}); err != nil {
		return nil, err
	}
	return &note, nil
}

func (p *Portal) newMilestone(req domain.MilestoneRequest) (domain.Milestone, error) {
	status := req.Status
	if status == "" {
		status = domain.MilestonePending
	}
	if err := firstErr(required("title", req.Title), validDate("dueDate", req.DueDate)); err != nil {
		return domain.Milestone{}, err
	}
	if !status.Valid() {
		return domain.Milestone{}, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	m := domain.Milestone{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      status,
		DueDate:     req.DueDate,
	}
	if status == domain.MilestoneCompleted {
		m.CompletedDate = p.today()
	}
	return m, nil
}

// AddMilestone appends a milestone to the project timeline.
func (p *Portal) AddMilestone(ctx context.Context, projectID string, req *domain.MilestoneRequest) (*domain.Milestone, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.AddMilestone")
	defer span.End()

	m, err := p.newMilestone(*req)
	if err != nil {
		return nil, err
	}
	defer p.locks.Lock(projectKey(projectID))()
	pr, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	milestones := append(slices.Clone(pr.Milestones), m)
	if err := p.writeProject(ctx, pr, map[string]any{"milestones": milestones}); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMilestone edits one milestone. Completing it stamps completedDate
// and tells the client; leaving Completed clears the stamp.
func (p *Portal) UpdateMilestone(ctx context.Context, projectID, milestoneID string, patch *domain.MilestonePatch) (*domain.Milestone, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.UpdateMilestone")
	defer span.End()

	defer p.locks.Lock(projectKey(projectID))()
	pr, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	milestones := slices.Clone(pr.Milestones)
	idx := slices.IndexFunc(milestones, func(m domain.Milestone) bool { return m.ID == milestoneID })
	if idx < 0 {
		return nil, &domain.ErrNotFound{Resource: "milestone", ID: milestoneID}
	}
	m := milestones[idx]
	wasCompleted := m.Status == domain.MilestoneCompleted

	if patch.Title != nil {
		if err := required("title", *patch.Title); err != nil {
			return nil, err
		}
		m.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.DueDate != nil {
		if err := validDate("dueDate", *patch.DueDate); err != nil {
			return nil, err
		}
		m.DueDate = *patch.DueDate
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
		m.Status = *patch.Status
	}
	switch {
	case m.Status == domain.MilestoneCompleted && m.CompletedDate == "":
		m.CompletedDate = p.today()
	case m.Status != domain.MilestoneCompleted:
		m.CompletedDate = ""
	}
	milestones[idx] = m

	if err := p.writeProject(ctx, pr, map[string]any{"milestones": milestones}); err != nil {
		return nil, err
	}
	if !wasCompleted && m.Status == domain.MilestoneCompleted {
		if err := p.notifyClient(ctx, pr.ClientID, domain.NotifyProjectUpdate,
			"Milestone completed", fmt.Sprintf("%s: %s is complete.", pr.Name, m.Title)); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// AddDocument links a document to the project and tells the client.
func (p *Portal) AddDocument(ctx context.Context, actor domain.Actor, projectID string, req *domain.DocumentRequest) (*domain.Document, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.AddDocument")
	defer span.End()

	if err := firstErr(required("name", req.Name), validURL("url", req.URL)); err != nil {
		return nil, err
	}
	if req.Size < 0 {
		return nil, &domain.ErrValidation{Field: "size", Message: "must be zero or more"}
	}
	defer p.locks.Lock(projectKey(projectID))()
	pr, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	doc := domain.Document{
		ID:         uuid.NewString(),
		Type:       req.Type,
		Name:       strings.TrimSpace(req.Name),
		URL:        req.URL,
		UploadedAt: p.nowMillis(),
		UploadedBy: actor.UserID(),
		Size:       req.Size,
	}
	docs := append(slices.Clone(pr.Documents), doc)
	if err := p.writeProject(ctx, pr, map[string]any{"documents": docs}); err != nil {
		return nil, err
	}
	if err := p.notifyClient(ctx, pr.ClientID, domain.NotifyProjectUpdate,
		"New document", fmt.Sprintf("%s was added to %s.", doc.Name, pr.Name)); err != nil {
		return nil, err
	}
	p.logger.Info("document added", zap.String("project_id", projectID), zap.String("document_id", doc.ID))
	return &doc, nil
}
