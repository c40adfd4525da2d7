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
// Projects
// ============================================================

func validProjectStatus(s string) bool { return domain.ProjectStatus(s).Valid() }

// ListProjects is the admin project list.
func (p *Portal) ListProjects(ctx context.Context, q aggregate.ListQuery) ([]aggregate.ProjectListItem, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.ListProjects")
	defer span.End()

	if err := validListStatus(q.Status, validProjectStatus); err != nil {
		return nil, err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.WithClientNames(snap.FilterProjects(q)), nil
}

// ClientProjects lists the acting client's projects.
func (p *Portal) ClientProjects(ctx context.Context, actor domain.Actor, q aggregate.ListQuery) ([]aggregate.ProjectListItem, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.ClientProjects")
	defer span.End()

	if !actor.IsClient() {
		return nil, &domain.ErrForbidden{Action: "list client projects"}
	}
	if err := validListStatus(q.Status, validProjectStatus); err != nil {
		return nil, err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.WithClientNames(snap.FilterClientProjects(actor.ClientID(), q)), nil
}

// GetProject returns the project page. Clients only see their own projects.
func (p *Portal) GetProject(ctx context.Context, actor domain.Actor, id string) (*aggregate.ProjectDetail, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.GetProject")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", id))

	if actor.IsAnonymous() {
		return nil, &domain.ErrForbidden{Action: "view project"}
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	detail, ok := snap.ProjectDetail(id)
	if !ok || (actor.IsClient() && detail.ClientID != actor.ClientID()) {
		return nil, &domain.ErrNotFound{Resource: "project", ID: id}
	}
	return &detail, nil
}

// CreateProject creates a project and links it from its client.
func (p *Portal) CreateProject(ctx context.Context, req *domain.CreateProjectRequest) (*domain.Project, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.CreateProject")
	defer span.End()

	status := req.Status
	if status == "" {
		status = domain.ProjectPlanning
	}
	if err := firstErr(
		required("clientId", req.ClientID),
		required("name", req.Name),
		validProgress(req.Progress),
		validDate("startDate", req.StartDate),
		validDate("dueDate", req.DueDate),
		validAmount("budget", req.Budget, true),
	); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	client, err := p.store.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := p.checkTeam(ctx, req.TeamIDs); err != nil {
		return nil, err
	}

	milestones := make([]domain.Milestone, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		ms, err := p.newMilestone(domain.MilestoneRequest{Title: m.Title, Description: m.Description, Status: m.Status, DueDate: m.DueDate})
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, ms)
	}
	phases := make([]domain.Phase, 0, len(req.Phases))
	for _, ph := range req.Phases {
		if ph.ID == "" {
			ph.ID = uuid.NewString()
		}
		phases = append(phases, ph)
	}

	now := p.nowMillis()
	pr := &domain.Project{
		ClientID:    client.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    req.Category,
		Status:      status,
		Progress:    req.Progress,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		Budget:      req.Budget,
		TeamIDs:     dedupe(req.TeamIDs),
		Milestones:  milestones,
		Phases:      phases,
		Notes:       []domain.Note{},
		Documents:   []domain.Document{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Financial != nil {
		f, err := p.applyFinancial(nil, req.Financial)
		if err != nil {
			return nil, err
		}
		pr.Financial = f
	}

	id, err := p.store.CreateProject(ctx, pr)
	if err != nil {
		p.metrics.IncrStoreError(domain.CollectionProjects)
		return nil, fmt.Errorf("create project: %w", err)
	}
	pr.ID = id
	p.changedFor(ctx, client.ID, domain.CollectionProjects, domain.OpCreated, id)

	if !slices.Contains(client.ProjectIDs, id) {
		ids := append(slices.Clone(client.ProjectIDs), id)
		if err := p.store.UpdateClient(ctx, client.ID, map[string]any{"projectIds": ids, "updatedAt": now}); err != nil {
			p.metrics.IncrStoreError(domain.CollectionClients)
			return nil, fmt.Errorf("link project to client: %w", err)
		}
		p.changed(ctx, domain.CollectionClients, domain.OpUpdated, client.ID)
	}

	if err := p.notifyClient(ctx, client.ID, domain.NotifyProjectUpdate,
		"New project", fmt.Sprintf("%s has been added to your projects.", pr.Name)); err != nil {
		return nil, err
	}

	p.logger.Info("project created", zap.String("project_id", id), zap.String("client_id", client.ID))
	return pr, nil
}

func (p *Portal) checkTeam(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := snap.TeamMemberByID(id); !ok {
			return &domain.ErrValidation{Field: "teamIds", Message: fmt.Sprintf("unknown team member %q", id)}
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// UpdateProject applies a partial update. A status or progress change
// notifies the owning client.
func (p *Portal) UpdateProject(ctx context.Context, id string, patch *domain.ProjectPatch) (*domain.Project, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.UpdateProject")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", id))

	current, err := p.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.Name != nil {
		if err := required("name", *patch.Name); err != nil {
			return nil, err
		}
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Category != nil {
		fields["category"] = *patch.Category
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
		fields["status"] = *patch.Status
	}
	if patch.Progress != nil {
		if err := validProgress(*patch.Progress); err != nil {
			return nil, err
		}
		fields["progress"] = *patch.Progress
	}
	if patch.StartDate != nil {
		if err := validDate("startDate", *patch.StartDate); err != nil {
			return nil, err
		}
		fields["startDate"] = *patch.StartDate
	}
	if patch.DueDate != nil {
		if err := validDate("dueDate", *patch.DueDate); err != nil {
			return nil, err
		}
		fields["dueDate"] = *patch.DueDate
	}
	if patch.Budget != nil {
		if err := validAmount("budget", *patch.Budget, true); err != nil {
			return nil, err
		}
		fields["budget"] = *patch.Budget
	}
	if patch.TeamIDs != nil {
		if err := p.checkTeam(ctx, *patch.TeamIDs); err != nil {
			return nil, err
		}
		fields["teamIds"] = dedupe(*patch.TeamIDs)
	}
	if patch.Phases != nil {
		phases := slices.Clone(*patch.Phases)
		for i := range phases {
			if phases[i].ID == "" {
				phases[i].ID = uuid.NewString()
			}
		}
		fields["phases"] = phases
	}
	if len(fields) == 0 {
		return current, nil
	}
	fields["updatedAt"] = p.nowMillis()

	if err := p.store.UpdateProject(ctx, id, fields); err != nil {
		p.metrics.IncrStoreError(domain.CollectionProjects)
		return nil, fmt.Errorf("update project: %w", err)
	}
	p.changedFor(ctx, current.ClientID, domain.CollectionProjects, domain.OpUpdated, id)

	statusChanged := patch.Status != nil && *patch.Status != current.Status
	progressChanged := patch.Progress != nil && *patch.Progress != current.Progress
	if statusChanged || progressChanged {
		status := current.Status
		if patch.Status != nil {
			status = *patch.Status
		}
		progress := current.Progress
		if patch.Progress != nil {
			progress = *patch.Progress
		}
		if err := p.notifyClient(ctx, current.ClientID, domain.NotifyProjectUpdate,
			"Project updated", fmt.Sprintf("%s is now %s (%d%% complete).", current.Name, status, progress)); err != nil {
			return nil, err
		}
	}

	return p.store.GetProject(ctx, id)
}

// DeleteProject removes a project and unlinks it from its client. Invoices
// billed against it block the delete unless the policy cascades.
func (p *Portal) DeleteProject(ctx context.Context, id string) error {
	ctx, span := portalTracer.Start(ctx, "Portal.DeleteProject")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", id))

	pr, err := p.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}
	invoices := snap.InvoicesByProjectID(id)
	if len(invoices) > 0 && p.policy == DeleteBlock {
		return &domain.ErrConflict{Message: fmt.Sprintf("project has %d invoice(s); delete them first", len(invoices))}
	}
	for _, inv := range invoices {
		if err := p.store.DeleteInvoice(ctx, inv.ID); err != nil {
			p.metrics.IncrStoreError(domain.CollectionInvoices)
			return fmt.Errorf("delete invoice %s: %w", inv.ID, err)
		}
		p.changedFor(ctx, inv.ClientID, domain.CollectionInvoices, domain.OpDeleted, inv.ID)
	}

	if err := p.store.DeleteProject(ctx, id); err != nil {
		p.metrics.IncrStoreError(domain.CollectionProjects)
		return fmt.Errorf("delete project: %w", err)
	}
	p.changedFor(ctx, pr.ClientID, domain.CollectionProjects, domain.OpDeleted, id)

	if c, ok := snap.ClientByID(pr.ClientID); ok && slices.Contains(c.ProjectIDs, id) {
		ids := slices.DeleteFunc(slices.Clone(c.ProjectIDs), func(x string) bool { return x == id })
		if err := p.store.UpdateClient(ctx, c.ID, map[string]any{"projectIds": ids, "updatedAt": p.nowMillis()}); err != nil {
			p.metrics.IncrStoreError(domain.CollectionClients)
			return fmt.Errorf("unlink project from client: %w", err)
		}
		p.changed(ctx, domain.CollectionClients, domain.OpUpdated, c.ID)
	}

	p.logger.Info("project deleted", zap.String("project_id", id))
	return nil
}
