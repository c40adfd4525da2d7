package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Team
// ============================================================

// ListTeam returns the team with projectCount derived from assignments.
func (p *Portal) ListTeam(ctx context.Context) ([]domain.TeamMember, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.ListTeam")
	defer span.End()

	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.TeamWithProjectCounts(), nil
}

func (p *Portal) CreateTeamMember(ctx context.Context, req *domain.CreateTeamMemberRequest) (*domain.TeamMember, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.CreateTeamMember")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if err := firstErr(required("name", req.Name), validEmail("email", email)); err != nil {
		return nil, err
	}
	m := &domain.TeamMember{
		Name:      strings.TrimSpace(req.Name),
		Role:      strings.TrimSpace(req.Role),
		Email:     email,
		CreatedAt: p.nowMillis(),
	}
	id, err := p.store.CreateTeamMember(ctx, m)
	if err != nil {
		p.metrics.IncrStoreError(domain.CollectionTeamMembers)
		return nil, fmt.Errorf("create team member: %w", err)
	}
	m.ID = id
	p.changed(ctx, domain.CollectionTeamMembers, domain.OpCreated, id)
	return m, nil
}

func (p *Portal) UpdateTeamMember(ctx context.Context, id string, patch *domain.TeamMemberPatch) (*domain.TeamMember, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.UpdateTeamMember")
	defer span.End()

	fields := map[string]any{}
	if patch.Name != nil {
		if err := required("name", *patch.Name); err != nil {
			return nil, err
		}
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Role != nil {
		fields["role"] = strings.TrimSpace(*patch.Role)
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if err := validEmail("email", email); err != nil {
			return nil, err
		}
		fields["email"] = email
	}
	if len(fields) > 0 {
		if err := p.store.UpdateTeamMember(ctx, id, fields); err != nil {
			p.metrics.IncrStoreError(domain.CollectionTeamMembers)
			return nil, fmt.Errorf("update team member: %w", err)
		}
		p.changed(ctx, domain.CollectionTeamMembers, domain.OpUpdated, id)
	}
	return p.store.GetTeamMember(ctx, id)
}

// DeleteTeamMember removes a member and unassigns them from every project.
func (p *Portal) DeleteTeamMember(ctx context.Context, id string) error {
	ctx, span := portalTracer.Start(ctx, "Portal.DeleteTeamMember")
	defer span.End()

	if _, err := p.store.GetTeamMember(ctx, id); err != nil {
		return err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, pr := range snap.Projects {
		if !slices.Contains(pr.TeamIDs, id) {
			continue
		}
		ids := slices.DeleteFunc(slices.Clone(pr.TeamIDs), func(x string) bool { return x == id })
		if err := p.writeProject(ctx, &pr, map[string]any{"teamIds": ids}); err != nil {
			return err
		}
	}
	if err := p.store.DeleteTeamMember(ctx, id); err != nil {
		p.metrics.IncrStoreError(domain.CollectionTeamMembers)
		return fmt.Errorf("delete team member: %w", err)
	}
	p.changed(ctx, domain.CollectionTeamMembers, domain.OpDeleted, id)
	p.logger.Info("team member deleted", zap.String("member_id", id))
	return nil
}

// RecountTeam writes the derived projectCount back to every member whose
// stored value drifted. It returns how many records changed.
func (p *Portal) RecountTeam(ctx context.Context) (int, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.RecountTeam")
	defer span.End()

	snap, err := p.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	counts := snap.TeamProjectCounts()
	updated := 0
	for _, m := range snap.Team {
		if m.ProjectCount == counts[m.ID] {
			continue
		}
		if err := p.store.UpdateTeamMember(ctx, m.ID, map[string]any{"projectCount": counts[m.ID]}); err != nil {
			p.metrics.IncrStoreError(domain.CollectionTeamMembers)
			return updated, fmt.Errorf("update team member %s: %w", m.ID, err)
		}
		p.changed(ctx, domain.CollectionTeamMembers, domain.OpUpdated, m.ID)
		updated++
	}
	p.logger.Info("team recounted", zap.Int("updated", updated), zap.Int("members", len(snap.Team)))
	return updated, nil
}
