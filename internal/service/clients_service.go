package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Clients (admin)
// ============================================================

func (p *Portal) ListClients(ctx context.Context, q aggregate.ListQuery) ([]aggregate.ClientListItem, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.ListClients")
	defer span.End()

	if err := validListStatus(q.Status, func(s string) bool { return domain.ClientStatus(s).Valid() }); err != nil {
		return nil, err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.WithClientTotals(snap.FilterClients(q)), nil
}

// GetClient returns the client with its projects, invoices and totals.
func (p *Portal) GetClient(ctx context.Context, id string) (*aggregate.ClientOverview, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ov, ok := snap.ClientOverview(id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return &ov, nil
}

// CreateClient stores the client and claims its access code.
func (p *Portal) CreateClient(ctx context.Context, req *domain.CreateClientRequest) (*domain.Client, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.CreateClient")
	defer span.End()

	code := domain.NormalizeAccessCode(req.AccessCode)
	status := req.Status
	if status == "" {
		status = domain.ClientActive
	}
	if err := firstErr(
		required("name", req.Name),
		required("email", req.Email),
		validEmail("email", strings.TrimSpace(req.Email)),
		domain.ValidateAccessCode(code),
	); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	if err := p.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}

	now := p.nowMillis()
	c := &domain.Client{
		Name:        strings.TrimSpace(req.Name),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		AccessCode:  code,
		Status:      status,
		ProjectIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := p.store.CreateClient(ctx, c)
	if err != nil {
		p.metrics.IncrStoreError(domain.CollectionClients)
		return nil, fmt.Errorf("create client: %w", err)
	}
	c.ID = id

	if err := p.claimCode(ctx, code, id); err != nil {
		// a client without a code cannot log in; take the record back out
		if delErr := p.store.DeleteClient(ctx, id); delErr != nil {
			p.logger.Error("create client: rollback failed",
				zap.String("client_id", id),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	p.changed(ctx, domain.CollectionClients, domain.OpCreated, id)
	p.changed(ctx, domain.CollectionAccessCodes, domain.OpCreated, code)
	p.logger.Info("client created", zap.String("client_id", id))
	return c, nil
}

// claimCode maps code to owner. A code taken between ensureCodeFree and
// here is reported as the same conflict.
func (p *Portal) claimCode(ctx context.Context, code, owner string) error {
	err := p.store.ClaimAccessCode(ctx, code, owner)
	var conflict *domain.ErrConflict
	switch {
	case err == nil:
		return nil
	case errors.As(err, &conflict):
		return err
	}
	p.metrics.IncrStoreError(domain.CollectionAccessCodes)
	return fmt.Errorf("store access code: %w", err)
}

// ensureCodeFree fails when code already maps to a client other than owner.
func (p *Portal) ensureCodeFree(ctx context.Context, code, owner string) error {
	existing, found, err := p.store.LookupAccessCode(ctx, code)
	if err != nil {
		p.metrics.IncrStoreError(domain.CollectionAccessCodes)
		return fmt.Errorf("check access code: %w", err)
	}
	if found && existing != owner {
		return &domain.ErrConflict{Message: "access code already in use"}
	}
	return nil
}

// UpdateClient applies a partial update. Changing the access code moves the
// login mapping: the new code is claimed before the old one is released.
func (p *Portal) UpdateClient(ctx context.Context, id string, patch *domain.ClientPatch) (*domain.Client, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	current, err := p.store.GetClient(ctx, id)
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
	if patch.CompanyName != nil {
		fields["companyName"] = strings.TrimSpace(*patch.CompanyName)
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if err := firstErr(required("email", email), validEmail("email", email)); err != nil {
			return nil, err
		}
		fields["email"] = email
	}
	if patch.Phone != nil {
		fields["phone"] = strings.TrimSpace(*patch.Phone)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
		fields["status"] = *patch.Status
	}

	oldCode := current.AccessCode
	newCode := ""
	if patch.AccessCode != nil {
		code := domain.NormalizeAccessCode(*patch.AccessCode)
		if err := domain.ValidateAccessCode(code); err != nil {
			return nil, err
		}
		if code != oldCode {
			if err := p.ensureCodeFree(ctx, code, id); err != nil {
				return nil, err
			}
			newCode = code
			fields["accessCode"] = code
		}
	}
	if len(fields) == 0 {
		return current, nil
	}
	fields["updatedAt"] = p.nowMillis()

	if newCode != "" {
		if err := p.claimCode(ctx, newCode, id); err != nil {
			return nil, err
		}
		p.changed(ctx, domain.CollectionAccessCodes, domain.OpCreated, newCode)
	}
	if err := p.store.UpdateClient(ctx, id, fields); err != nil {
		p.metrics.IncrStoreError(domain.CollectionClients)
		return nil, fmt.Errorf("update client: %w", err)
	}
	p.changed(ctx, domain.CollectionClients, domain.OpUpdated, id)

	if newCode != "" && oldCode != "" {
		if err := p.store.DeleteAccessCode(ctx, oldCode); err != nil {
			p.metrics.IncrStoreError(domain.CollectionAccessCodes)
			return nil, fmt.Errorf("release old access code: %w", err)
		}
		p.changed(ctx, domain.CollectionAccessCodes, domain.OpDeleted, oldCode)
	}

	p.logger.Info("client updated", zap.String("client_id", id), zap.Int("fields", len(fields)-1))
	return p.store.GetClient(ctx, id)
}

// DeleteClient removes a client. confirmName must match the client's name.
// With the block policy a client that still has projects or invoices is
// refused; with cascade those go first, then notifications and access code.
func (p *Portal) DeleteClient(ctx context.Context, id, confirmName string) error {
	ctx, span := portalTracer.Start(ctx, "Portal.DeleteClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id), attribute.String("policy", string(p.policy)))

	c, err := p.store.GetClient(ctx, id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(confirmName) != c.Name {
		return &domain.ErrValidation{Field: "confirmName", Message: "must match the client name"}
	}

	snap, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}
	projects := snap.ProjectsByClientID(id)
	invoices := snap.InvoicesByClientID(id)

	if p.policy == DeleteBlock && (len(projects) > 0 || len(invoices) > 0) {
		return &domain.ErrConflict{Message: fmt.Sprintf(
			"client has %d project(s) and %d invoice(s); delete them first", len(projects), len(invoices))}
	}

	for _, inv := range invoices {
		if err := p.store.DeleteInvoice(ctx, inv.ID); err != nil {
			p.metrics.IncrStoreError(domain.CollectionInvoices)
			return fmt.Errorf("delete invoice %s: %w", inv.ID, err)
		}
		p.changedFor(ctx, id, domain.CollectionInvoices, domain.OpDeleted, inv.ID)
	}
	for _, pr := range projects {
		if err := p.store.DeleteProject(ctx, pr.ID); err != nil {
			p.metrics.IncrStoreError(domain.CollectionProjects)
			return fmt.Errorf("delete project %s: %w", pr.ID, err)
		}
		p.changedFor(ctx, id, domain.CollectionProjects, domain.OpDeleted, pr.ID)
	}
	if p.policy == DeleteCascade {
		for _, n := range snap.Notifications {
			if n.UserID != id {
				continue
			}
			if err := p.store.DeleteNotification(ctx, n.ID); err != nil {
				p.metrics.IncrStoreError(domain.CollectionNotifications)
				return fmt.Errorf("delete notification %s: %w", n.ID, err)
			}
			p.changedFor(ctx, n.UserID, domain.CollectionNotifications, domain.OpDeleted, n.ID)
		}
	}

	if c.AccessCode != "" {
		if err := p.store.DeleteAccessCode(ctx, c.AccessCode); err != nil {
			p.metrics.IncrStoreError(domain.CollectionAccessCodes)
			return fmt.Errorf("delete access code: %w", err)
		}
		p.changed(ctx, domain.CollectionAccessCodes, domain.OpDeleted, c.AccessCode)
	}
	if err := p.store.DeleteClient(ctx, id); err != nil {
		p.metrics.IncrStoreError(domain.CollectionClients)
		return fmt.Errorf("delete client: %w", err)
	}
	p.changed(ctx, domain.CollectionClients, domain.OpDeleted, id)

	p.logger.Info("client deleted",
		zap.String("client_id", id),
		zap.Int("projects", len(projects)),
		zap.Int("invoices", len(invoices)),
	)
	return nil
}
