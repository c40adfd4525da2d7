package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Invoices
// ============================================================

func validPaymentStatus(s string) bool { return domain.PaymentStatus(s).Valid() }

func formatMoney(amount float64, currency string) string {
	if currency == "" {
		currency = aggregate.DefaultCurrency
	}
	return decimal.NewFromFloat(amount).StringFixed(2) + " " + currency
}

// ListInvoices is the admin invoice list.
func (p *Portal) ListInvoices(ctx context.Context, q aggregate.ListQuery) ([]aggregate.InvoiceListItem, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.ListInvoices")
	defer span.End()

	if err := validListStatus(q.Status, validPaymentStatus); err != nil {
		return nil, err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.WithInvoiceNames(snap.FilterInvoices(q), p.now()), nil
}

// ClientInvoices lists the acting client's invoices.
func (p *Portal) ClientInvoices(ctx context.Context, actor domain.Actor, q aggregate.ListQuery) ([]aggregate.InvoiceListItem, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.ClientInvoices")
	defer span.End()

	if !actor.IsClient() {
		return nil, &domain.ErrForbidden{Action: "list client invoices"}
	}
	if err := validListStatus(q.Status, validPaymentStatus); err != nil {
		return nil, err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.WithInvoiceNames(snap.FilterClientInvoices(actor.ClientID(), q), p.now()), nil
}

// CreateInvoice bills a client for one of their projects and notifies them.
func (p *Portal) CreateInvoice(ctx context.Context, req *domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.CreateInvoice")
	defer span.End()

	status := req.Status
	if status == "" {
		status = domain.PaymentPending
	}
	issued := req.IssuedDate
	if issued == "" {
		issued = p.today()
	}
	if err := firstErr(
		required("clientId", req.ClientID),
		required("projectId", req.ProjectID),
		validAmount("amount", req.Amount, false),
		validDate("issuedDate", issued),
		validDate("dueDate", req.DueDate),
	); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	if _, err := p.store.GetClient(ctx, req.ClientID); err != nil {
		return nil, err
	}
	pr, err := p.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if pr.ClientID != req.ClientID {
		return nil, &domain.ErrValidation{Field: "projectId", Message: "project belongs to another client"}
	}

	inv := &domain.Invoice{
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		Amount:      req.Amount,
		Status:      status,
		IssuedDate:  issued,
		DueDate:     req.DueDate,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   p.nowMillis(),
	}
	if status == domain.PaymentPaid {
		inv.PaidAt = inv.CreatedAt
	}
	id, err := p.store.CreateInvoice(ctx, inv)
	if err != nil {
		p.metrics.IncrStoreError(domain.CollectionInvoices)
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	inv.ID = id
	p.changedFor(ctx, inv.ClientID, domain.CollectionInvoices, domain.OpCreated, id)

	if status == domain.PaymentPaid {
		if err := p.applyPayment(ctx, pr.ID, inv.Amount); err != nil {
			return nil, err
		}
	}

	currency := ""
	if pr.Financial != nil {
		currency = pr.Financial.Currency
	}
	desc := fmt.Sprintf("Invoice of %s for %s", formatMoney(inv.Amount, currency), pr.Name)
	if inv.DueDate != "" {
		desc += ", due " + inv.DueDate
	}
	if err := p.notifyClient(ctx, inv.ClientID, domain.NotifyPayment, "New invoice", desc+"."); err != nil {
		return nil, err
	}

	p.logger.Info("invoice created", zap.String("invoice_id", id), zap.String("project_id", pr.ID))
	return inv, nil
}

// SetInvoiceStatus changes an invoice's status. Moving into or out of Paid
// adjusts the project's totalPaid.
func (p *Portal) SetInvoiceStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Invoice, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.SetInvoiceStatus")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id), attribute.String("invoice.status", string(status)))

	if !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	defer p.locks.Lock(invoiceKey(id))()
	inv, err := p.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == status {
		return inv, nil
	}
	return p.transitionInvoice(ctx, inv, status)
}

// PayInvoice lets the owning client settle a pending or overdue invoice.
func (p *Portal) PayInvoice(ctx context.Context, actor domain.Actor, id string) (*domain.Invoice, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.PayInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	if !actor.IsClient() {
		return nil, &domain.ErrForbidden{Action: "pay invoice"}
	}
	defer p.locks.Lock(invoiceKey(id))()
	inv, err := p.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.ClientID != actor.ClientID() {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	if inv.Status == domain.PaymentPaid {
		return nil, &domain.ErrConflict{Message: "invoice already paid"}
	}

	updated, err := p.transitionInvoice(ctx, inv, domain.PaymentPaid)
	if err != nil {
		return nil, err
	}

	clientName := inv.ClientID
	if c, err := p.store.GetClient(ctx, inv.ClientID); err == nil {
		clientName = c.DisplayName()
	}
	if err := p.notify(ctx, domain.AdminActor(), domain.NotifyPayment, "Payment received",
		fmt.Sprintf("%s paid invoice %s (%s).", clientName, inv.ID, formatMoney(inv.Amount, ""))); err != nil {
		return nil, err
	}
	return updated, nil
}

func (p *Portal) transitionInvoice(ctx context.Context, inv *domain.Invoice, status domain.PaymentStatus) (*domain.Invoice, error) {
	fields := map[string]any{"status": status}
	wasPaid := inv.Status == domain.PaymentPaid
	nowPaid := status == domain.PaymentPaid
	if nowPaid {
		inv.PaidAt = p.nowMillis()
		fields["paidAt"] = inv.PaidAt
	} else if wasPaid {
		inv.PaidAt = 0
		fields["paidAt"] = nil
	}
	if err := p.store.UpdateInvoice(ctx, inv.ID, fields); err != nil {
		p.metrics.IncrStoreError(domain.CollectionInvoices)
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	inv.Status = status
	p.changedFor(ctx, inv.ClientID, domain.CollectionInvoices, domain.OpUpdated, inv.ID)

	if wasPaid != nowPaid {
		amount := inv.Amount
		if wasPaid {
			amount = -amount
		}
		err := p.applyPayment(ctx, inv.ProjectID, amount)
		var nf *domain.ErrNotFound
		switch {
		case errors.As(err, &nf):
			p.logger.Warn("invoice project missing, totals not adjusted",
				zap.String("invoice_id", inv.ID),
				zap.String("project_id", inv.ProjectID),
			)
		case err != nil:
			return nil, err
		}
	}
	return inv, nil
}

// applyPayment moves a project's totalPaid by amount. The project is re-read
// under its lock so concurrent payments add up. Projects without a payment
// plan have nothing to adjust.
func (p *Portal) applyPayment(ctx context.Context, projectID string, amount float64) error {
	defer p.locks.Lock(projectKey(projectID))()
	pr, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if pr.Financial == nil {
		return nil
	}
	f := *pr.Financial
	aggregate.AddPayment(&f, amount)
	f.UpdatedAt = p.nowMillis()
	return p.writeProject(ctx, pr, map[string]any{"financial": &f})
}

// DeleteInvoice removes an invoice.
func (p *Portal) DeleteInvoice(ctx context.Context, id string) error {
	ctx, span := portalTracer.Start(ctx, "Portal.DeleteInvoice")
	defer span.End()

	inv, err := p.store.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if err := p.store.DeleteInvoice(ctx, id); err != nil {
		p.metrics.IncrStoreError(domain.CollectionInvoices)
		return fmt.Errorf("delete invoice: %w", err)
	}
	p.changedFor(ctx, inv.ClientID, domain.CollectionInvoices, domain.OpDeleted, id)
	p.logger.Info("invoice deleted", zap.String("invoice_id", id))
	return nil
}
