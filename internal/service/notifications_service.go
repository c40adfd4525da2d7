package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Notifications
// ============================================================

// Notifications lists the actor's notifications, newest first.
func (p *Portal) Notifications(ctx context.Context, actor domain.Actor) ([]domain.Notification, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.Notifications")
	defer span.End()

	if actor.IsAnonymous() {
		return nil, &domain.ErrForbidden{Action: "list notifications"}
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.NotificationsFor(snap.Notifications, actor), nil
}

// UnreadCount counts the actor's unread notifications.
func (p *Portal) UnreadCount(ctx context.Context, actor domain.Actor) (int, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.UnreadCount")
	defer span.End()

	if actor.IsAnonymous() {
		return 0, &domain.ErrForbidden{Action: "count notifications"}
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return aggregate.UnreadCount(snap.Notifications, actor), nil
}

// ownNotification loads a notification and checks it is addressed to actor.
// Someone else's notification is reported as not found.
func (p *Portal) ownNotification(ctx context.Context, actor domain.Actor, id string) (*domain.Notification, error) {
	n, err := p.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.BelongsTo(actor) {
		return nil, &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	return n, nil
}

// MarkAsRead flips one notification to read. Marking an already read
// notification succeeds without writing.
func (p *Portal) MarkAsRead(ctx context.Context, actor domain.Actor, id string) error {
	ctx, span := portalTracer.Start(ctx, "Portal.MarkAsRead")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", id))

	n, err := p.ownNotification(ctx, actor, id)
	if err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	if err := p.store.MarkNotificationRead(ctx, id); err != nil {
		p.metrics.IncrStoreError(domain.CollectionNotifications)
		return fmt.Errorf("mark notification read: %w", err)
	}
	p.changedFor(ctx, n.UserID, domain.CollectionNotifications, domain.OpUpdated, id)
	return nil
}

// MarkAllAsRead flips every unread notification of the actor, and only
// those, in one write. It returns how many were flipped.
func (p *Portal) MarkAllAsRead(ctx context.Context, actor domain.Actor) (int, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.MarkAllAsRead")
	defer span.End()

	if actor.IsAnonymous() {
		return 0, &domain.ErrForbidden{Action: "mark notifications read"}
	}
	mine, err := p.store.ListNotificationsByUser(ctx, actor.UserID())
	if err != nil {
		p.metrics.IncrStoreError(domain.CollectionNotifications)
		return 0, fmt.Errorf("list notifications: %w", err)
	}
	ids := aggregate.UnreadIDs(mine, actor)
	if len(ids) == 0 {
		return 0, nil
	}
	if err := p.store.MarkNotificationsRead(ctx, ids); err != nil {
		p.metrics.IncrStoreError(domain.CollectionNotifications)
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	for _, id := range ids {
		p.changedFor(ctx, actor.UserID(), domain.CollectionNotifications, domain.OpUpdated, id)
	}
	p.logger.Debug("notifications marked read", zap.String("user_id", actor.UserID()), zap.Int("count", len(ids)))
	return len(ids), nil
}

// DeleteNotification removes one of the actor's notifications.
func (p *Portal) DeleteNotification(ctx context.Context, actor domain.Actor, id string) error {
	ctx, span := portalTracer.Start(ctx, "Portal.DeleteNotification")
	defer span.End()

	n, err := p.ownNotification(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := p.store.DeleteNotification(ctx, id); err != nil {
		p.metrics.IncrStoreError(domain.CollectionNotifications)
		return fmt.Errorf("delete notification: %w", err)
	}
	p.changedFor(ctx, n.UserID, domain.CollectionNotifications, domain.OpDeleted, id)
	return nil
}

// ============================================================
// Dashboards
// ============================================================

func (p *Portal) AdminDashboard(ctx context.Context) (*aggregate.AdminOverview, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.AdminDashboard")
	defer span.End()

	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ov := snap.AdminOverview(p.now())
	return &ov, nil
}

func (p *Portal) ClientDashboard(ctx context.Context, actor domain.Actor) (*aggregate.ClientOverview, error) {
	ctx, span := portalTracer.Start(ctx, "Portal.ClientDashboard")
	defer span.End()

	if !actor.IsClient() {
		return nil, &domain.ErrForbidden{Action: "view client dashboard"}
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ov, ok := snap.ClientOverview(actor.ClientID())
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: actor.ClientID()}
	}
	return &ov, nil
}
