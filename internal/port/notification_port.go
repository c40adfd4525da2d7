package port

import (
	"context"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

// NotificationStore handles notification records and their read flag.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) (string, error)
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	// MarkNotificationsRead flips read on the given ids in one write.
	MarkNotificationsRead(ctx context.Context, ids []string) error
	DeleteNotification(ctx context.Context, id string) error
}
