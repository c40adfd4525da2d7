package aggregate

import (
	"cmp"
	"slices"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

// NotificationsFor returns a's notifications, newest first. Ties on
// createdAt keep reverse store order, which is creation order.
func NotificationsFor(all []domain.Notification, a domain.Actor) []domain.Notification {
	out := make([]domain.Notification, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].BelongsTo(a) {
			out = append(out, all[i])
		}
	}
	slices.SortStableFunc(out, func(x, y domain.Notification) int {
		return cmp.Compare(y.CreatedAt, x.CreatedAt)
	})
	return out
}

// UnreadCount counts a's unread notifications.
func UnreadCount(all []domain.Notification, a domain.Actor) int {
	n := 0
	for _, notif := range all {
		if notif.BelongsTo(a) && !notif.Read {
			n++
		}
	}
	return n
}

// UnreadIDs lists the ids of a's unread notifications, in store order.
func UnreadIDs(all []domain.Notification, a domain.Actor) []string {
	ids := make([]string, 0)
	for _, n := range all {
		if n.BelongsTo(a) && !n.Read {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
