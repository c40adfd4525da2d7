package aggregate_test

import (
	"testing"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsFor_ScopedAndNewestFirst(t *testing.T) {
	client, err := domain.ClientActor("c-1")
	require.NoError(t, err)
	all := []domain.Notification{
		{ID: "n1", UserID: "c-1", CreatedAt: 1},
		{ID: "n2", UserID: "admin", CreatedAt: 2},
		{ID: "n3", UserID: "c-1", CreatedAt: 3, Read: true},
	}

	got := aggregate.NotificationsFor(all, client)
	require.Len(t, got, 2)
	assert.Equal(t, "n3", got[0].ID)
	assert.Equal(t, "n1", got[1].ID)

	assert.Equal(t, 1, aggregate.UnreadCount(all, client))
	assert.Equal(t, 1, aggregate.UnreadCount(all, domain.AdminActor()))
	assert.Equal(t, []string{"n1"}, aggregate.UnreadIDs(all, client))
	assert.Equal(t, 0, aggregate.UnreadCount(all, domain.Actor{}))
}

func TestNotificationsFor_TiesKeepCreationOrder(t *testing.T) {
	all := []domain.Notification{
		{ID: "n1", UserID: "admin", CreatedAt: 5},
		{ID: "n2", UserID: "admin", CreatedAt: 5},
	}
	got := aggregate.NotificationsFor(all, domain.AdminActor())
	require.Len(t, got, 2)
	assert.Equal(t, "n2", got[0].ID)
}
