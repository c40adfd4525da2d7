package domain_test

import (
	"testing"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientActor_RejectsSentinel(t *testing.T) {
	_, err := domain.ClientActor(domain.AdminUserID)
	require.Error(t, err)

	_, err = domain.ClientActor("")
	require.Error(t, err)
}

func TestActorFromUserID(t *testing.T) {
	admin, err := domain.ActorFromUserID("admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "admin", admin.UserID())

	client, err := domain.ActorFromUserID("c-1")
	require.NoError(t, err)
	assert.True(t, client.IsClient())
	assert.Equal(t, "c-1", client.ClientID())
	assert.Equal(t, "client", client.Role())
}

func TestNotification_BelongsTo(t *testing.T) {
	client, _ := domain.ClientActor("c-1")
	n := domain.Notification{UserID: "c-1"}

	assert.True(t, n.BelongsTo(client))
	assert.False(t, n.BelongsTo(domain.AdminActor()))
	assert.False(t, n.BelongsTo(domain.Actor{}))
}

func TestNormalizeAccessCode(t *testing.T) {
	code := domain.NormalizeAccessCode("  prj-2025-test ")
	assert.Equal(t, "PRJ-2025-TEST", code)
	assert.NoError(t, domain.ValidateAccessCode(code))
	assert.Error(t, domain.ValidateAccessCode("BAD/CODE"))
	assert.Error(t, domain.ValidateAccessCode("AB"))
}
