package domain_test

import (
	"testing"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChange_VisibleTo(t *testing.T) {
	acme, err := domain.ClientActor("acme")
	require.NoError(t, err)

	cases := []struct {
		change domain.Change
		admin  bool
		client bool
	}{
		{domain.Change{Collection: domain.CollectionProjects, Owner: "acme"}, true, true},
		{domain.Change{Collection: domain.CollectionProjects, Owner: "globex"}, true, false},
		{domain.Change{Collection: domain.CollectionNotifications, Owner: domain.AdminUserID}, true, false},
		{domain.Change{Collection: domain.CollectionInvoices, Owner: "acme"}, true, true},
		{domain.Change{Collection: domain.CollectionClients, Owner: "acme"}, true, false},
		{domain.Change{Collection: domain.CollectionTeamMembers}, true, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.admin, tc.change.VisibleTo(domain.AdminActor()), "%+v", tc.change)
		assert.Equal(t, tc.client, tc.change.VisibleTo(acme), "%+v", tc.change)
		assert.False(t, tc.change.VisibleTo(domain.Actor{}), "%+v", tc.change)
	}
}
