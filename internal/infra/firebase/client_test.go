package firebase_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/infra/firebase"
	"github.com/boddenberg/client-portal-go/internal/infra/firebase/firebasetest"
	"github.com/boddenberg/client-portal-go/internal/infra/resilience"
	"github.com/boddenberg/client-portal-go/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var _ port.PortalStore = (*firebase.Client)(nil)

func newTestClient(t *testing.T, token string) (*firebase.Client, *firebasetest.Server) {
	t.Helper()
	srv := firebasetest.NewServer(token)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	cb := resilience.NewCircuitBreaker("firebase-test", firebase.IsExpectedFailure)
	c := firebase.NewClient(&http.Client{Timeout: 5 * time.Second}, srv.URL, token, cb, cfg, zap.NewNop())
	return c, srv
}

func TestClient_CreateListGet(t *testing.T) {
	c, _ := newTestClient(t, "secret")
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"Zed", "Amy", "Kim"} {
		id, err := c.CreateClient(ctx, &domain.Client{Name: name, AccessCode: "CODE-" + name, Status: domain.ClientActive})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	clients, err := c.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 3)
	// creation order, not name order
	assert.Equal(t, []string{"Zed", "Amy", "Kim"}, []string{clients[0].Name, clients[1].Name, clients[2].Name})
	assert.Equal(t, ids[0], clients[0].ID)

	got, err := c.GetClient(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "Amy", got.Name)
	assert.Equal(t, ids[1], got.ID)
}

func TestClient_EmptyCollection(t *testing.T) {
	c, _ := newTestClient(t, "")

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestClient_GetMissing(t *testing.T) {
	c, _ := newTestClient(t, "")

	_, err := c.GetInvoice(context.Background(), "nope")
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "invoice", nf.Resource)
}

func TestClient_UpdateRequiresExistingRecord(t *testing.T) {
	c, srv := newTestClient(t, "")
	ctx := context.Background()

	err := c.UpdateProject(ctx, "ghost", map[string]any{"name": "x"})
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Nil(t, srv.Value("projects/ghost"), "update must not create the record")

	id, err := c.CreateProject(ctx, &domain.Project{Name: "Site", Status: domain.ProjectPlanning})
	require.NoError(t, err)
	require.NoError(t, c.UpdateProject(ctx, id, map[string]any{"progress": 40}))

	p, err := c.GetProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 40, p.Progress)
	assert.Equal(t, "Site", p.Name)
}

func TestClient_Delete(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	id, err := c.CreateTeamMember(ctx, &domain.TeamMember{Name: "Ana"})
	require.NoError(t, err)
	require.NoError(t, c.DeleteTeamMember(ctx, id))
	require.NoError(t, c.DeleteTeamMember(ctx, id), "deleting twice is fine")

	members, err := c.ListTeamMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestClient_NotificationsByUserAndMarkRead(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	var mine []string
	for _, user := range []string{"admin", "c1", "admin", "c2"} {
		id, err := c.CreateNotification(ctx, &domain.Notification{UserID: user, Type: domain.NotifySystem, Title: "t"})
		require.NoError(t, err)
		if user == "admin" {
			mine = append(mine, id)
		}
	}

	admin, err := c.ListNotificationsByUser(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, admin, 2)
	assert.Equal(t, mine, []string{admin[0].ID, admin[1].ID})

	require.NoError(t, c.MarkNotificationsRead(ctx, mine))
	admin, err = c.ListNotificationsByUser(ctx, "admin")
	require.NoError(t, err)
	for _, n := range admin {
		assert.True(t, n.Read)
	}

	others, err := c.ListNotificationsByUser(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.False(t, others[0].Read)

	require.NoError(t, c.MarkNotificationRead(ctx, others[0].ID))
	n, err := c.GetNotification(ctx, others[0].ID)
	require.NoError(t, err)
	assert.True(t, n.Read)
}

func TestClient_MarkReadAfterDeleteLeavesNoNotification(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	kept, err := c.CreateNotification(ctx, &domain.Notification{UserID: "c1", Type: domain.NotifySystem, Title: "kept"})
	require.NoError(t, err)
	gone, err := c.CreateNotification(ctx, &domain.Notification{UserID: "c1", Type: domain.NotifySystem, Title: "gone"})
	require.NoError(t, err)

	// the delete lands between listing the unread ids and the bulk update
	require.NoError(t, c.DeleteNotification(ctx, gone))
	require.NoError(t, c.MarkNotificationsRead(ctx, []string{kept, gone}))

	all, err := c.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, kept, all[0].ID)
	assert.True(t, all[0].Read)

	_, err = c.GetNotification(ctx, gone)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestClient_AccessCodes(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	_, found, err := c.LookupAccessCode(ctx, "PRJ-2025-NONE")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.ClaimAccessCode(ctx, "PRJ-2025-TEST", "client-1"))
	require.NoError(t, c.ClaimAccessCode(ctx, "PRJ-2025-TEST", "client-1"))
	var conflict *domain.ErrConflict
	require.ErrorAs(t, c.ClaimAccessCode(ctx, "PRJ-2025-TEST", "client-2"), &conflict)

	id, found, err := c.LookupAccessCode(ctx, "PRJ-2025-TEST")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "client-1", id)

	require.NoError(t, c.DeleteAccessCode(ctx, "PRJ-2025-TEST"))
	_, found, err = c.LookupAccessCode(ctx, "PRJ-2025-TEST")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_ClaimAccessCode_Concurrent(t *testing.T) {
	c, srv := newTestClient(t, "")
	ctx := context.Background()

	const claimers = 6
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, claimers)
	)
	for i := 0; i < claimers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = c.ClaimAccessCode(ctx, "PRJ-2025-RACE", fmt.Sprintf("client-%d", i))
		}()
	}
	close(start)
	wg.Wait()

	var winner string
	for i, err := range errs {
		if err == nil {
			require.Empty(t, winner, "two claims won the same code")
			winner = fmt.Sprintf("client-%d", i)
			continue
		}
		var conflict *domain.ErrConflict
		assert.ErrorAs(t, err, &conflict)
	}
	require.NotEmpty(t, winner)
	assert.Equal(t, map[string]any{"clientId": winner}, srv.Value("accessCodes/PRJ-2025-RACE"))
}

func TestClient_ClaimAccessCode_TakesOverEmptyEntry(t *testing.T) {
	c, srv := newTestClient(t, "")
	srv.Seed("accessCodes/PRJ-2025-OLD", `{"clientId":""}`)

	require.NoError(t, c.ClaimAccessCode(context.Background(), "PRJ-2025-OLD", "client-9"))
	assert.Equal(t, map[string]any{"clientId": "client-9"}, srv.Value("accessCodes/PRJ-2025-OLD"))
}

func TestClient_RetriesServerErrorsOnRead(t *testing.T) {
	c, srv := newTestClient(t, "")
	srv.FailNext(http.StatusServiceUnavailable, http.StatusInternalServerError)

	clients, err := c.ListClients(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clients)
	assert.Equal(t, 3, srv.Requests())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	c, srv := newTestClient(t, "")
	srv.FailNext(http.StatusBadRequest)

	_, err := c.ListClients(context.Background())
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, 1, srv.Requests())
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	c, srv := newTestClient(t, "")
	srv.FailNext(http.StatusServiceUnavailable)

	_, err := c.CreateClient(context.Background(), &domain.Client{Name: "X"})
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, 1, srv.Requests())
}

func TestClient_WrongToken(t *testing.T) {
	srv := firebasetest.NewServer("right")
	defer srv.Close()

	cb := resilience.NewCircuitBreaker("firebase-test", firebase.IsExpectedFailure)
	c := firebase.NewClient(http.DefaultClient, srv.URL, "wrong", cb, resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}, zap.NewNop())

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, srv.Requests())
}

func TestClient_BreakerOpens(t *testing.T) {
	c, srv := newTestClient(t, "")
	for i := 0; i < 5; i++ {
		srv.FailNext(http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError)
		_, _ = c.ListClients(context.Background())
	}

	_, err := c.ListClients(context.Background())
	var open *domain.ErrCircuitOpen
	require.True(t, errors.As(err, &open), "got %v", err)
}

func TestIsExpectedFailure(t *testing.T) {
	assert.True(t, firebase.IsExpectedFailure(nil))
	assert.True(t, firebase.IsExpectedFailure(&domain.ErrNotFound{Resource: "client", ID: "x"}))
	assert.True(t, firebase.IsExpectedFailure(resilience.Permanent(errors.New("bad"))))
	assert.False(t, firebase.IsExpectedFailure(errors.New("boom")))
}
