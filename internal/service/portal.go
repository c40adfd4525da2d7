// Package service provides the business logic layer (use cases).
// Portal orchestrates reads over the snapshot and writes to the record
// store; AuthService resolves access codes and issues session tokens.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/infra/observability"
	"github.com/boddenberg/client-portal-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var portalTracer = otel.Tracer("service/portal")

const snapshotKey = "snapshot"

// DeletePolicy decides what deleting a client does to its children.
type DeletePolicy string

const (
	// DeleteBlock refuses to delete a client that still has projects or invoices.
	DeleteBlock DeletePolicy = "block"
	// DeleteCascade removes the client's invoices, projects, access code and
	// notifications before the client.
	DeleteCascade DeletePolicy = "cascade"
)

// ParseDeletePolicy accepts "block" or "cascade"; empty means block.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch DeletePolicy(s) {
	case "", DeleteBlock:
		return DeleteBlock, nil
	case DeleteCascade:
		return DeleteCascade, nil
	}
	return "", fmt.Errorf("unknown client delete policy %q", s)
}

// Options tunes a Portal. Zero values pick the defaults.
type Options struct {
	DeletePolicy DeletePolicy
	Now          func() time.Time
}

// Portal serves admin and client use cases over the record store.
type Portal struct {
	store     port.PortalStore
	cache     port.Cache[*aggregate.Snapshot]
	publisher port.ChangePublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	policy    DeletePolicy
	now       func() time.Time
	locks     *keyedMutex

	// snapMu guards gen, which counts invalidations. A load only caches
	// its result when no invalidation happened while it ran.
	snapMu sync.Mutex
	gen    uint64
}

// NewPortal creates the portal service. publisher may be nil.
func NewPortal(store port.PortalStore, cache port.Cache[*aggregate.Snapshot], publisher port.ChangePublisher, metrics *observability.Metrics, logger *zap.Logger, opts Options) *Portal {
	p := &Portal{
		store:     store,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		policy:    opts.DeletePolicy,
		now:       opts.Now,
		locks:     newKeyedMutex(),
	}
	if p.policy == "" {
		p.policy = DeleteBlock
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// ============================================================
// Snapshot
// ============================================================

// Snapshot returns every collection, from cache when fresh. Collections are
// fetched concurrently; any failure fails the whole load.
func (p *Portal) Snapshot(ctx context.Context) (*aggregate.Snapshot, error) {
	if cached, ok := p.cache.Get(snapshotKey); ok {
		p.metrics.IncrCacheHit(snapshotKey)
		return cached, nil
	}
	p.metrics.IncrCacheMiss(snapshotKey)
	gen := p.generation()

	ctx, span := portalTracer.Start(ctx, "Portal.LoadSnapshot")
	defer span.End()
	start := time.Now()

	snap := &aggregate.Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Clients, err = p.store.ListClients(gctx)
		return p.storeErr(domain.CollectionClients, err)
	})
	g.Go(func() (err error) {
		snap.Projects, err = p.store.ListProjects(gctx)
		return p.storeErr(domain.CollectionProjects, err)
	})
	g.Go(func() (err error) {
		snap.Invoices, err = p.store.ListInvoices(gctx)
		return p.storeErr(domain.CollectionInvoices, err)
	})
	g.Go(func() (err error) {
		snap.Team, err = p.store.ListTeamMembers(gctx)
		return p.storeErr(domain.CollectionTeamMembers, err)
	})
	g.Go(func() (err error) {
		snap.Notifications, err = p.store.ListNotifications(gctx)
		return p.storeErr(domain.CollectionNotifications, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.metrics.RecordOperation("load_snapshot", time.Since(start))
	p.snapMu.Lock()
	if p.gen == gen {
		p.cache.Set(snapshotKey, snap)
	}
	p.snapMu.Unlock()
	return snap, nil
}

func (p *Portal) generation() uint64 {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	return p.gen
}

// Invalidate drops the cached snapshot. A load already in flight still
// answers its caller but will not be cached.
func (p *Portal) Invalidate() {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	p.gen++
	p.cache.Delete(snapshotKey)
}

// WatchChanges invalidates the snapshot for every change seen on ch until
// ch closes or ctx ends. Wire it to a hub subscription so writes from other
// processes reaching the feed also refresh reads.
func (p *Portal) WatchChanges(ctx context.Context, ch <-chan domain.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			p.Invalidate()
		}
	}
}

// Ping checks the record store.
func (p *Portal) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

func (p *Portal) storeErr(collection string, err error) error {
	if err == nil {
		return nil
	}
	p.metrics.IncrStoreError(collection)
	return fmt.Errorf("list %s: %w", collection, err)
}

// changed records a successful write to a shared record.
func (p *Portal) changed(ctx context.Context, collection string, op domain.ChangeOp, id string) {
	p.changedFor(ctx, "", collection, op, id)
}

// changedFor records a successful write: the snapshot is dropped at once so
// the writer reads its own write, then the change is announced to owner.
func (p *Portal) changedFor(ctx context.Context, owner, collection string, op domain.ChangeOp, id string) {
	p.Invalidate()
	if p.publisher == nil {
		return
	}
	p.publisher.Publish(ctx, domain.Change{
		Collection: collection,
		Op:         op,
		ID:         id,
		Owner:      owner,
		At:         p.now().UnixMilli(),
	})
}

func (p *Portal) nowMillis() int64 {
	return p.now().UnixMilli()
}

func (p *Portal) today() string {
	return p.now().Format(time.DateOnly)
}

// notify creates an unread notification for the recipient.
func (p *Portal) notify(ctx context.Context, to domain.Actor, t domain.NotificationType, title, description string) error {
	n := &domain.Notification{
		UserID:      to.UserID(),
		Type:        t,
		Title:       title,
		Description: description,
		Read:        false,
		CreatedAt:   p.nowMillis(),
	}
	id, err := p.store.CreateNotification(ctx, n)
	if err != nil {
		p.metrics.IncrStoreError(domain.CollectionNotifications)
		return fmt.Errorf("create notification: %w", err)
	}
	p.metrics.IncrNotification(t)
	p.changedFor(ctx, n.UserID, domain.CollectionNotifications, domain.OpCreated, id)
	return nil
}

// notifyClient is notify for a client id that came from a stored record.
func (p *Portal) notifyClient(ctx context.Context, clientID string, t domain.NotificationType, title, description string) error {
	to, err := domain.ClientActor(clientID)
	if err != nil {
		return err
	}
	return p.notify(ctx, to, t, title, description)
}
