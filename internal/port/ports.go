// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete record store and change feed.
package port

import (
	"context"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// ChangePublisher announces successful writes to the record store.
type ChangePublisher interface {
	Publish(ctx context.Context, change domain.Change)
}

// PortalStore is the whole record store: one sub-store per collection plus
// the access-code index. Implemented by the Firebase and SQLite adapters.
//
// Update methods take a partial set of top-level fields and return
// domain.ErrNotFound when the record does not exist. Get methods return
// domain.ErrNotFound for absent records.
type PortalStore interface {
	ClientStore
	ProjectStore
	InvoiceStore
	TeamStore
	NotificationStore
	AccessCodeStore

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
