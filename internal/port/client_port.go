package port

import (
	"context"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

// ClientStore handles client records.
type ClientStore interface {
	CreateClient(ctx context.Context, c *domain.Client) (string, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	UpdateClient(ctx context.Context, id string, fields map[string]any) error
	DeleteClient(ctx context.Context, id string) error
}

// AccessCodeStore maps access codes to client ids.
type AccessCodeStore interface {
	// ClaimAccessCode maps code to clientID unless another client already
	// holds it, in which case it returns *domain.ErrConflict. The check and
	// the write are one atomic step.
	ClaimAccessCode(ctx context.Context, code, clientID string) error
	// LookupAccessCode returns found=false, with no error, for unknown codes.
	LookupAccessCode(ctx context.Context, code string) (clientID string, found bool, err error)
	DeleteAccessCode(ctx context.Context, code string) error
}
