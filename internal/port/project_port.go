package port

import (
	"context"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

// ProjectStore handles project records.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *domain.Project) (string, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	UpdateProject(ctx context.Context, id string, fields map[string]any) error
	DeleteProject(ctx context.Context, id string) error
}

// InvoiceStore handles invoice records.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv *domain.Invoice) (string, error)
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, fields map[string]any) error
	DeleteInvoice(ctx context.Context, id string) error
}

// TeamStore handles team member records.
type TeamStore interface {
	CreateTeamMember(ctx context.Context, m *domain.TeamMember) (string, error)
	ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error)
	GetTeamMember(ctx context.Context, id string) (*domain.TeamMember, error)
	UpdateTeamMember(ctx context.Context, id string, fields map[string]any) error
	DeleteTeamMember(ctx context.Context, id string) error
}
