package sqlitestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boddenberg/client-portal-go/internal/domain"
)

func setClientID(c *domain.Client, id string)             { c.ID = id }
func setProjectID(p *domain.Project, id string)           { p.ID = id }
func setInvoiceID(inv *domain.Invoice, id string)         { inv.ID = id }
func setTeamMemberID(m *domain.TeamMember, id string)     { m.ID = id }
func setNotificationID(n *domain.Notification, id string) { n.ID = id }

// Clients

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) (string, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateClient")
	defer span.End()
	return create(ctx, s, domain.CollectionClients, c, setClientID)
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListClients")
	defer span.End()
	return list(ctx, s, domain.CollectionClients, "", nil, setClientID)
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	return get(ctx, s, domain.CollectionClients, "client", id, setClientID)
}

func (s *Store) UpdateClient(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, domain.CollectionClients, "client", id, fields)
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.remove(ctx, domain.CollectionClients, id)
}

// Projects

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) (string, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateProject")
	defer span.End()
	return create(ctx, s, domain.CollectionProjects, p, setProjectID)
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListProjects")
	defer span.End()
	return list(ctx, s, domain.CollectionProjects, "", nil, setProjectID)
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return get(ctx, s, domain.CollectionProjects, "project", id, setProjectID)
}

func (s *Store) UpdateProject(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, domain.CollectionProjects, "project", id, fields)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.remove(ctx, domain.CollectionProjects, id)
}

// Invoices

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) (string, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateInvoice")
	defer span.End()
	return create(ctx, s, domain.CollectionInvoices, inv, setInvoiceID)
}

func (s *Store) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListInvoices")
	defer span.End()
	return list(ctx, s, domain.CollectionInvoices, "", nil, setInvoiceID)
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return get(ctx, s, domain.CollectionInvoices, "invoice", id, setInvoiceID)
}

func (s *Store) UpdateInvoice(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, domain.CollectionInvoices, "invoice", id, fields)
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	return s.remove(ctx, domain.CollectionInvoices, id)
}

// Team members

func (s *Store) CreateTeamMember(ctx context.Context, m *domain.TeamMember) (string, error) {
	return create(ctx, s, domain.CollectionTeamMembers, m, setTeamMemberID)
}

func (s *Store) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTeamMembers")
	defer span.End()
	return list(ctx, s, domain.CollectionTeamMembers, "", nil, setTeamMemberID)
}

func (s *Store) GetTeamMember(ctx context.Context, id string) (*domain.TeamMember, error) {
	return get(ctx, s, domain.CollectionTeamMembers, "team member", id, setTeamMemberID)
}

func (s *Store) UpdateTeamMember(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, domain.CollectionTeamMembers, "team member", id, fields)
}

func (s *Store) DeleteTeamMember(ctx context.Context, id string) error {
	return s.remove(ctx, domain.CollectionTeamMembers, id)
}

// Notifications

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (string, error) {
	return create(ctx, s, domain.CollectionNotifications, n, setNotificationID)
}

func (s *Store) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListNotifications")
	defer span.End()
	return list(ctx, s, domain.CollectionNotifications, "", nil, setNotificationID)
}

func (s *Store) ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListNotificationsByUser")
	defer span.End()
	return list(ctx, s, domain.CollectionNotifications,
		`json_extract(payload, '$.userId') = ?`, []any{userID}, setNotificationID)
}

func (s *Store) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	return get(ctx, s, domain.CollectionNotifications, "notification", id, setNotificationID)
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET payload = json_set(payload, '$.read', json('true'))
		WHERE collection = ? AND id = ?`, domain.CollectionNotifications, id)
	if err != nil {
		return storeError(domain.CollectionNotifications, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	return nil
}

// MarkNotificationsRead flips every id in one transaction. Unknown ids are
// ignored, matching a multi-path update on the realtime database.
func (s *Store) MarkNotificationsRead(ctx context.Context, ids []string) (retErr error) {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(domain.CollectionNotifications, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET payload = json_set(payload, '$.read', json('true'))
			WHERE collection = ? AND id = ?`, domain.CollectionNotifications, id); err != nil {
			return storeError(domain.CollectionNotifications, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeError(domain.CollectionNotifications, err)
	}
	return nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	return s.remove(ctx, domain.CollectionNotifications, id)
}

// Access codes

func (s *Store) ClaimAccessCode(ctx context.Context, code, clientID string) error {
	payload, err := json.Marshal(domain.AccessCodeEntry{ClientID: clientID})
	if err != nil {
		return fmt.Errorf("encode access code: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, payload) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET payload = excluded.payload
		WHERE json_extract(records.payload, '$.clientId') IS NULL
			OR json_extract(records.payload, '$.clientId') IN ('', json_extract(excluded.payload, '$.clientId'))`,
		domain.CollectionAccessCodes, code, string(payload),
	)
	if err != nil {
		return storeError(domain.CollectionAccessCodes, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError(domain.CollectionAccessCodes, err)
	}
	if n == 0 {
		return &domain.ErrConflict{Message: "access code already in use"}
	}
	return nil
}

func (s *Store) LookupAccessCode(ctx context.Context, code string) (string, bool, error) {
	entry, err := get(ctx, s, domain.CollectionAccessCodes, "access code", code,
		func(*domain.AccessCodeEntry, string) {})
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if entry.ClientID == "" {
		return "", false, nil
	}
	return entry.ClientID, true, nil
}

func (s *Store) DeleteAccessCode(ctx context.Context, code string) error {
	return s.remove(ctx, domain.CollectionAccessCodes, code)
}
