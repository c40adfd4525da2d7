package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/google/uuid"
)

// ============================================================
// Generic collection helpers
// ============================================================

// newID returns a time-ordered id, so database key order is creation order.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// listRecords reads a collection node. Children come back as a JSON object;
// they are returned in key order, the order the database itself uses.
// setID backfills the id from the key for records stored without one.
func listRecords[T any](ctx context.Context, c *Client, collection string, query url.Values, setID func(*T, string)) ([]T, error) {
	body, err := c.read(ctx, "firebase/"+collection, nodePath(collection), query)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	if body == nil {
		return out, nil
	}

	var children map[string]json.RawMessage
	if err := json.Unmarshal(body, &children); err != nil {
		return nil, &domain.ErrExternalService{Service: "firebase/" + collection, Err: fmt.Errorf("decode %s: %w", collection, err)}
	}
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := children[k]
		if isNull(raw) {
			continue
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Warn("firebase: skipping undecodable record")
			continue
		}
		setID(&rec, k)
		out = append(out, rec)
	}
	return out, nil
}

// getRecord reads one record; absent nodes are domain.ErrNotFound.
func getRecord[T any](ctx context.Context, c *Client, collection, resource, id string, setID func(*T, string)) (*T, error) {
	body, err := c.read(ctx, "firebase/"+collection, nodePath(collection, id), nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, &domain.ErrNotFound{Resource: resource, ID: id}
	}
	var rec T
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, &domain.ErrExternalService{Service: "firebase/" + collection, Err: fmt.Errorf("decode %s: %w", resource, err)}
	}
	setID(&rec, id)
	return &rec, nil
}

// createRecord assigns a fresh id and writes the record under it.
func createRecord[T any](ctx context.Context, c *Client, collection string, rec *T, setID func(*T, string)) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	setID(rec, id)
	if err := c.write(ctx, "firebase/"+collection, http.MethodPut, nodePath(collection, id), rec); err != nil {
		return "", err
	}
	return id, nil
}

// updateRecord patches top-level fields of an existing record. PATCH on a
// missing node would create it, so existence is checked first.
func updateRecord(ctx context.Context, c *Client, collection, resource, id string, fields map[string]any) error {
	ok, err := c.exists(ctx, "firebase/"+collection, collection, id)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	if len(fields) == 0 {
		return nil
	}
	return c.write(ctx, "firebase/"+collection, http.MethodPatch, nodePath(collection, id), fields)
}

// deleteRecord removes a record. Deleting an absent record is not an error.
func deleteRecord(ctx context.Context, c *Client, collection, id string) error {
	return c.write(ctx, "firebase/"+collection, http.MethodDelete, nodePath(collection, id), nil)
}

// ============================================================
// Clients
// ============================================================

func setClientID(c *domain.Client, id string)             { c.ID = id }
func setProjectID(p *domain.Project, id string)           { p.ID = id }
func setInvoiceID(inv *domain.Invoice, id string)         { inv.ID = id }
func setTeamMemberID(m *domain.TeamMember, id string)     { m.ID = id }
func setNotificationID(n *domain.Notification, id string) { n.ID = id }

func (c *Client) CreateClient(ctx context.Context, rec *domain.Client) (string, error) {
	ctx, span := tracer.Start(ctx, "Firebase.CreateClient")
	defer span.End()
	return createRecord(ctx, c, domain.CollectionClients, rec, setClientID)
}

func (c *Client) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Firebase.ListClients")
	defer span.End()
	return listRecords(ctx, c, domain.CollectionClients, nil, setClientID)
}

func (c *Client) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Firebase.GetClient")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionClients, id)...)
	return getRecord(ctx, c, domain.CollectionClients, "client", id, setClientID)
}

func (c *Client) UpdateClient(ctx context.Context, id string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Firebase.UpdateClient")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionClients, id)...)
	return updateRecord(ctx, c, domain.CollectionClients, "client", id, fields)
}

func (c *Client) DeleteClient(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Firebase.DeleteClient")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionClients, id)...)
	return deleteRecord(ctx, c, domain.CollectionClients, id)
}

// ============================================================
// Projects
// ============================================================

func (c *Client) CreateProject(ctx context.Context, rec *domain.Project) (string, error) {
	ctx, span := tracer.Start(ctx, "Firebase.CreateProject")
	defer span.End()
	return createRecord(ctx, c, domain.CollectionProjects, rec, setProjectID)
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	ctx, span := tracer.Start(ctx, "Firebase.ListProjects")
	defer span.End()
	return listRecords(ctx, c, domain.CollectionProjects, nil, setProjectID)
}

func (c *Client) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	ctx, span := tracer.Start(ctx, "Firebase.GetProject")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionProjects, id)...)
	return getRecord(ctx, c, domain.CollectionProjects, "project", id, setProjectID)
}

func (c *Client) UpdateProject(ctx context.Context, id string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Firebase.UpdateProject")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionProjects, id)...)
	return updateRecord(ctx, c, domain.CollectionProjects, "project", id, fields)
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Firebase.DeleteProject")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionProjects, id)...)
	return deleteRecord(ctx, c, domain.CollectionProjects, id)
}

// ============================================================
// Invoices
// ============================================================

func (c *Client) CreateInvoice(ctx context.Context, rec *domain.Invoice) (string, error) {
	ctx, span := tracer.Start(ctx, "Firebase.CreateInvoice")
	defer span.End()
	return createRecord(ctx, c, domain.CollectionInvoices, rec, setInvoiceID)
}

func (c *Client) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Firebase.ListInvoices")
	defer span.End()
	return listRecords(ctx, c, domain.CollectionInvoices, nil, setInvoiceID)
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Firebase.GetInvoice")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionInvoices, id)...)
	return getRecord(ctx, c, domain.CollectionInvoices, "invoice", id, setInvoiceID)
}

func (c *Client) UpdateInvoice(ctx context.Context, id string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Firebase.UpdateInvoice")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionInvoices, id)...)
	return updateRecord(ctx, c, domain.CollectionInvoices, "invoice", id, fields)
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Firebase.DeleteInvoice")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionInvoices, id)...)
	return deleteRecord(ctx, c, domain.CollectionInvoices, id)
}

// ============================================================
// Team members
// ============================================================

func (c *Client) CreateTeamMember(ctx context.Context, rec *domain.TeamMember) (string, error) {
	ctx, span := tracer.Start(ctx, "Firebase.CreateTeamMember")
	defer span.End()
	return createRecord(ctx, c, domain.CollectionTeamMembers, rec, setTeamMemberID)
}

func (c *Client) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	ctx, span := tracer.Start(ctx, "Firebase.ListTeamMembers")
	defer span.End()
	return listRecords(ctx, c, domain.CollectionTeamMembers, nil, setTeamMemberID)
}

func (c *Client) GetTeamMember(ctx context.Context, id string) (*domain.TeamMember, error) {
	ctx, span := tracer.Start(ctx, "Firebase.GetTeamMember")
	defer span.End()
	return getRecord(ctx, c, domain.CollectionTeamMembers, "team member", id, setTeamMemberID)
}

func (c *Client) UpdateTeamMember(ctx context.Context, id string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Firebase.UpdateTeamMember")
	defer span.End()
	return updateRecord(ctx, c, domain.CollectionTeamMembers, "team member", id, fields)
}

func (c *Client) DeleteTeamMember(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Firebase.DeleteTeamMember")
	defer span.End()
	return deleteRecord(ctx, c, domain.CollectionTeamMembers, id)
}
