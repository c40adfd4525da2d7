package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"go.uber.org/zap"
)

func (c *Client) CreateNotification(ctx context.Context, n *domain.Notification) (string, error) {
	ctx, span := tracer.Start(ctx, "Firebase.CreateNotification")
	defer span.End()
	return createRecord(ctx, c, domain.CollectionNotifications, n, setNotificationID)
}

func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Firebase.ListNotifications")
	defer span.End()
	all, err := listRecords(ctx, c, domain.CollectionNotifications, nil, setNotificationID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, isReadStub), nil
}

// isReadStub spots the {read:true} node a multi-path mark-read leaves behind
// when it races a delete. Such a node has no recipient and is not a
// notification.
func isReadStub(n domain.Notification) bool {
	return n.UserID == ""
}

// ListNotificationsByUser filters server-side on userId. The database needs
// an ".indexOn": "userId" rule on the notifications node for this query.
func (c *Client) ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Firebase.ListNotificationsByUser")
	defer span.End()

	quoted, err := json.Marshal(userID)
	if err != nil {
		return nil, fmt.Errorf("encode user id: %w", err)
	}
	query := url.Values{}
	query.Set("orderBy", `"userId"`)
	query.Set("equalTo", string(quoted))
	return listRecords(ctx, c, domain.CollectionNotifications, query, setNotificationID)
}

func (c *Client) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Firebase.GetNotification")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionNotifications, id)...)
	n, err := getRecord(ctx, c, domain.CollectionNotifications, "notification", id, setNotificationID)
	if err != nil {
		return nil, err
	}
	if isReadStub(*n) {
		return nil, &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	return n, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Firebase.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionNotifications, id)...)
	return updateRecord(ctx, c, domain.CollectionNotifications, "notification", id, map[string]any{"read": true})
}

// MarkNotificationsRead sets read on every id with one multi-path update,
// which the database applies atomically.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	ctx, span := tracer.Start(ctx, "Firebase.MarkNotificationsRead")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}
	updates := make(map[string]any, len(ids))
	for _, id := range ids {
		updates[id+"/read"] = true
	}
	return c.write(ctx, "firebase/"+domain.CollectionNotifications, http.MethodPatch, nodePath(domain.CollectionNotifications), updates)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Firebase.DeleteNotification")
	defer span.End()
	span.SetAttributes(spanCollection(domain.CollectionNotifications, id)...)
	return deleteRecord(ctx, c, domain.CollectionNotifications, id)
}

// ============================================================
// Access codes
// ============================================================

// ClaimAccessCode reads the code node with its ETag and writes the mapping
// conditioned on that ETag, so two claims racing for a free code cannot both
// succeed: the loser gets a 412 and reports a conflict.
func (c *Client) ClaimAccessCode(ctx context.Context, code, clientID string) error {
	ctx, span := tracer.Start(ctx, "Firebase.ClaimAccessCode")
	defer span.End()

	service := "firebase/" + domain.CollectionAccessCodes
	path := nodePath(domain.CollectionAccessCodes, code)
	body, etag, err := c.readETag(ctx, service, path)
	if err != nil {
		return err
	}
	if body != nil {
		var held domain.AccessCodeEntry
		if err := json.Unmarshal(body, &held); err != nil {
			return &domain.ErrExternalService{Service: service, Err: fmt.Errorf("decode access code: %w", err)}
		}
		switch held.ClientID {
		case clientID:
			return nil
		case "":
		default:
			return &domain.ErrConflict{Message: "access code already in use"}
		}
	}

	err = c.writeIf(ctx, service, http.MethodPut, path, domain.AccessCodeEntry{ClientID: clientID}, etag)
	if isPreconditionFailed(err) {
		c.logger.Info("firebase: access code claimed concurrently", zap.String("code", code))
		return &domain.ErrConflict{Message: "access code already in use"}
	}
	return err
}

func (c *Client) LookupAccessCode(ctx context.Context, code string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "Firebase.LookupAccessCode")
	defer span.End()

	body, err := c.read(ctx, "firebase/"+domain.CollectionAccessCodes, nodePath(domain.CollectionAccessCodes, code), nil)
	if err != nil {
		return "", false, err
	}
	if body == nil {
		return "", false, nil
	}
	var entry domain.AccessCodeEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return "", false, &domain.ErrExternalService{Service: "firebase/" + domain.CollectionAccessCodes, Err: fmt.Errorf("decode access code: %w", err)}
	}
	if entry.ClientID == "" {
		return "", false, nil
	}
	return entry.ClientID, true, nil
}

func (c *Client) DeleteAccessCode(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "Firebase.DeleteAccessCode")
	defer span.End()
	return deleteRecord(ctx, c, domain.CollectionAccessCodes, code)
}
