// Package sqlitestore is a local record store with the same shape as the
// realtime database: every record is a JSON document keyed by collection
// and id, listed in insertion order. It backs offline development and the
// service tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boddenberg/client-portal-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var tracer = otel.Tracer("sqlitestore")

// Store persists records in a single SQLite table as JSON blobs.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path. ":memory:" gives a
// throwaway store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		path = "portal.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: writes serialize and :memory: stays a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

func storeError(collection string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "sqlite/" + collection}
	}
	return &domain.ErrExternalService{Service: "sqlite/" + collection, Err: err}
}

func list[T any](ctx context.Context, s *Store, collection, where string, args []any, setID func(*T, string)) ([]T, error) {
	query := `SELECT id, payload FROM records WHERE collection = ?`
	if where != "" {
		query += " AND " + where
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, append([]any{collection}, args...)...)
	if err != nil {
		return nil, storeError(collection, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]T, 0)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, storeError(collection, fmt.Errorf("scan: %w", err))
		}
		var rec T
		if err := json.Unmarshal(payload, &rec); err != nil {
			s.logger.Warn("sqlite: skipping undecodable record",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.Error(err),
			)
			continue
		}
		setID(&rec, id)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(collection, err)
	}
	return out, nil
}

func get[T any](ctx context.Context, s *Store, collection, resource, id string, setID func(*T, string)) (*T, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: resource, ID: id}
	}
	if err != nil {
		return nil, storeError(collection, err)
	}
	var rec T
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, storeError(collection, fmt.Errorf("decode %s: %w", resource, err))
	}
	setID(&rec, id)
	return &rec, nil
}

func create[T any](ctx context.Context, s *Store, collection string, rec *T, setID func(*T, string)) (string, error) {
	uid, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	id := uid.String()
	setID(rec, id)
	if err := s.put(ctx, collection, id, rec); err != nil {
		return "", err
	}
	return id, nil
}

// put writes a record, keeping its original position when it already exists.
func (s *Store) put(ctx context.Context, collection, id string, rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, payload) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET payload = excluded.payload`,
		collection, id, string(payload),
	)
	if err != nil {
		return storeError(collection, err)
	}
	return nil
}

// update replaces top-level fields of a stored document; a nil value
// removes the field.
func (s *Store) update(ctx context.Context, collection, resource, id string, fields map[string]any) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(collection, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	if err != nil {
		return storeError(collection, err)
	}

	doc := map[string]any{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return storeError(collection, fmt.Errorf("decode %s: %w", resource, err))
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", resource, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET payload = ? WHERE collection = ? AND id = ?`, string(merged), collection, id,
	); err != nil {
		return storeError(collection, err)
	}
	if err := tx.Commit(); err != nil {
		return storeError(collection, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ?`, collection, id,
	); err != nil {
		return storeError(collection, err)
	}
	return nil
}
