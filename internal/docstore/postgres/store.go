// Package postgres implements the recipe document store on PostgreSQL.
// Documents live in a two-column collection table (identity key + JSONB
// body); upserts use INSERT ... ON CONFLICT.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ingest/internal/docstore"
	"ingest/internal/recipe"
)

func init() {
	docstore.Register("postgres", func(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
		return New(ctx, cfg)
	})
}

type Store struct {
	pool  *pgxpool.Pool
	table string
}

func New(ctx context.Context, cfg docstore.Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	return &Store{pool: pool, table: pgQuote(cfg.Collection)}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table))
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	return nil
}

func (s *Store) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	return ids, nil
}

func (s *Store) GetBatch(ctx context.Context, ids []string) (map[string]json.RawMessage, error) {
	if len(ids) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, doc FROM %s WHERE id = ANY($1)`, s.table), ids)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage, len(ids))
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out[id] = json.RawMessage(doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return out, nil
}

// PutBatch upserts each record individually inside one batch call. A
// server-side rejection (constraint violation, malformed payload) fails
// that record's outcome only; a connectivity failure aborts the call.
func (s *Store) PutBatch(ctx context.Context, recs map[string]*recipe.Recipe) (map[string]docstore.Outcome, error) {
	sql := fmt.Sprintf(`
		INSERT INTO %s (id, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`, s.table)

	out := make(map[string]docstore.Outcome, len(recs))
	for _, key := range docstore.SortedKeys(recs) {
		body, err := docstore.MarshalDoc(recs[key])
		if err != nil {
			out[key] = docstore.Outcome{Reason: err.Error()}
			continue
		}

		if _, err := s.pool.Exec(ctx, sql, key, body); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				// The server is reachable and rejected this record.
				out[key] = docstore.Outcome{Reason: pgErr.Message}
				continue
			}
			return nil, fmt.Errorf("put batch: %w", err)
		}
		out[key] = docstore.Outcome{OK: true}
	}
	return out, nil
}

// pgQuote quotes a table identifier. Collection names come from config, not
// user data, but quoting keeps mixed-case names working.
func pgQuote(name string) string {
	return `"` + name + `"`
}
