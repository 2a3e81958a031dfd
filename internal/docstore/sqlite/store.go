// Package sqlite implements the recipe document store on SQLite
// (modernc.org/sqlite, cgo-free). Useful for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ingest/internal/docstore"
	"ingest/internal/recipe"
)

func init() {
	docstore.Register("sqlite", func(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
		return New(ctx, cfg)
	})
}

type Store struct {
	db    *sql.DB
	table string
}

func New(ctx context.Context, cfg docstore.Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time; a bigger pool just queues.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db, table: quote(cfg.Collection)}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			doc        TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	return nil
}

func (s *Store) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s`, s.table))
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

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, doc FROM %s WHERE id IN (%s)`, s.table, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage, len(ids))
	for rows.Next() {
		var id, doc string
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

func (s *Store) PutBatch(ctx context.Context, recs map[string]*recipe.Recipe) (map[string]docstore.Outcome, error) {
	stmt, err := s.db.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`, s.table))
	if err != nil {
		return nil, fmt.Errorf("prepare put: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	out := make(map[string]docstore.Outcome, len(recs))
	for _, key := range docstore.SortedKeys(recs) {
		body, err := docstore.MarshalDoc(recs[key])
		if err != nil {
			out[key] = docstore.Outcome{Reason: err.Error()}
			continue
		}

		if _, err := stmt.ExecContext(ctx, key, string(body), now); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("put batch: %w", ctx.Err())
			}
			out[key] = docstore.Outcome{Reason: err.Error()}
			continue
		}
		out[key] = docstore.Outcome{OK: true}
	}
	return out, nil
}

func quote(name string) string {
	return `"` + name + `"`
}
