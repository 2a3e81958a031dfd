// Package mssql implements the recipe document store on SQL Server.
// Upserts use MERGE; behavior matches the Postgres and SQLite backends.
package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"ingest/internal/docstore"
	"ingest/internal/recipe"
)

func init() {
	docstore.Register("mssql", func(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
		return New(ctx, cfg)
	})
}

type Store struct {
	db    *sql.DB
	table string
}

func New(ctx context.Context, cfg docstore.Config) (*Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mssql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mssql: %w", err)
	}
	return &Store{db: db, table: quote(cfg.Collection)}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		IF OBJECT_ID(N'%s', N'U') IS NULL
		CREATE TABLE %s (
			id         NVARCHAR(128) NOT NULL PRIMARY KEY,
			doc        NVARCHAR(MAX) NOT NULL,
			updated_at DATETIME2 NOT NULL
		)`, strings.Trim(s.table, `[]`), s.table))
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

	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("@p%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, doc FROM %s WHERE id IN (%s)`, s.table, strings.Join(ph, ",")), args...)
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
	merge := fmt.Sprintf(`
		MERGE INTO %s AS t
		USING (SELECT @p1 AS id, @p2 AS doc) AS src ON t.id = src.id
		WHEN MATCHED THEN UPDATE SET doc = src.doc, updated_at = SYSUTCDATETIME()
		WHEN NOT MATCHED THEN INSERT (id, doc, updated_at) VALUES (src.id, src.doc, SYSUTCDATETIME());`, s.table)

	out := make(map[string]docstore.Outcome, len(recs))
	for _, key := range docstore.SortedKeys(recs) {
		body, err := docstore.MarshalDoc(recs[key])
		if err != nil {
			out[key] = docstore.Outcome{Reason: err.Error()}
			continue
		}

		if _, err := s.db.ExecContext(ctx, merge, key, string(body)); err != nil {
			var srvErr mssqldb.Error
			if errors.As(err, &srvErr) {
				// The server is reachable and rejected this record.
				out[key] = docstore.Outcome{Reason: srvErr.Message}
				continue
			}
			return nil, fmt.Errorf("put batch: %w", err)
		}
		out[key] = docstore.Outcome{OK: true}
	}
	return out, nil
}

func quote(name string) string {
	return "[" + name + "]"
}
