// Package docstore provides access to the remote recipe document
// collection through a narrow list/get/put interface. Backends register
// themselves by kind; the pipeline never imports a backend directly.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"ingest/internal/recipe"
)

// Config selects and connects a backend.
type Config struct {
	Kind       string // registered backend kind ("postgres", "sqlite", "mssql")
	DSN        string
	Collection string // table holding the documents
}

// Outcome is the per-record result of a PutBatch call.
type Outcome struct {
	OK     bool
	Reason string // store-provided failure reason when !OK
}

// Store is the backend-agnostic document collection interface.
//
// PutBatch must have partial-failure semantics: a record the store rejects
// produces a failed Outcome for that key only and never aborts the rest of
// the batch. The returned error is reserved for connectivity-level failures
// that invalidate the whole call.
type Store interface {
	// EnsureCollection creates the collection table if it does not exist.
	EnsureCollection(ctx context.Context) error

	// ListIDs enumerates every existing document identity. The set is
	// complete; no pagination contract is imposed on callers.
	ListIDs(ctx context.Context) (map[string]struct{}, error)

	// GetBatch fetches the documents for the given ids. Missing ids are
	// simply absent from the result.
	GetBatch(ctx context.Context, ids []string) (map[string]json.RawMessage, error)

	// PutBatch upserts the given records keyed by identity.
	PutBatch(ctx context.Context, recs map[string]*recipe.Recipe) (map[string]Outcome, error)

	// Close releases backend resources. Call once at shutdown.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() in the
// backend package. Registering the same kind twice panics; this fails fast
// rather than allowing ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("docstore: Register called with empty kind")
	}
	if f == nil {
		panic("docstore: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("docstore: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Store for the configured backend kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("docstore: missing store kind")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("docstore: missing collection name")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported docstore kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds (for error messages and help
// output).
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}

// MarshalDoc encodes a canonical record as the stored document body.
func MarshalDoc(rec *recipe.Recipe) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", rec.ID, err)
	}
	return b, nil
}

// SortedKeys orders a keyed set so callers visit records
// deterministically.
func SortedKeys[V any](recs map[string]V) []string {
	keys := make([]string, 0, len(recs))
	for k := range recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
