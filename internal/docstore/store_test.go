package docstore

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"ingest/internal/recipe"
)

type nopStore struct{}

func (nopStore) EnsureCollection(context.Context) error { return nil }
func (nopStore) ListIDs(context.Context) (map[string]struct{}, error) {
	return nil, nil
}
func (nopStore) GetBatch(context.Context, []string) (map[string]json.RawMessage, error) {
	return nil, nil
}
func (nopStore) PutBatch(context.Context, map[string]*recipe.Recipe) (map[string]Outcome, error) {
	return nil, nil
}
func (nopStore) Close() {}

func TestRegisterAndNew(t *testing.T) {
	Register("fake", func(ctx context.Context, cfg Config) (Store, error) {
		return nopStore{}, nil
	})

	st, err := New(context.Background(), Config{Kind: "fake", DSN: "x", Collection: "recipes"})
	if err != nil {
		t.Fatal(err)
	}
	if st == nil {
		t.Fatal("nil store")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{Kind: "", Collection: "recipes"}); err == nil {
		t.Error("empty kind should fail")
	}
	if _, err := New(context.Background(), Config{Kind: "fake", Collection: ""}); err == nil {
		t.Error("empty collection should fail")
	}
	if _, err := New(context.Background(), Config{Kind: "nope", Collection: "recipes"}); err == nil {
		t.Error("unregistered kind should fail")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register should panic")
		}
	}()
	Register("dup", func(ctx context.Context, cfg Config) (Store, error) { return nopStore{}, nil })
	Register("dup", func(ctx context.Context, cfg Config) (Store, error) { return nopStore{}, nil })
}

func TestSortedKeys(t *testing.T) {
	recs := map[string]*recipe.Recipe{
		"c": {}, "a": {}, "b": {},
	}
	if got := SortedKeys(recs); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("SortedKeys = %v", got)
	}
}
