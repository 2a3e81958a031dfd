package stats

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"ingest/internal/docstore"
	"ingest/internal/recipe"
)

// fakeStore serves canned documents; it records GetBatch page sizes so
// paging behavior can be asserted.
type fakeStore struct {
	docs      map[string]json.RawMessage
	pageSizes []int
}

func (s *fakeStore) EnsureCollection(context.Context) error { return nil }

func (s *fakeStore) ListIDs(context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(s.docs))
	for id := range s.docs {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *fakeStore) GetBatch(_ context.Context, ids []string) (map[string]json.RawMessage, error) {
	s.pageSizes = append(s.pageSizes, len(ids))
	out := make(map[string]json.RawMessage)
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

func (s *fakeStore) PutBatch(context.Context, map[string]*recipe.Recipe) (map[string]docstore.Outcome, error) {
	return nil, nil
}

func (s *fakeStore) Close() {}

func doc(t *testing.T, rec recipe.Recipe) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCollect(t *testing.T) {
	four := 4.0
	st := &fakeStore{docs: map[string]json.RawMessage{
		"a": doc(t, recipe.Recipe{
			ID: "a", Title: "One", Host: "example.com", Channel: "discover",
			Tags:        []string{"Breakfast", "eggs"},
			Ingredients: []string{"Eggs ", "salt"},
			Image:       "a.jpg",
			Nutrients:   []recipe.Nutrient{{Name: "calories", Value: "100", Unit: "kcal"}},
			Servings:    &four,
		}),
		"b": doc(t, recipe.Recipe{
			ID: "b", Title: "Two", Host: "example.com",
			Tags:        []string{"breakfast"},
			Ingredients: []string{"salt"},
		}),
		"c": json.RawMessage(`{not json`),
	}}

	s, err := Collect(context.Background(), st, 2)
	if err != nil {
		t.Fatal(err)
	}

	if s.Documents != 2 {
		t.Errorf("documents = %d, want 2", s.Documents)
	}
	if len(s.Undecodable) != 1 || s.Undecodable[0] != "c" {
		t.Errorf("undecodable = %v", s.Undecodable)
	}
	if s.Tags["breakfast"] != 2 || s.Tags["eggs"] != 1 {
		t.Errorf("tags = %v", s.Tags)
	}
	if s.Ingredients["salt"] != 2 || s.Ingredients["eggs"] != 1 {
		t.Errorf("ingredients = %v", s.Ingredients)
	}
	if s.Hosts["example.com"] != 2 {
		t.Errorf("hosts = %v", s.Hosts)
	}
	if s.WithNutrients != 1 || s.WithImage != 1 || s.WithServings != 1 {
		t.Errorf("coverage = %d/%d/%d", s.WithNutrients, s.WithImage, s.WithServings)
	}

	// 3 ids with page size 2 -> pages of 2 and 1.
	if len(st.pageSizes) != 2 || st.pageSizes[0] != 2 || st.pageSizes[1] != 1 {
		t.Errorf("pageSizes = %v", st.pageSizes)
	}
}

func TestCollectEmptyStore(t *testing.T) {
	st := &fakeStore{docs: map[string]json.RawMessage{}}
	s, err := Collect(context.Background(), st, 10)
	if err != nil {
		t.Fatal(err)
	}
	if s.Documents != 0 {
		t.Errorf("documents = %d", s.Documents)
	}
	if len(st.pageSizes) != 0 {
		t.Errorf("GetBatch called on empty store: %v", st.pageSizes)
	}
}

func TestPrintTopOrdering(t *testing.T) {
	s := &Summary{
		Documents: 3,
		Tags:      map[string]int{"dinner": 5, "breakfast": 5, "snack": 1},
		Hosts:     map[string]int{},
		Channels:  map[string]int{},
	}

	var buf strings.Builder
	s.Print(&buf, 2)
	out := buf.String()

	// Ties break alphabetically, and snack falls outside top 2.
	bi := strings.Index(out, "breakfast")
	di := strings.Index(out, "dinner")
	if bi < 0 || di < 0 || bi > di {
		t.Errorf("tag ordering wrong:\n%s", out)
	}
	if strings.Contains(out, "snack") {
		t.Errorf("top 2 should exclude snack:\n%s", out)
	}
}
