package recipe

import (
	"reflect"
	"strings"
	"testing"
)

func validRaw() Raw {
	return Raw{
		"id":           "r-1",
		"title":        "Tea",
		"tags":         []any{"hot", "drink"},
		"instructions": []any{"boil water", "steep"},
		"ingredients":  []any{"water", "tea leaves"},
		"image":        "https://img.example/tea.png",
		"url":          "https://example.com/tea",
	}
}

func TestTransformValid(t *testing.T) {
	rec, rej := Transform(validRaw(), SourceFile)
	if rej != nil {
		t.Fatalf("unexpected rejection: %v", rej.Reasons)
	}
	if rec.ID != "r-1" {
		t.Errorf("ID = %q, want explicit id r-1", rec.ID)
	}
	if rec.Title != "Tea" {
		t.Errorf("Title = %q", rec.Title)
	}
	if got := rec.Tags; !reflect.DeepEqual(got, []string{"hot", "drink"}) {
		t.Errorf("Tags = %v", got)
	}
	if rec.Channel != DefaultChannel {
		t.Errorf("Channel = %q, want %q", rec.Channel, DefaultChannel)
	}
}

func TestTransformScalarTags(t *testing.T) {
	raw := validRaw()
	raw["tags"] = "hot" // scalar where a list is expected

	_, rej := Transform(raw, SourceFile)
	if rej == nil {
		t.Fatal("expected rejection")
	}
	if !hasReason(rej, "tags_not_a_list") {
		t.Errorf("reasons = %v, want tags_not_a_list", rej.Reasons)
	}
}

func TestTransformReportsAllFailures(t *testing.T) {
	raw := validRaw()
	raw["tags"] = 7
	delete(raw, "instructions")
	delete(raw, "image")

	_, rej := Transform(raw, SourceFile)
	if rej == nil {
		t.Fatal("expected rejection")
	}
	want := []string{"missing_required_fields: instructions", "tags_not_a_list", "missing_image"}
	for _, w := range want {
		if !hasReason(rej, w) {
			t.Errorf("reasons = %v, missing %q", rej.Reasons, w)
		}
	}
	if len(rej.Reasons) != len(want) {
		t.Errorf("got %d reasons, want %d: %v", len(rej.Reasons), len(want), rej.Reasons)
	}
}

func TestTransformServings(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		none bool
	}{
		{"4 servings", 4, false},
		{"4-6 servings", 4, false},
		{"Serves a crowd", 0, true},
		{6, 6, false},
		{2.5, 2.5, false},
		{nil, 0, true},
	}

	for _, c := range cases {
		raw := validRaw()
		if c.in == nil {
			delete(raw, "numServings")
		} else {
			raw["numServings"] = c.in
		}
		rec, rej := Transform(raw, SourceFile)
		if rej != nil {
			t.Fatalf("in=%v: unexpected rejection %v", c.in, rej.Reasons)
		}
		if c.none {
			if rec.Servings != nil {
				t.Errorf("in=%v: Servings = %v, want unknown", c.in, *rec.Servings)
			}
			continue
		}
		if rec.Servings == nil || *rec.Servings != c.want {
			t.Errorf("in=%v: Servings = %v, want %v", c.in, rec.Servings, c.want)
		}
	}
}

func TestTransformNutrientsMap(t *testing.T) {
	raw := validRaw()
	raw["nutrients"] = map[string]any{
		"protein":  "13 g",
		"calories": "280 kcal",
		"fiber":    nil, // dropped, not fatal
	}

	rec, rej := Transform(raw, SourceFile)
	if rej != nil {
		t.Fatalf("unexpected rejection: %v", rej.Reasons)
	}
	want := []Nutrient{
		{Name: "calories", Value: "280", Unit: "kcal"},
		{Name: "protein", Value: "13", Unit: "g"},
	}
	if !reflect.DeepEqual(rec.Nutrients, want) {
		t.Errorf("Nutrients = %v, want %v", rec.Nutrients, want)
	}
}

func TestTransformNutrientsMalformed(t *testing.T) {
	raw := validRaw()
	raw["nutrients"] = "13 g of protein"

	rec, rej := Transform(raw, SourceFile)
	if rej != nil {
		t.Fatalf("malformed nutrients must not reject the record: %v", rej.Reasons)
	}
	if len(rec.Nutrients) != 0 {
		t.Errorf("Nutrients = %v, want empty", rec.Nutrients)
	}
}

func TestTransformDatasetRenames(t *testing.T) {
	raw := Raw{
		"recipe_id":         "local-9",
		"title":             "Soup",
		"tags":              []string{"warm"},
		"instructions":      []string{"simmer"},
		"ingredientStrings": []string{"stock", "carrot"},
		"image":             "soup.png",
	}

	rec, rej := Transform(raw, SourceDataset)
	if rej != nil {
		t.Fatalf("unexpected rejection: %v", rej.Reasons)
	}
	if rec.ID != "local-9" {
		t.Errorf("ID = %q, want recipe_id mapping", rec.ID)
	}
	if !reflect.DeepEqual(rec.Ingredients, []string{"stock", "carrot"}) {
		t.Errorf("Ingredients = %v", rec.Ingredients)
	}
}

func TestTransformCarriesProcessedIngredients(t *testing.T) {
	raw := Raw{
		"recipe_id":         "local-12",
		"title":             "Broth",
		"tags":              []string{"warm"},
		"instructions":      []string{"simmer"},
		"ingredientStrings": []string{"stock"},
		"image":             "broth.png",
		"procesedIngredients": []any{
			map[string]any{"name": "stock", "quantity": 1.0, "unit": "l"},
		},
	}

	rec, rej := Transform(raw, SourceDataset)
	if rej != nil {
		t.Fatalf("unexpected rejection: %v", rej.Reasons)
	}
	if len(rec.ProcessedIngredients) != 1 {
		t.Fatalf("ProcessedIngredients = %v, want the structured parse carried through", rec.ProcessedIngredients)
	}
	entry, ok := rec.ProcessedIngredients[0].(map[string]any)
	if !ok || entry["name"] != "stock" {
		t.Errorf("ProcessedIngredients[0] = %v", rec.ProcessedIngredients[0])
	}
}

func TestTransformScrapeRenames(t *testing.T) {
	raw := Raw{
		"title":        "Stew",
		"tags":         []string{"dinner"},
		"instructions": []string{"cook"},
		"ingredients":  []string{"beef"},
		"image":        "stew.png",
		"url":          "https://example.com/stew",
		"yields":       "8 servings",
	}

	rec, rej := Transform(raw, SourceScrape)
	if rej != nil {
		t.Fatalf("unexpected rejection: %v", rej.Reasons)
	}
	if rec.Servings == nil || *rec.Servings != 8 {
		t.Errorf("Servings = %v, want 8 from yields", rec.Servings)
	}
	if rec.ID != URLKey("https://example.com/stew") {
		t.Errorf("ID = %q, want url-derived key", rec.ID)
	}
}

func TestTransformDeterministic(t *testing.T) {
	a, _ := Transform(validRaw(), SourceFile)
	b, _ := Transform(validRaw(), SourceFile)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical input produced different canonical records")
	}

	bad := validRaw()
	bad["tags"] = "x"
	_, r1 := Transform(bad, SourceFile)
	_, r2 := Transform(bad, SourceFile)
	if !reflect.DeepEqual(r1.Reasons, r2.Reasons) {
		t.Errorf("rejection reasons differ across runs: %v vs %v", r1.Reasons, r2.Reasons)
	}
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	raw := Raw{
		"recipe_id":         "x",
		"title":             "T",
		"tags":              []string{},
		"instructions":      []string{},
		"ingredientStrings": []string{},
		"image":             "i.png",
	}
	Transform(raw, SourceDataset)
	if _, ok := raw["recipe_id"]; !ok {
		t.Error("Transform mutated its input (recipe_id renamed in place)")
	}
}

func TestIdentityKeyPriority(t *testing.T) {
	withID := validRaw()
	rec, _ := Transform(withID, SourceFile)
	if rec.ID != "r-1" {
		t.Errorf("explicit id must win, got %q", rec.ID)
	}

	noID := validRaw()
	delete(noID, "id")
	rec, _ = Transform(noID, SourceFile)
	if rec.ID != URLKey("https://example.com/tea") {
		t.Errorf("url hash must win over content hash, got %q", rec.ID)
	}

	noURL := validRaw()
	delete(noURL, "id")
	delete(noURL, "url")
	rec, _ = Transform(noURL, SourceFile)
	if rec.ID == "" || len(rec.ID) != 64 {
		t.Errorf("content key should be a sha256 hex digest, got %q", rec.ID)
	}
}

func TestIdentityKeyStability(t *testing.T) {
	// Keys must survive cosmetic differences and ingredient order.
	a := contentKey("Tea ", []string{"water", "leaves"})
	b := contentKey("tea", []string{"leaves", "water"})
	if a != b {
		t.Errorf("content keys differ: %q vs %q", a, b)
	}

	if URLKey("https://example.com/tea") != URLKey("https://example.com/tea") {
		t.Error("URLKey not deterministic")
	}
}

func hasReason(rej *Rejection, want string) bool {
	for _, r := range rej.Reasons {
		if r == want || strings.HasPrefix(r, want) {
			return true
		}
	}
	return false
}
