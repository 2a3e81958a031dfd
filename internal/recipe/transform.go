package recipe

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Rejection reason constants. Reasons that carry detail (missing field
// names) are built with their helper instead.
const (
	ReasonMissingImage = "missing_image"
)

// Rejection explains why a raw record did not become a canonical Recipe.
// Reasons holds every structural check that failed, not just the first:
// the run report must show why each record was rejected.
type Rejection struct {
	Key     string
	Reasons []string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("record %s rejected: %s", r.Key, strings.Join(r.Reasons, "; "))
}

// reasonMissingRequired lists the absent required fields, e.g.
// "missing_required_fields: tags, instructions".
func reasonMissingRequired(fields []string) string {
	return "missing_required_fields: " + strings.Join(fields, ", ")
}

func reasonNotAList(field string) string {
	return field + "_not_a_list"
}

// renames maps source-specific field names onto canonical names. The rename
// table is consulted once at the start of Transform; every rule after that
// is source-agnostic.
var renames = map[Source]map[string]string{
	SourceDataset: {
		"recipe_id":           "id",
		"ingredientStrings":   "ingredients",
		"procesedIngredients": "processedIngredients", // typo preserved from the source data
	},
	SourceFile: {
		"recipeId":            "id",
		"procesedIngredients": "processedIngredients",
	},
	SourceScrape: {
		"yields": "numServings",
	},
}

var requiredListFields = []string{"tags", "instructions", "ingredients"}

// Transform converts one raw record into a canonical Recipe, or a Rejection
// carrying every failed structural check. It is a pure function: raw is
// copied before renaming and never mutated.
func Transform(raw Raw, source Source) (*Recipe, *Rejection) {
	rec := make(Raw, len(raw))
	for k, v := range raw {
		rec[k] = v
	}

	// 1. Per-source field renaming.
	for from, to := range renames[source] {
		if v, ok := rec[from]; ok {
			delete(rec, from)
			if _, exists := rec[to]; !exists {
				rec[to] = v
			}
		}
	}

	var reasons []string

	// 2. Presence of required fields.
	var missing []string
	for _, f := range requiredListFields {
		if v, ok := rec[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		reasons = append(reasons, reasonMissingRequired(missing))
	}

	// 3. Required fields must be lists. A scalar where a list is expected is
	// a distinct reason per field so the report pinpoints the offender.
	lists := make(map[string][]string, len(requiredListFields))
	for _, f := range requiredListFields {
		v, ok := rec[f]
		if !ok || v == nil {
			continue // already reported as missing
		}
		ss, isList := toStringList(v)
		if !isList {
			reasons = append(reasons, reasonNotAList(f))
			continue
		}
		lists[f] = ss
	}

	// 4. Image reference must resolve (URL or local path). Checked here so a
	// record missing both tags and image reports both reasons together.
	image := stringField(rec, "image")
	if image == "" {
		reasons = append(reasons, ReasonMissingImage)
	}

	if len(reasons) > 0 {
		return nil, &Rejection{Key: rawIdentity(rec), Reasons: reasons}
	}

	title := stringField(rec, "title")
	if title == "" {
		title = "Unknown"
	}

	out := &Recipe{
		Title:            title,
		Description:      stringField(rec, "description"),
		URL:              stringField(rec, "url"),
		Host:             stringField(rec, "host"),
		Image:            image,
		Author:           stringField(rec, "author"),
		Instructions:     lists["instructions"],
		Ingredients:      lists["ingredients"],
		Tags:             lists["tags"],
		CookingMethod:    stringField(rec, "cookingMethod"),
		HealthGrade:      stringField(rec, "healthGrade"),
		HealthScore:      floatField(rec, "healthScore"),
		CookTime:         floatField(rec, "cookTime"),
		PrepTime:         floatField(rec, "prepTime"),
		TotalTime:        floatField(rec, "totalTime"),
		Ratings:          floatField(rec, "ratings"),
		RatingsCount:     floatField(rec, "ratingsCount"),
		Channel:          stringField(rec, "channel"),
	}
	if out.Channel == "" {
		out.Channel = DefaultChannel
	}
	if groups, ok := rec["ingredientGroups"].([]any); ok {
		out.IngredientGroups = groups
	}
	if parsed, ok := rec["processedIngredients"].([]any); ok {
		out.ProcessedIngredients = parsed
	}

	// 4. Nutrient transform: mapping -> ordered list. Malformed nutrient
	// data is dropped, never fatal.
	out.Nutrients = normalizeNutrients(rec["nutrients"])

	// 5. Servings normalization: free text like "4 servings" parses to its
	// leading quantity; unparsable text leaves Servings nil (unknown).
	out.Servings = normalizeServings(rec["numServings"])

	out.ID = identityKey(rec, out)

	return out, nil
}

// toStringList accepts []string, []any of strings, or []any of mixed
// stringable scalars. Anything that is not a slice reports false.
func toStringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			switch s := e.(type) {
			case string:
				out = append(out, s)
			default:
				out = append(out, fmt.Sprintf("%v", s))
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func stringField(rec Raw, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}

func floatField(rec Raw, key string) *float64 {
	var f float64
	switch t := rec[key].(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	default:
		return nil
	}
	return &f
}

// valueUnitRe splits quantities like "13 g" or "280.5 kcal".
var valueUnitRe = regexp.MustCompile(`^\s*([\d.]+)\s*(.*?)\s*$`)

// normalizeNutrients converts a nutrient-name -> value mapping into an
// ordered list of {name, value, unit} entries. Order is by name so the
// output is stable across runs. A list input passes through after
// per-entry checks; other shapes produce an empty list.
func normalizeNutrients(v any) []Nutrient {
	switch t := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(t))
		for name := range t {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make([]Nutrient, 0, len(names))
		for _, name := range names {
			val := t[name]
			if val == nil {
				continue
			}
			out = append(out, splitNutrient(name, fmt.Sprintf("%v", val)))
		}
		return out

	case []Nutrient:
		return t

	case []any:
		var out []Nutrient
		for _, e := range t {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			if name == "" {
				continue
			}
			val, _ := m["value"].(string)
			if val == "" {
				if q, ok := m["quantity"].(string); ok {
					val = q
				}
			}
			unit, _ := m["unit"].(string)
			n := Nutrient{Name: name, Value: val, Unit: unit}
			if n.Unit == "" {
				n = splitNutrient(name, val)
			}
			out = append(out, n)
		}
		return out

	default:
		return nil
	}
}

func splitNutrient(name, quantity string) Nutrient {
	m := valueUnitRe.FindStringSubmatch(quantity)
	if m == nil || m[1] == "" {
		return Nutrient{Name: name, Value: quantity}
	}
	return Nutrient{Name: name, Value: m[1], Unit: m[2]}
}

var leadingNumberRe = regexp.MustCompile(`\d+\.?\d*`)

// normalizeServings parses a serving count out of numbers or free text like
// "4 servings" / "4-6 servings". Unparsable input returns nil, the explicit
// "unknown" sentinel.
func normalizeServings(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		m := leadingNumberRe.FindString(t)
		if m == "" {
			return nil
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
