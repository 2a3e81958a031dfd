package dataset

import "sort"

// Kind is the declared type of a dataset column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindList // list of strings, pipe-joined in CSV cells
	KindJSON // arbitrary JSON document in the cell
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindList:
		return "list"
	case KindJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Column is one descriptor of the closed dataset schema.
type Column struct {
	Name string
	Kind Kind
}

// Schema is an ordered set of column descriptors with name lookup. It is
// constructed once at startup and passed explicitly into the query engine
// and the ingress reader.
type Schema struct {
	cols  []Column
	index map[string]int
}

func NewSchema(cols []Column) *Schema {
	s := &Schema{cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		s.index[c.Name] = i
	}
	return s
}

func (s *Schema) Columns() []Column { return s.cols }

func (s *Schema) Lookup(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.cols[i], true
}

// Names returns all column names sorted, for error messages.
func (s *Schema) Names() []string {
	out := make([]string, 0, len(s.cols))
	for _, c := range s.cols {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

// RecipeColumns is the schema of the local recipes dataset. The set is
// closed: filter expressions referencing anything else are rejected before
// evaluation.
func RecipeColumns() *Schema {
	return NewSchema([]Column{
		{"recipe_id", KindString},
		{"title", KindString},
		{"description", KindString},
		{"url", KindString},
		{"host", KindString},
		{"image", KindString},
		{"author", KindString},

		{"instructions", KindList},
		{"ingredientStrings", KindList},
		{"procesedIngredients", KindJSON}, // typo preserved from the source data
		{"ingredientGroups", KindJSON},

		{"tags", KindList},
		{"cookingMethod", KindString},

		{"nutrients", KindJSON},
		{"healthScore", KindFloat},
		{"healthGrade", KindString},

		{"numServings", KindString}, // free text like "4 servings"
		{"cookTime", KindInt},
		{"prepTime", KindInt},
		{"totalTime", KindInt},

		{"ratings", KindFloat},
		{"ratingsCount", KindInt},

		{"cluster_id", KindInt},
	})
}
