package recipe

// Raw is an untyped record as produced by an ingress adapter (dataset row,
// JSON batch element, or scrape result). It is consumed exactly once by
// Transform and never outlives it.
type Raw map[string]any

// Source identifies which ingress produced a Raw record. Each source has its
// own field naming convention; Transform consults the per-source rename
// table before applying the source-agnostic validation rules.
type Source int

const (
	SourceDataset Source = iota // local tabular dataset
	SourceFile                  // legacy JSON batch file
	SourceScrape                // scraped web page
)

func (s Source) String() string {
	switch s {
	case SourceDataset:
		return "dataset"
	case SourceFile:
		return "file"
	case SourceScrape:
		return "scrape"
	default:
		return "unknown"
	}
}

// Nutrient is one entry of the structured nutrient list.
type Nutrient struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Recipe is the canonical, upload-ready record. Required fields (Title,
// Ingredients, Instructions, Tags) are guaranteed present and list-typed by
// Transform; a Recipe is immutable once handed to the upload orchestrator.
type Recipe struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Host        string `json:"host,omitempty"`
	Image       string `json:"image"`
	Author      string `json:"author,omitempty"`

	Instructions []string `json:"instructions"`
	Ingredients  []string `json:"ingredients"`
	Tags         []string `json:"tags"`

	IngredientGroups []any  `json:"ingredientGroups,omitempty"`
	CookingMethod    string `json:"cookingMethod,omitempty"`

	// ProcessedIngredients carries the structured ingredient parse some
	// sources provide alongside the plain strings.
	ProcessedIngredients []any `json:"processedIngredients,omitempty"`

	Nutrients   []Nutrient `json:"nutrients,omitempty"`
	HealthScore *float64   `json:"healthScore,omitempty"`
	HealthGrade string     `json:"healthGrade,omitempty"`

	// Servings is nil when the source value could not be parsed; an unknown
	// serving count never rejects a record.
	Servings  *float64 `json:"numServings"`
	CookTime  *float64 `json:"cookTime,omitempty"`
	PrepTime  *float64 `json:"prepTime,omitempty"`
	TotalTime *float64 `json:"totalTime,omitempty"`

	Ratings      *float64 `json:"ratings,omitempty"`
	RatingsCount *float64 `json:"ratingsCount,omitempty"`

	Channel string `json:"channel"`
}

// DefaultChannel is assigned to records that do not carry one.
const DefaultChannel = "discover"
