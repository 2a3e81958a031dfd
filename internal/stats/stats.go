// Package stats summarizes the recipe corpus already held by a document
// store: tag and host distributions, nutrient coverage, and field gaps.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"ingest/internal/docstore"
	"ingest/internal/recipe"
)

// Summary aggregates one full pass over the store.
type Summary struct {
	Documents int `json:"documents"`

	Tags        map[string]int `json:"tags"`
	Hosts       map[string]int `json:"hosts"`
	Channels    map[string]int `json:"channels"`
	Ingredients map[string]int `json:"ingredients"`

	WithNutrients   int `json:"with_nutrients"`
	WithImage       int `json:"with_image"`
	WithServings    int `json:"with_servings"`
	WithHealthScore int `json:"with_health_score"`

	Undecodable []string `json:"undecodable,omitempty"`
}

// Collect reads every document from the store in pages of pageSize and
// aggregates a Summary. Documents that fail to decode are counted and
// listed by id rather than aborting the pass.
func Collect(ctx context.Context, store docstore.Store, pageSize int) (*Summary, error) {
	if pageSize <= 0 {
		pageSize = 200
	}

	existing, err := store.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	ids := docstore.SortedKeys(existing)

	s := &Summary{
		Tags:        make(map[string]int),
		Hosts:       make(map[string]int),
		Channels:    make(map[string]int),
		Ingredients: make(map[string]int),
	}

	for start := 0; start < len(ids); start += pageSize {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}

		docs, err := store.GetBatch(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("get batch: %w", err)
		}

		for _, id := range ids[start:end] {
			doc, ok := docs[id]
			if !ok {
				continue
			}
			var rec recipe.Recipe
			if err := json.Unmarshal(doc, &rec); err != nil {
				s.Undecodable = append(s.Undecodable, id)
				continue
			}
			s.add(&rec)
		}
	}

	return s, nil
}

func (s *Summary) add(rec *recipe.Recipe) {
	s.Documents++

	for _, tag := range rec.Tags {
		if t := strings.ToLower(strings.TrimSpace(tag)); t != "" {
			s.Tags[t]++
		}
	}
	for _, ing := range rec.Ingredients {
		if i := strings.ToLower(strings.TrimSpace(ing)); i != "" {
			s.Ingredients[i]++
		}
	}
	if rec.Host != "" {
		s.Hosts[rec.Host]++
	}
	if rec.Channel != "" {
		s.Channels[rec.Channel]++
	}

	if len(rec.Nutrients) > 0 {
		s.WithNutrients++
	}
	if rec.Image != "" {
		s.WithImage++
	}
	if rec.Servings != nil {
		s.WithServings++
	}
	if rec.HealthScore != nil {
		s.WithHealthScore++
	}
}

// Print writes a readable summary: coverage counters plus the topN entries
// of each distribution.
func (s *Summary) Print(w io.Writer, topN int) {
	if topN <= 0 {
		topN = 10
	}

	fmt.Fprintf(w, "documents: %d\n", s.Documents)
	fmt.Fprintf(w, "with image: %d\n", s.WithImage)
	fmt.Fprintf(w, "with nutrients: %d\n", s.WithNutrients)
	fmt.Fprintf(w, "with servings: %d\n", s.WithServings)
	fmt.Fprintf(w, "with health score: %d\n", s.WithHealthScore)
	if len(s.Undecodable) > 0 {
		fmt.Fprintf(w, "undecodable: %d\n", len(s.Undecodable))
	}

	printTop(w, "tags", s.Tags, topN)
	printTop(w, "hosts", s.Hosts, topN)
	printTop(w, "channels", s.Channels, topN)
	printTop(w, "ingredients", s.Ingredients, topN)
}

// WriteFile writes the full summary as indented JSON.
func (s *Summary) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// printTop lists the topN most frequent entries; ties break alphabetically
// so output is stable.
func printTop(w io.Writer, label string, counts map[string]int, topN int) {
	if len(counts) == 0 {
		return
	}

	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}

	fmt.Fprintf(w, "top %s:\n", label)
	for _, e := range entries {
		fmt.Fprintf(w, "  %6d  %s\n", e.count, e.name)
	}
}
