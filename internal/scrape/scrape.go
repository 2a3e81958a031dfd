// Package scrape fetches a recipe page and extracts a raw record from it.
//
// Extraction prefers schema.org Recipe JSON-LD, which most recipe sites
// embed; a small set of CSS selector fallbacks fills gaps for pages without
// structured data. The output is a recipe.Raw ready for the scrape-source
// transform; the record id is left unset so the ingestion key derives from
// the page URL.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ingest/internal/recipe"
)

// NewClient returns an HTTP client tuned for page fetching.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 8,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

const userAgent = "ingest/1.0 (+recipe collection)"

// Fetch downloads rawURL and extracts a raw recipe record from its HTML.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (recipe.Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Discard the body so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Extract(string(body), rawURL)
}

// Extract parses page HTML and builds a raw recipe record.
//
// JSON-LD wins field by field; selector fallbacks only fill fields the
// structured data left empty. Missing fields are simply absent from the
// result, validation downstream decides whether the record is usable.
func Extract(html, pageURL string) (recipe.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	raw := recipe.Raw{"url": pageURL}
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		raw["host"] = strings.TrimPrefix(u.Host, "www.")
	}

	if ld := findRecipeLD(doc); ld != nil {
		applyLD(raw, ld)
	}
	applyFallbacks(raw, doc)

	if _, ok := raw["title"]; !ok {
		return nil, fmt.Errorf("extract %s: no recipe found on page", pageURL)
	}
	return raw, nil
}

// findRecipeLD scans ld+json script blocks for a schema.org Recipe node.
// Top-level objects, arrays and @graph containers are all searched; the
// first Recipe node wins. Malformed blocks are skipped, sites routinely
// ship several and only some parse.
func findRecipeLD(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var node any
		if err := json.Unmarshal([]byte(sel.Text()), &node); err != nil {
			return true
		}
		if rec := recipeNode(node); rec != nil {
			found = rec
			return false
		}
		return true
	})
	return found
}

func recipeNode(node any) map[string]any {
	switch v := node.(type) {
	case map[string]any:
		if isRecipeType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"].([]any); ok {
			return recipeNode(graph)
		}
	case []any:
		for _, item := range v {
			if rec := recipeNode(item); rec != nil {
				return rec
			}
		}
	}
	return nil
}

func isRecipeType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Recipe"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

// applyLD copies schema.org Recipe fields into raw under the ingestion
// field names.
func applyLD(raw recipe.Raw, ld map[string]any) {
	if s := ldString(ld["name"]); s != "" {
		raw["title"] = s
	}
	if s := ldString(ld["description"]); s != "" {
		raw["description"] = s
	}
	if s := ldImage(ld["image"]); s != "" {
		raw["image"] = s
	}
	if s := ldAuthor(ld["author"]); s != "" {
		raw["author"] = s
	}
	if s := ldString(ld["recipeYield"]); s != "" {
		raw["yields"] = s
	}
	if s := ldString(ld["cookingMethod"]); s != "" {
		raw["cookingMethod"] = s
	}

	if list := ldStringList(ld["recipeIngredient"]); len(list) > 0 {
		raw["ingredients"] = list
	}
	if list := ldInstructions(ld["recipeInstructions"]); len(list) > 0 {
		raw["instructions"] = list
	}
	if tags := ldTags(ld); len(tags) > 0 {
		raw["tags"] = tags
	}

	if n := ldNutrition(ld["nutrition"]); len(n) > 0 {
		raw["nutrients"] = n
	}

	for ldKey, rawKey := range map[string]string{
		"cookTime":  "cookTime",
		"prepTime":  "prepTime",
		"totalTime": "totalTime",
	} {
		if mins, ok := parseISODuration(ldString(ld[ldKey])); ok {
			raw[rawKey] = mins
		}
	}

	if agg, ok := ld["aggregateRating"].(map[string]any); ok {
		if v, ok := ldFloat(agg["ratingValue"]); ok {
			raw["ratings"] = v
		}
		if v, ok := ldFloat(agg["ratingCount"]); ok {
			raw["ratingsCount"] = v
		}
	}
}

// applyFallbacks fills fields JSON-LD did not provide from common page
// markup.
func applyFallbacks(raw recipe.Raw, doc *goquery.Document) {
	fill := func(key string, get func() string) {
		if _, ok := raw[key]; ok {
			return
		}
		if v := strings.TrimSpace(get()); v != "" {
			raw[key] = v
		}
	}

	fill("title", func() string {
		if v := doc.Find(`[itemprop="name"]`).First().Text(); strings.TrimSpace(v) != "" {
			return v
		}
		return doc.Find("h1").First().Text()
	})
	fill("image", func() string {
		if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
			return v
		}
		v, _ := doc.Find(`[itemprop="image"]`).First().Attr("src")
		return v
	})
	fill("description", func() string {
		if v, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
			return v
		}
		v, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
		return v
	})

	if _, ok := raw["ingredients"]; !ok {
		var vals []string
		doc.Find(`[itemprop="recipeIngredient"]`).Each(func(_ int, sel *goquery.Selection) {
			if v := strings.TrimSpace(sel.Text()); v != "" {
				vals = append(vals, v)
			}
		})
		if len(vals) > 0 {
			raw["ingredients"] = vals
		}
	}
	if _, ok := raw["instructions"]; !ok {
		var vals []string
		doc.Find(`[itemprop="recipeInstructions"]`).Each(func(_ int, sel *goquery.Selection) {
			if v := strings.TrimSpace(sel.Text()); v != "" {
				vals = append(vals, v)
			}
		})
		if len(vals) > 0 {
			raw["instructions"] = vals
		}
	}
}

func ldString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []any:
		if len(s) > 0 {
			return ldString(s[0])
		}
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func ldFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// ldImage handles the three shapes sites use for image: a bare URL, a list
// of URLs, or an ImageObject.
func ldImage(v any) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []any:
		if len(img) > 0 {
			return ldImage(img[0])
		}
	case map[string]any:
		return ldString(img["url"])
	}
	return ""
}

func ldAuthor(v any) string {
	switch a := v.(type) {
	case string:
		return strings.TrimSpace(a)
	case []any:
		if len(a) > 0 {
			return ldAuthor(a[0])
		}
	case map[string]any:
		return ldString(a["name"])
	}
	return ""
}

func ldStringList(v any) []string {
	var out []string
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s := ldString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(list); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ldInstructions flattens recipeInstructions: plain strings, HowToStep
// objects, and HowToSection containers with nested steps.
func ldInstructions(v any) []string {
	var out []string
	var walk func(any)
	walk = func(node any) {
		switch n := node.(type) {
		case string:
			if s := strings.TrimSpace(n); s != "" {
				out = append(out, s)
			}
		case []any:
			for _, item := range n {
				walk(item)
			}
		case map[string]any:
			if items, ok := n["itemListElement"]; ok {
				walk(items)
				return
			}
			if s := ldString(n["text"]); s != "" {
				out = append(out, s)
			}
		}
	}
	walk(v)
	return out
}

// ldTags merges keywords (CSV string or list) with recipeCategory and
// recipeCuisine, deduplicated case-insensitively in first-seen order.
func ldTags(ld map[string]any) []string {
	var parts []string
	switch kw := ld["keywords"].(type) {
	case string:
		for _, p := range strings.Split(kw, ",") {
			parts = append(parts, p)
		}
	case []any:
		for _, item := range kw {
			parts = append(parts, ldString(item))
		}
	}
	parts = append(parts, ldStringList(ld["recipeCategory"])...)
	parts = append(parts, ldStringList(ld["recipeCuisine"])...)

	seen := make(map[string]bool)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return out
}

// ldNutrition converts a NutritionInformation object into a name -> amount
// map, e.g. {"calories": "280 kcal", "protein": "13 g"}. The schema.org
// "Content" suffix is stripped from property names.
func ldNutrition(v any) map[string]any {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any)
	for k, val := range obj {
		if strings.HasPrefix(k, "@") {
			continue
		}
		s := ldString(val)
		if s == "" {
			continue
		}
		name := strings.TrimSuffix(k, "Content")
		out[name] = s
	}
	return out
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration converts an ISO 8601 duration like "PT1H30M" to whole
// minutes. Sub-minute remainders round down.
func parseISODuration(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	atoi := func(s string) float64 {
		if s == "" {
			return 0
		}
		n, _ := strconv.Atoi(s)
		return float64(n)
	}
	days, hours, mins, secs := atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4])
	total := days*24*60 + hours*60 + mins + float64(int(secs)/60)
	if total == 0 && s != "PT0M" && s != "PT0S" && s != "P0D" {
		return 0, false
	}
	return total, true
}
