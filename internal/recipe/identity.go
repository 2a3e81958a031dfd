package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Identity keys must be stable across runs for the same logical recipe:
// re-uploading the same input must never create a duplicate remote document.
//
// Priority when several identity sources exist: an explicit ID field wins
// over any derivable content hash; the source URL hash wins over the
// title+ingredients hash.

var keyFolder = cases.Fold()

// canonicalKeyText normalizes text before hashing so cosmetically different
// inputs ("Tea " vs "tea") derive the same key.
func canonicalKeyText(s string) string {
	return keyFolder.String(norm.NFC.String(strings.TrimSpace(s)))
}

func hashKey(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(canonicalKeyText(p)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// URLKey derives the identity key for a record known only by its source URL.
func URLKey(url string) string {
	return hashKey(url)
}

// identityKey picks the identity for a transformed record. rec still holds
// the renamed raw fields so an explicit id survives even though Recipe.ID is
// assigned from here.
func identityKey(rec Raw, out *Recipe) string {
	if id := stringField(rec, "id"); id != "" {
		return id
	}
	if out.URL != "" {
		return URLKey(out.URL)
	}
	return contentKey(out.Title, out.Ingredients)
}

// contentKey hashes title plus the ingredient set. Ingredients are sorted so
// the key does not depend on their input order.
func contentKey(title string, ingredients []string) string {
	sorted := make([]string, len(ingredients))
	copy(sorted, ingredients)
	sort.Strings(sorted)
	return hashKey(append([]string{title}, sorted...)...)
}

// RawIdentity derives a best-effort identity for a record that failed
// validation, so report entries can still name it.
func RawIdentity(raw Raw, source Source) string {
	rec := make(Raw, len(raw))
	for k, v := range raw {
		rec[k] = v
	}
	for from, to := range renames[source] {
		if v, ok := rec[from]; ok {
			delete(rec, from)
			if _, exists := rec[to]; !exists {
				rec[to] = v
			}
		}
	}
	return rawIdentity(rec)
}

func rawIdentity(rec Raw) string {
	if id := stringField(rec, "id"); id != "" {
		return id
	}
	if url := stringField(rec, "url"); url != "" {
		return URLKey(url)
	}
	if title := stringField(rec, "title"); title != "" {
		if ss, ok := toStringList(rec["ingredients"]); ok {
			return contentKey(title, ss)
		}
		return hashKey(title)
	}
	return ""
}
