package pipeline

import "ingest/internal/recipe"

// Partition splits candidates into records not yet present remotely and
// already-present duplicates, by identity-key membership in existing.
//
// includeUploaded is an explicit override: when true every candidate is
// treated as new and the existing set is ignored entirely.
//
// The split is stable: each partition preserves the candidates' order.
// existing is fetched once per run (a ListIDs snapshot); the resolver never
// queries the store per record.
func Partition(candidates []*recipe.Recipe, existing map[string]struct{}, includeUploaded bool) (fresh, duplicate []*recipe.Recipe) {
	if includeUploaded {
		return candidates, nil
	}

	for _, rec := range candidates {
		if _, ok := existing[rec.ID]; ok {
			duplicate = append(duplicate, rec)
		} else {
			fresh = append(fresh, rec)
		}
	}
	return fresh, duplicate
}
