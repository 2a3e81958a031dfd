// Package sample draws bounded, de-biased random samples from a filtered
// row set.
package sample

import (
	"fmt"
	"math/rand"

	"ingest/internal/recipe"
)

// InvalidArgumentError reports caller misuse (negative count). It fails the
// whole invocation before any record is processed.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return e.Msg }

// Rows picks min(count, len(rows)) rows uniformly without replacement.
// The same seed always yields the same selection and order; count == 0
// returns an empty (non-nil) slice.
func Rows(rows []recipe.Raw, count int, seed int64) ([]recipe.Raw, error) {
	if count < 0 {
		return nil, &InvalidArgumentError{Msg: fmt.Sprintf("sample count must be non-negative, got %d", count)}
	}
	if count == 0 {
		return []recipe.Raw{}, nil
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	if count > len(rows) {
		count = len(rows)
	}

	out := make([]recipe.Raw, count)
	for i := 0; i < count; i++ {
		out[i] = rows[idx[i]]
	}
	return out, nil
}
