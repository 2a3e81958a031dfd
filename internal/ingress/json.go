// Package ingress reads raw recipe records from batch files.
package ingress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ingest/internal/recipe"
)

// ReadBatchFile parses a JSON batch file into raw records.
//
// Accepted shapes:
//   - a root array of objects, one record each
//   - a single root object, one record
//   - an envelope: a root object holding the records as an array of
//     objects under a known key (recipes, records, items, data, results)
//
// Malformed JSON fails the whole read; there is no per-record recovery at
// this stage.
func ReadBatchFile(path string) ([]recipe.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	recs, err := ReadBatch(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// ReadBatch streams records from r without buffering the whole array.
func ReadBatch(r io.Reader) ([]recipe.Raw, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("batch: empty input")
		}
		return nil, fmt.Errorf("batch: read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("batch: unsupported root token %T (want object or array)", tok)
	}

	switch d {
	case '[':
		recs, err := decodeArrayOfObjects(dec)
		if err != nil {
			return nil, err
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("batch: read array end: %w", err)
		} else if end != json.Delim(']') {
			return nil, fmt.Errorf("batch: expected ']', got %v", end)
		}
		return recs, nil

	case '{':
		return decodeEnvelopeOrSingle(dec)

	default:
		return nil, fmt.Errorf("batch: unsupported root delimiter %q", d)
	}
}

func decodeArrayOfObjects(dec *json.Decoder) ([]recipe.Raw, error) {
	var recs []recipe.Raw
	for dec.More() {
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("batch: decode element %d: %w", len(recs), err)
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("batch: element %d is not an object (got %T)", len(recs), raw)
		}
		recs = append(recs, recipe.Raw(obj))
	}
	return recs, nil
}

// envelopeKeys are the field names under which exports wrap their record
// list. Detection is restricted to these names: a recipe's own
// array-of-objects fields (ingredientGroups, list-form nutrients) must
// never be mistaken for an envelope.
var envelopeKeys = map[string]bool{
	"recipes": true,
	"records": true,
	"items":   true,
	"data":    true,
	"results": true,
}

// decodeEnvelopeOrSingle walks a root object after '{'. A known envelope
// key holding an array of objects is treated as the record list; any other
// root object is itself the single record.
func decodeEnvelopeOrSingle(dec *json.Decoder) ([]recipe.Raw, error) {
	single := make(recipe.Raw)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("batch: read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("batch: object key not a string (got %T)", keyTok)
		}

		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("batch: decode field %q: %w", key, err)
		}

		if arr, ok := val.([]any); ok && len(arr) > 0 && envelopeKeys[key] {
			if recs, ok := allObjects(arr); ok {
				// Envelope: drain the remaining fields so the input must
				// still be well-formed JSON end to end.
				for dec.More() {
					if _, err := dec.Token(); err != nil {
						return nil, fmt.Errorf("batch: skip envelope key: %w", err)
					}
					var skip any
					if err := dec.Decode(&skip); err != nil {
						return nil, fmt.Errorf("batch: skip envelope value: %w", err)
					}
				}
				if end, err := dec.Token(); err != nil {
					return nil, fmt.Errorf("batch: read object end: %w", err)
				} else if end != json.Delim('}') {
					return nil, fmt.Errorf("batch: expected '}', got %v", end)
				}
				return recs, nil
			}
		}

		single[key] = val
	}

	if end, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("batch: read object end: %w", err)
	} else if end != json.Delim('}') {
		return nil, fmt.Errorf("batch: expected '}', got %v", end)
	}

	return []recipe.Raw{single}, nil
}

func allObjects(arr []any) ([]recipe.Raw, bool) {
	recs := make([]recipe.Raw, 0, len(arr))
	for _, e := range arr {
		obj, ok := e.(map[string]any)
		if !ok {
			return nil, false
		}
		recs = append(recs, recipe.Raw(obj))
	}
	return recs, true
}
