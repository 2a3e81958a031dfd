package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ingest/internal/config"
	"ingest/internal/recipe"
)

// Predicate decides whether a decoded row belongs to the result set.
type Predicate func(recipe.Raw) bool

// Reader reads the local tabular dataset (CSV) against a declared schema.
// Rows are decoded cell-by-cell per the column kind and streamed, so a scan
// never materializes the whole file.
type Reader struct {
	path    string
	schema  *Schema
	sep     string // list-cell separator
	comma   rune
	hm      map[string]string // header_map: source header -> schema name
	lazyQ   bool
}

// Open prepares a Reader. Options:
//   - list_separator: joins/splits list cells (default "|")
//   - comma: CSV field delimiter (default ',')
//   - header_map: source header -> schema column name
//   - lazy_quotes: tolerate bare quotes
func Open(path string, schema *Schema, opt config.Options) *Reader {
	return &Reader{
		path:   path,
		schema: schema,
		sep:    opt.String("list_separator", "|"),
		comma:  opt.Rune("comma", ','),
		hm:     opt.StringMap("header_map"),
		lazyQ:  opt.Bool("lazy_quotes", false),
	}
}

func (r *Reader) Schema() *Schema { return r.schema }

// Scan streams every row matching pred into fn, in file order. fn returning
// an error stops the scan. Cell decode failures null the cell rather than
// failing the row; a malformed CSV record is skipped via onErr.
func (r *Reader) Scan(ctx context.Context, pred Predicate, fn func(recipe.Raw) error, onErr func(line int, err error)) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = r.comma
	cr.ReuseRecord = true
	cr.LazyQuotes = r.lazyQ
	cr.FieldsPerRecord = -1

	line := 0
	read := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := read()
	if err != nil {
		return fmt.Errorf("read dataset header: %w", err)
	}

	// Map source header positions onto schema columns. Unmapped headers are
	// ignored; schema columns absent from the file decode as nil.
	cols := r.schema.Columns()
	colIx := make([]int, len(cols))
	for i := range colIx {
		colIx[i] = -1
	}
	srcToIdx := make(map[string]int, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := r.hm[h]; ok {
			h = mapped
		}
		srcToIdx[h] = i
	}
	for t, c := range cols {
		if si, ok := srcToIdx[c.Name]; ok {
			colIx[t] = si
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		row := make(recipe.Raw, len(cols))
		for t, c := range cols {
			si := colIx[t]
			if si < 0 || si >= len(rec) {
				continue
			}
			v := decodeCell(rec[si], c.Kind, r.sep)
			if v != nil {
				row[c.Name] = v
			}
		}

		if pred != nil && !pred(row) {
			continue
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// Collect materializes the matching subset. Convenience for the pipeline,
// which needs the candidate set in memory to sample from it.
func (r *Reader) Collect(ctx context.Context, pred Predicate, onErr func(line int, err error)) ([]recipe.Raw, error) {
	var out []recipe.Raw
	err := r.Scan(ctx, pred, func(row recipe.Raw) error {
		out = append(out, row)
		return nil
	}, onErr)
	return out, err
}

// decodeCell converts one CSV cell into its declared kind. Empty cells and
// undecodable values are nil.
func decodeCell(cell string, kind Kind, sep string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	switch kind {
	case KindString:
		return cell

	case KindInt:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil
		}
		return n

	case KindFloat:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil
		}
		return f

	case KindList:
		parts := strings.Split(cell, sep)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out

	case KindJSON:
		var v any
		if err := json.Unmarshal([]byte(cell), &v); err != nil {
			return nil
		}
		return v

	default:
		return cell
	}
}
