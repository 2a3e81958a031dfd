// Package query turns a declarative filter expression into a row predicate.
//
// A filter expression is a map of "column" or "column__operator" keys to
// comparison values. Expressions are validated against the dataset schema
// before any row is touched: an unknown column or a type-incompatible
// operator fails the whole invocation up front instead of producing a
// silently empty result.
package query

import (
	"fmt"
	"sort"
	"strings"

	"ingest/internal/dataset"
	"ingest/internal/recipe"
)

// Op enumerates the supported comparison operators.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpContains
)

var opNames = map[string]Op{
	"eq":       OpEq,
	"ne":       OpNe,
	"lt":       OpLt,
	"le":       OpLe,
	"gt":       OpGt,
	"ge":       OpGe,
	"in":       OpIn,
	"contains": OpContains,
}

func (o Op) String() string {
	for name, op := range opNames {
		if op == o {
			return name
		}
	}
	return "unknown"
}

// Filter is one parsed predicate term.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Predicate reports whether a row belongs to the result set.
type Predicate func(recipe.Raw) bool

// UnknownColumnError names the offending column and the valid alternatives.
type UnknownColumnError struct {
	Column string
	Valid  []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q (available: %s)", e.Column, strings.Join(e.Valid, ", "))
}

// TypeMismatchError reports an operator applied to a column whose declared
// type cannot support it.
type TypeMismatchError struct {
	Column string
	Op     Op
	Kind   dataset.Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("operator %s not defined for column %q of type %s", e.Op, e.Column, e.Kind)
}

// splitKey separates "column__op" into its parts. The split is on the last
// "__" so column names containing "__" still resolve; no suffix means eq.
func splitKey(key string) (column, op string) {
	if i := strings.LastIndex(key, "__"); i >= 0 {
		return key[:i], key[i+2:]
	}
	return key, "eq"
}

// Evaluate validates expr against schema and builds the conjunction of its
// per-column predicates. The returned predicate is pure and can be applied
// to a dataset scan without materializing the dataset.
func Evaluate(schema *dataset.Schema, expr map[string]any) (Predicate, error) {
	filters, err := Parse(schema, expr)
	if err != nil {
		return nil, err
	}
	return Compile(filters), nil
}

// Parse resolves expression keys into Filter terms, fail-fast on unknown
// columns, unknown operators, and operator/type mismatches. Terms come back
// in sorted key order so errors and evaluation are deterministic.
func Parse(schema *dataset.Schema, expr map[string]any) ([]Filter, error) {
	keys := make([]string, 0, len(expr))
	for k := range expr {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make([]Filter, 0, len(keys))
	for _, key := range keys {
		colName, opName := splitKey(key)

		col, ok := schema.Lookup(colName)
		if !ok {
			return nil, &UnknownColumnError{Column: colName, Valid: schema.Names()}
		}

		op, ok := opNames[opName]
		if !ok {
			return nil, fmt.Errorf("unknown operator %q in filter key %q", opName, key)
		}

		if op == OpContains && col.Kind != dataset.KindString {
			return nil, &TypeMismatchError{Column: colName, Op: op, Kind: col.Kind}
		}
		if op == OpIn {
			if _, ok := toSlice(expr[key]); !ok {
				return nil, fmt.Errorf("operator in for column %q expects a sequence, got %T", colName, expr[key])
			}
		}

		filters = append(filters, Filter{Column: colName, Op: op, Value: expr[key]})
	}

	return filters, nil
}

// Compile builds the conjunction predicate from parsed terms. No OR
// semantics, no nesting: every term must hold.
func Compile(filters []Filter) Predicate {
	return func(row recipe.Raw) bool {
		for _, f := range filters {
			if !match(row[f.Column], f) {
				return false
			}
		}
		return true
	}
}

func match(cell any, f Filter) bool {
	switch f.Op {
	case OpEq:
		return equal(cell, f.Value)
	case OpNe:
		return !equal(cell, f.Value)
	case OpLt, OpLe, OpGt, OpGe:
		c, ok := compare(cell, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpLt:
			return c < 0
		case OpLe:
			return c <= 0
		case OpGt:
			return c > 0
		default:
			return c >= 0
		}
	case OpIn:
		vals, _ := toSlice(f.Value)
		for _, v := range vals {
			if equal(cell, v) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := cell.(string)
		if !ok {
			return false
		}
		sub := fmt.Sprintf("%v", f.Value)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	default:
		return false
	}
}
