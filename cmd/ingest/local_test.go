package main

import (
	"reflect"
	"testing"
)

func TestSampleSeed(t *testing.T) {
	if got := sampleSeed(true, 42); got != 42 {
		t.Errorf("explicit seed = %d, want 42", got)
	}
	if got := sampleSeed(false, 0); got == 0 {
		t.Error("implicit seed = 0, want a clock-derived value")
	}
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]any
		wantErr bool
	}{
		{
			name: "default_eq_string",
			in:   []string{"healthGrade=A"},
			want: map[string]any{"healthGrade": "A"},
		},
		{
			name: "numeric_coercion",
			in:   []string{"cookTime__lt=15", "healthScore__ge=7.5"},
			want: map[string]any{"cookTime__lt": 15, "healthScore__ge": 7.5},
		},
		{
			name: "in_splits_on_commas",
			in:   []string{"healthGrade__in=A,B"},
			want: map[string]any{"healthGrade__in": []any{"A", "B"}},
		},
		{
			name: "spaces_trimmed",
			in:   []string{" title__contains = pasta "},
			want: map[string]any{"title__contains": "pasta"},
		},
		{
			name:    "missing_equals",
			in:      []string{"healthGrade"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFilters(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("parseFilters(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
