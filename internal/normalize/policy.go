package normalize

import (
	"fmt"
	"math"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// Range bounds a numeric column. Values outside [Min, Max] are treated as
// missing.
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Policy holds the data-quality constants applied by the Normalizer.
type Policy struct {
	// Ranges maps numeric column names to their plausible bounds.
	Ranges map[string]Range
	// NutriscoreGrades is the accepted set of (lower-case) grades.
	NutriscoreGrades []string
}

// numericColumns are the per-100g measurements, in schema order.
var numericColumns = []string{
	catalog.ColumnEnergy100g,
	catalog.ColumnFat100g,
	catalog.ColumnSugars100g,
	catalog.ColumnSalt100g,
	catalog.ColumnProteins100g,
}

// DefaultPolicy returns the default plausibility ranges. Energy is in kJ per
// 100g (pure fat is about 3700 kJ); mass fields are grams per 100g.
func DefaultPolicy() Policy {
	return Policy{
		Ranges: map[string]Range{
			catalog.ColumnEnergy100g:   {Min: 0, Max: 4000},
			catalog.ColumnFat100g:      {Min: 0, Max: 100},
			catalog.ColumnSugars100g:   {Min: 0, Max: 100},
			catalog.ColumnSalt100g:     {Min: 0, Max: 100},
			catalog.ColumnProteins100g: {Min: 0, Max: 100},
			catalog.ColumnNovaGroup:    {Min: 1, Max: 4},
		},
		NutriscoreGrades: []string{"a", "b", "c", "d", "e"},
	}
}

// WithRanges returns a copy of p with the given ranges overriding its own.
func (p Policy) WithRanges(overrides map[string]Range) Policy {
	merged := make(map[string]Range, len(p.Ranges)+len(overrides))
	for k, v := range p.Ranges {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	p.Ranges = merged
	return p
}

// Validate checks that every range is well formed and names a numeric column.
func (p Policy) Validate() error {
	for col, r := range p.Ranges {
		if !isRangedColumn(col) {
			return fmt.Errorf("normalize.ranges: %q is not a numeric column", col)
		}
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
			return fmt.Errorf("normalize.ranges.%s: min %v must be <= max %v", col, r.Min, r.Max)
		}
	}
	return nil
}

func isRangedColumn(col string) bool {
	if col == catalog.ColumnNovaGroup {
		return true
	}
	for _, c := range numericColumns {
		if c == col {
			return true
		}
	}
	return false
}
