package catalog

import (
	"sort"
	"strings"
)

// NutrientMean is the average of one per-100g column over its non-null cells.
type NutrientMean struct {
	Column string
	Mean   float64
	Count  int
}

// Summary describes a cleaned dataset for human inspection.
type Summary struct {
	Rows           int
	DistinctBrands int
	Means          []NutrientMean
	// Nutriscore counts rows per grade; null grades are counted under "".
	Nutriscore map[string]int
	// Missing counts null cells per optional column, in schema order.
	Missing []ColumnCount
}

// ColumnCount pairs a column name with a count.
type ColumnCount struct {
	Column string
	Count  int
}

// Summarize computes row, brand, nutrient and completeness statistics.
func Summarize(d CleanedDataset) Summary {
	s := Summary{Rows: len(d), Nutriscore: make(map[string]int)}

	brands := make(map[string]struct{})
	sums := make(map[string]float64)
	counts := make(map[string]int)
	missing := make(map[string]int)

	for _, p := range d {
		if p.Brands != nil {
			for _, b := range strings.Split(*p.Brands, ",") {
				if b = strings.TrimSpace(b); b != "" {
					brands[b] = struct{}{}
				}
			}
		}
		grade := ""
		if p.NutriscoreGrade != nil {
			grade = *p.NutriscoreGrade
		}
		s.Nutriscore[grade]++

		for col, v := range p.nutrients() {
			if v == nil {
				continue
			}
			sums[col] += *v
			counts[col]++
		}
		for col, v := range p.Raw() {
			if string(v) == "null" {
				missing[col]++
			}
		}
	}
	s.DistinctBrands = len(brands)

	for _, col := range nutrientColumns {
		if counts[col] == 0 {
			continue
		}
		s.Means = append(s.Means, NutrientMean{Column: col, Mean: sums[col] / float64(counts[col]), Count: counts[col]})
	}
	for _, col := range Columns {
		if n := missing[col]; n > 0 {
			s.Missing = append(s.Missing, ColumnCount{Column: col, Count: n})
		}
	}
	return s
}

// Grades returns the nutri-score keys sorted, with the null grade last.
func (s Summary) Grades() []string {
	out := make([]string, 0, len(s.Nutriscore))
	for g := range s.Nutriscore {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i] == "" || out[j] == "" {
			return out[j] == ""
		}
		return out[i] < out[j]
	})
	return out
}

var nutrientColumns = []string{
	ColumnEnergy100g,
	ColumnFat100g,
	ColumnSugars100g,
	ColumnSalt100g,
	ColumnProteins100g,
}

func (p Product) nutrients() map[string]*float64 {
	return map[string]*float64{
		ColumnEnergy100g:   p.Energy100g,
		ColumnFat100g:      p.Fat100g,
		ColumnSugars100g:   p.Sugars100g,
		ColumnSalt100g:     p.Salt100g,
		ColumnProteins100g: p.Proteins100g,
	}
}
