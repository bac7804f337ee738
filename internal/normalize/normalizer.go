// Package normalize turns heterogeneous raw product records into the fixed
// cleaned schema.
//
// Rules, applied per record and then across the dataset:
//   - records without an identifier (code) or a display name (product_name) are dropped;
//   - text is trimmed and internal whitespace collapsed; categorical fields and tag
//     lists are lower-cased while display names keep their casing;
//   - numeric fields that are missing, unparsable, or outside the policy range become
//     null (nil) and never zero; the record itself is retained;
//   - duplicate identifiers collapse to the last occurrence, kept at the position of
//     the first.
//
// Normalization is deterministic and idempotent.
package normalize

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// Stats summarizes what a Normalize call did.
type Stats struct {
	Input              int
	Output             int
	Duplicates         int
	DroppedMissingID   int
	DroppedMissingName int
	// Outliers counts values nulled for being outside their range or set.
	Outliers map[string]int
	// Nulls counts null cells per column in the output.
	Nulls map[string]int
}

// Dropped is the number of records removed for missing required fields.
func (s Stats) Dropped() int {
	return s.DroppedMissingID + s.DroppedMissingName
}

// Normalizer applies a Policy to raw datasets.
type Normalizer struct {
	policy Policy
	grades map[string]struct{}
	logger *zap.Logger
}

// New builds a Normalizer for policy.
func New(policy Policy, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	grades := make(map[string]struct{}, len(policy.NutriscoreGrades))
	for _, g := range policy.NutriscoreGrades {
		grades[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}
	return &Normalizer{policy: policy, grades: grades, logger: logger}
}

// Normalize cleans raw with the default policy.
func Normalize(raw catalog.RawDataset) catalog.CleanedDataset {
	out, _ := New(DefaultPolicy(), nil).Normalize(raw)
	return out
}

// Normalize converts raw into the cleaned table. An empty input yields an empty,
// non-nil dataset.
func (n *Normalizer) Normalize(raw catalog.RawDataset) (catalog.CleanedDataset, Stats) {
	stats := Stats{
		Input:    len(raw),
		Outliers: make(map[string]int),
		Nulls:    make(map[string]int, len(catalog.Columns)),
	}
	out := make(catalog.CleanedDataset, 0, len(raw))
	position := make(map[string]int, len(raw))

	for _, rec := range raw {
		product, ok := n.cleanRecord(rec, &stats)
		if !ok {
			continue
		}
		if idx, seen := position[product.Code]; seen {
			out[idx] = product
			stats.Duplicates++
			continue
		}
		position[product.Code] = len(out)
		out = append(out, product)
	}

	stats.Output = len(out)
	for _, p := range out {
		countNulls(p, stats.Nulls)
	}

	n.logger.Info("dataset normalized",
		zap.Int("input", stats.Input),
		zap.Int("output", stats.Output),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("dropped_missing_id", stats.DroppedMissingID),
		zap.Int("dropped_missing_name", stats.DroppedMissingName),
		zap.Any("outliers", stats.Outliers),
	)
	return out, stats
}

func (n *Normalizer) cleanRecord(rec catalog.RawRecord, stats *Stats) (catalog.Product, bool) {
	code := displayText(rec.Field(catalog.ColumnCode))
	if code == nil {
		stats.DroppedMissingID++
		return catalog.Product{}, false
	}
	name := displayText(rec.Field(catalog.ColumnProductName))
	if name == nil {
		stats.DroppedMissingName++
		n.logger.Debug("dropping record without name", zap.String("code", *code))
		return catalog.Product{}, false
	}

	return catalog.Product{
		Code:            *code,
		ProductName:     *name,
		Brands:          tagList(rec.Field(catalog.ColumnBrands)),
		Categories:      tagList(rec.Field(catalog.ColumnCategories)),
		NutriscoreGrade: n.grade(rec.Field(catalog.ColumnNutriscoreGrade), stats),
		NovaGroup:       n.novaGroup(rec.Field(catalog.ColumnNovaGroup), stats),
		Energy100g:      n.measure(rec, catalog.ColumnEnergy100g, stats),
		Fat100g:         n.measure(rec, catalog.ColumnFat100g, stats),
		Sugars100g:      n.measure(rec, catalog.ColumnSugars100g, stats),
		Salt100g:        n.measure(rec, catalog.ColumnSalt100g, stats),
		Proteins100g:    n.measure(rec, catalog.ColumnProteins100g, stats),
		IngredientsText: displayText(rec.Field(catalog.ColumnIngredientsText)),
		PackagingTags:   tagList(rec.Field(catalog.ColumnPackagingTags)),
		LabelsTags:      tagList(rec.Field(catalog.ColumnLabelsTags)),
		CountriesTags:   tagList(rec.Field(catalog.ColumnCountriesTags)),
	}, true
}

// measure reads a numeric column. Zero is a valid measurement and is kept.
func (n *Normalizer) measure(rec catalog.RawRecord, column string, stats *Stats) *float64 {
	v, ok := rec.Field(column).Number()
	if !ok {
		return nil
	}
	if r, bounded := n.policy.Ranges[column]; bounded && !r.Contains(v) {
		stats.Outliers[column]++
		return nil
	}
	return &v
}

func (n *Normalizer) novaGroup(f catalog.Field, stats *Stats) *int32 {
	v, ok := f.Number()
	if !ok {
		return nil
	}
	r, bounded := n.policy.Ranges[catalog.ColumnNovaGroup]
	if v != math.Trunc(v) || (bounded && !r.Contains(v)) || math.Abs(v) > math.MaxInt32 {
		stats.Outliers[catalog.ColumnNovaGroup]++
		return nil
	}
	group := int32(v)
	return &group
}

func (n *Normalizer) grade(f catalog.Field, stats *Stats) *string {
	g := categoricalText(f)
	if g == nil {
		return nil
	}
	if len(n.grades) > 0 {
		if _, ok := n.grades[*g]; !ok {
			stats.Outliers[catalog.ColumnNutriscoreGrade]++
			return nil
		}
	}
	return g
}

func countNulls(p catalog.Product, nulls map[string]int) {
	isNil := map[string]bool{
		catalog.ColumnBrands:          p.Brands == nil,
		catalog.ColumnCategories:      p.Categories == nil,
		catalog.ColumnNutriscoreGrade: p.NutriscoreGrade == nil,
		catalog.ColumnNovaGroup:       p.NovaGroup == nil,
		catalog.ColumnEnergy100g:      p.Energy100g == nil,
		catalog.ColumnFat100g:         p.Fat100g == nil,
		catalog.ColumnSugars100g:      p.Sugars100g == nil,
		catalog.ColumnSalt100g:        p.Salt100g == nil,
		catalog.ColumnProteins100g:    p.Proteins100g == nil,
		catalog.ColumnIngredientsText: p.IngredientsText == nil,
		catalog.ColumnPackagingTags:   p.PackagingTags == nil,
		catalog.ColumnLabelsTags:      p.LabelsTags == nil,
		catalog.ColumnCountriesTags:   p.CountriesTags == nil,
	}
	for col, null := range isNil {
		if null {
			nulls[col]++
		}
	}
}
