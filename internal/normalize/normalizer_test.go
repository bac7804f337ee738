package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

func rawDataset(t *testing.T, payload string) catalog.RawDataset {
	t.Helper()
	var ds catalog.RawDataset
	require.NoError(t, json.Unmarshal([]byte(payload), &ds))
	return ds
}

func TestNormalizeDeduplicatesLastWins(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":"1","product_name":"A"},
		{"code":"2","product_name":"B"},
		{"code":"1","product_name":"A2"}
	]`)

	out, stats := New(DefaultPolicy(), nil).Normalize(raw)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].Code)
	assert.Equal(t, "A2", out[0].ProductName)
	assert.Equal(t, "2", out[1].Code)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, stats.Input)
	assert.Equal(t, 2, stats.Output)
}

func TestNormalizeDropsRecordsWithoutRequiredFields(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":"1","product_name":"   "},
		{"product_name":"orphan"},
		{"code":"","product_name":"blank code"},
		{"code":"3","product_name":"Kept"},
		{"code":"4","product_name":null}
	]`)

	out, stats := New(DefaultPolicy(), nil).Normalize(raw)
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].Code)
	assert.Equal(t, 2, stats.DroppedMissingID)
	assert.Equal(t, 2, stats.DroppedMissingName)
	assert.Equal(t, 4, stats.Dropped())
}

func TestNormalizeDroppedDuplicateDoesNotEraseValidRecord(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":"1","product_name":"Valid"},
		{"code":"1","product_name":""}
	]`)

	out, _ := New(DefaultPolicy(), nil).Normalize(raw)
	require.Len(t, out, 1)
	assert.Equal(t, "Valid", out[0].ProductName)
}

func TestNormalizeNumericRules(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":"1","product_name":"Zero sugar","sugars_100g":0,"fat_100g":-5,"salt_100g":"1,2",
		 "energy_100g":99999,"proteins_100g":"n/a"}
	]`)

	out, stats := New(DefaultPolicy(), nil).Normalize(raw)
	require.Len(t, out, 1)
	p := out[0]

	require.NotNil(t, p.Sugars100g)
	assert.Equal(t, 0.0, *p.Sugars100g)
	assert.Nil(t, p.Fat100g)
	require.NotNil(t, p.Salt100g)
	assert.InDelta(t, 1.2, *p.Salt100g, 1e-9)
	assert.Nil(t, p.Energy100g)
	assert.Nil(t, p.Proteins100g)

	assert.Equal(t, 1, stats.Outliers[catalog.ColumnFat100g])
	assert.Equal(t, 1, stats.Outliers[catalog.ColumnEnergy100g])
	assert.Zero(t, stats.Outliers[catalog.ColumnProteins100g])
	assert.Equal(t, 1, stats.Nulls[catalog.ColumnFat100g])
}

func TestNormalizeCategoricalRules(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":"1","product_name":"Ok","nutriscore_grade":" B ","nova_group":"4"},
		{"code":"2","product_name":"Bad grade","nutriscore_grade":"unknown","nova_group":2.5},
		{"code":"3","product_name":"Out of range","nova_group":7}
	]`)

	out, stats := New(DefaultPolicy(), nil).Normalize(raw)
	require.Len(t, out, 3)

	require.NotNil(t, out[0].NutriscoreGrade)
	assert.Equal(t, "b", *out[0].NutriscoreGrade)
	require.NotNil(t, out[0].NovaGroup)
	assert.Equal(t, int32(4), *out[0].NovaGroup)

	assert.Nil(t, out[1].NutriscoreGrade)
	assert.Nil(t, out[1].NovaGroup)
	assert.Nil(t, out[2].NovaGroup)
	assert.Equal(t, 1, stats.Outliers[catalog.ColumnNutriscoreGrade])
	assert.Equal(t, 2, stats.Outliers[catalog.ColumnNovaGroup])
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":3017620422003,"product_name":"  Nutella   Pâte à tartiner ",
		 "brands":"Ferrero,  FERRERO ,Nutella","categories":"Snacks, Sweet snacks",
		 "labels_tags":["en:green-dot","en:Green-Dot",""],"packaging_tags":[],
		 "ingredients_text":"Sucre,\n huile de palme"}
	]`)

	out, _ := New(DefaultPolicy(), nil).Normalize(raw)
	require.Len(t, out, 1)
	p := out[0]

	assert.Equal(t, "3017620422003", p.Code)
	assert.Equal(t, "Nutella Pâte à tartiner", p.ProductName)
	require.NotNil(t, p.Brands)
	assert.Equal(t, "ferrero, nutella", *p.Brands)
	require.NotNil(t, p.Categories)
	assert.Equal(t, "snacks, sweet snacks", *p.Categories)
	require.NotNil(t, p.LabelsTags)
	assert.Equal(t, "en:green-dot", *p.LabelsTags)
	assert.Nil(t, p.PackagingTags)
	assert.Nil(t, p.CountriesTags)
	require.NotNil(t, p.IngredientsText)
	assert.Equal(t, "Sucre, huile de palme", *p.IngredientsText)
}

func TestNormalizeEmptyInput(t *testing.T) {
	t.Parallel()

	out, stats := New(DefaultPolicy(), nil).Normalize(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, stats.Output)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":"1","product_name":" A  b ","brands":"X, y","nova_group":3,"energy_100g":"2100,5",
		 "fat_100g":30.25,"countries_tags":["en:France","en:belgium"],"nutriscore_grade":"E"},
		{"code":"2","product_name":"C","sugars_100g":0,"salt_100g":150},
		{"code":"1","product_name":"A again"}
	]`)

	first := Normalize(raw)
	second := Normalize(first.Raw())
	assert.Equal(t, first, second)
}

func TestNormalizeCustomRanges(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy().WithRanges(map[string]Range{
		catalog.ColumnSugars100g: {Min: 0, Max: 50},
	})
	require.NoError(t, policy.Validate())

	raw := rawDataset(t, `[{"code":"1","product_name":"Sweet","sugars_100g":60,"fat_100g":60}]`)
	out, _ := New(policy, nil).Normalize(raw)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Sugars100g)
	require.NotNil(t, out[0].Fat100g)
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultPolicy().Validate())
	require.Error(t, DefaultPolicy().WithRanges(map[string]Range{"brands": {Min: 0, Max: 1}}).Validate())
	require.Error(t, DefaultPolicy().WithRanges(map[string]Range{catalog.ColumnFat100g: {Min: 5, Max: 1}}).Validate())
}

func TestBuildProfile(t *testing.T) {
	t.Parallel()

	raw := rawDataset(t, `[
		{"code":"1","product_name":"A","fat_100g":1},
		{"code":"2","product_name":null},
		{"code":"3","brands":"x"}
	]`)

	profile := BuildProfile(raw, DefaultSampleSize+5)
	assert.Equal(t, 3, profile.Records)
	require.Len(t, profile.Sample, 3)

	names := make([]string, 0, len(profile.Columns))
	byName := make(map[string]ColumnProfile)
	for _, col := range profile.Columns {
		names = append(names, col.Name)
		byName[col.Name] = col
	}
	assert.Equal(t, []string{"brands", "code", "fat_100g", "product_name"}, names)
	assert.Equal(t, 1, byName["product_name"].Present)
	assert.Equal(t, 2, byName["product_name"].Missing)
	assert.Equal(t, 1, byName["product_name"].Kinds["null"])
	assert.Equal(t, 3, byName["code"].Present)

	assert.Len(t, BuildProfile(raw, 1).Sample, 1)
	assert.Empty(t, BuildProfile(nil, 3).Columns)
}
