package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// PageRequest identifies one page of a category search.
type PageRequest struct {
	Category string
	Page     int
	PageSize int
}

// PageResponse is the decoded payload of one search page.
type PageResponse struct {
	Records []RawRecord
	// Total is the total-count hint reported by the API. It is only meaningful
	// when TotalKnown is set.
	Total      int
	TotalKnown bool
	Page       int
}

// RawRecord is one product exactly as the API returned it. Values are kept as
// undecoded JSON so the raw sink can persist them verbatim.
type RawRecord map[string]json.RawMessage

// RawDataset is the ordered set of raw records collected during one run.
type RawDataset []RawRecord

// FieldKind classifies the JSON value stored under a key.
type FieldKind int

// Field kinds. FieldAbsent means the key is not present at all.
const (
	FieldAbsent FieldKind = iota
	FieldNull
	FieldString
	FieldNumber
	FieldBool
	FieldArray
	FieldObject
)

// String returns a short label for logging.
func (k FieldKind) String() string {
	switch k {
	case FieldAbsent:
		return "absent"
	case FieldNull:
		return "null"
	case FieldString:
		return "string"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "bool"
	case FieldArray:
		return "array"
	case FieldObject:
		return "object"
	default:
		return "unknown"
	}
}

// Field is a typed view over a single raw value.
type Field struct {
	Kind FieldKind
	raw  json.RawMessage
}

// Field returns the value stored under key. Missing keys yield FieldAbsent.
func (r RawRecord) Field(key string) Field {
	raw, ok := r[key]
	if !ok {
		return Field{Kind: FieldAbsent}
	}
	return Field{Kind: classify(raw), raw: raw}
}

// Raw returns the undecoded JSON value.
func (f Field) Raw() json.RawMessage {
	return f.raw
}

// Text returns the value as a string. Numbers are rendered in their JSON form so
// identifiers sent as numbers still resolve.
func (f Field) Text() (string, bool) {
	switch f.Kind {
	case FieldString:
		var s string
		if err := json.Unmarshal(f.raw, &s); err != nil {
			return "", false
		}
		return s, true
	case FieldNumber:
		return string(bytes.TrimSpace(f.raw)), true
	default:
		return "", false
	}
}

// Number returns the value as a finite float64. Numeric strings are accepted,
// including a decimal comma.
func (f Field) Number() (float64, bool) {
	var (
		v   float64
		err error
	)
	switch f.Kind {
	case FieldNumber:
		v, err = strconv.ParseFloat(string(bytes.TrimSpace(f.raw)), 64)
	case FieldString:
		s, ok := f.Text()
		if !ok {
			return 0, false
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		if s == "" {
			return 0, false
		}
		v, err = strconv.ParseFloat(s, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Strings returns the string members of an array value. Non-string members are
// skipped.
func (f Field) Strings() ([]string, bool) {
	if f.Kind != FieldArray {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(f.raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if classify(item) != FieldString || json.Unmarshal(item, &s) != nil {
			continue
		}
		out = append(out, s)
	}
	return out, true
}

func classify(raw json.RawMessage) FieldKind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return FieldNull
	}
	switch trimmed[0] {
	case 'n':
		return FieldNull
	case '"':
		return FieldString
	case 't', 'f':
		return FieldBool
	case '[':
		return FieldArray
	case '{':
		return FieldObject
	default:
		return FieldNumber
	}
}

// Column names of the cleaned table, in output order.
const (
	ColumnCode            = "code"
	ColumnProductName     = "product_name"
	ColumnBrands          = "brands"
	ColumnCategories      = "categories"
	ColumnNutriscoreGrade = "nutriscore_grade"
	ColumnNovaGroup       = "nova_group"
	ColumnEnergy100g      = "energy_100g"
	ColumnFat100g         = "fat_100g"
	ColumnSugars100g      = "sugars_100g"
	ColumnSalt100g        = "salt_100g"
	ColumnProteins100g    = "proteins_100g"
	ColumnIngredientsText = "ingredients_text"
	ColumnPackagingTags   = "packaging_tags"
	ColumnLabelsTags      = "labels_tags"
	ColumnCountriesTags   = "countries_tags"
)

// Columns is the fixed schema of the cleaned table.
var Columns = []string{
	ColumnCode,
	ColumnProductName,
	ColumnBrands,
	ColumnCategories,
	ColumnNutriscoreGrade,
	ColumnNovaGroup,
	ColumnEnergy100g,
	ColumnFat100g,
	ColumnSugars100g,
	ColumnSalt100g,
	ColumnProteins100g,
	ColumnIngredientsText,
	ColumnPackagingTags,
	ColumnLabelsTags,
	ColumnCountriesTags,
}

// Product is one row of the cleaned table. Nil pointers are the null sentinel:
// the value was missing, unparsable, or outside its plausible range.
type Product struct {
	Code            string   `json:"code" parquet:"code"`
	ProductName     string   `json:"product_name" parquet:"product_name"`
	Brands          *string  `json:"brands" parquet:"brands,optional"`
	Categories      *string  `json:"categories" parquet:"categories,optional"`
	NutriscoreGrade *string  `json:"nutriscore_grade" parquet:"nutriscore_grade,optional"`
	NovaGroup       *int32   `json:"nova_group" parquet:"nova_group,optional"`
	Energy100g      *float64 `json:"energy_100g" parquet:"energy_100g,optional"`
	Fat100g         *float64 `json:"fat_100g" parquet:"fat_100g,optional"`
	Sugars100g      *float64 `json:"sugars_100g" parquet:"sugars_100g,optional"`
	Salt100g        *float64 `json:"salt_100g" parquet:"salt_100g,optional"`
	Proteins100g    *float64 `json:"proteins_100g" parquet:"proteins_100g,optional"`
	IngredientsText *string  `json:"ingredients_text" parquet:"ingredients_text,optional"`
	PackagingTags   *string  `json:"packaging_tags" parquet:"packaging_tags,optional"`
	LabelsTags      *string  `json:"labels_tags" parquet:"labels_tags,optional"`
	CountriesTags   *string  `json:"countries_tags" parquet:"countries_tags,optional"`
}

// CleanedDataset is the ordered processed table for one run.
type CleanedDataset []Product

// Raw converts a cleaned row back into the raw representation, one key per
// schema column. Feeding the result through the normalizer again yields the
// same row.
func (p Product) Raw() RawRecord {
	rec := make(RawRecord, len(Columns))
	set := func(key string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			payload = []byte("null")
		}
		rec[key] = payload
	}
	set(ColumnCode, p.Code)
	set(ColumnProductName, p.ProductName)
	set(ColumnBrands, p.Brands)
	set(ColumnCategories, p.Categories)
	set(ColumnNutriscoreGrade, p.NutriscoreGrade)
	set(ColumnNovaGroup, p.NovaGroup)
	set(ColumnEnergy100g, p.Energy100g)
	set(ColumnFat100g, p.Fat100g)
	set(ColumnSugars100g, p.Sugars100g)
	set(ColumnSalt100g, p.Salt100g)
	set(ColumnProteins100g, p.Proteins100g)
	set(ColumnIngredientsText, p.IngredientsText)
	set(ColumnPackagingTags, p.PackagingTags)
	set(ColumnLabelsTags, p.LabelsTags)
	set(ColumnCountriesTags, p.CountriesTags)
	return rec
}

// Raw converts every row back to raw form.
func (d CleanedDataset) Raw() RawDataset {
	out := make(RawDataset, 0, len(d))
	for _, p := range d {
		out = append(out, p.Raw())
	}
	return out
}
