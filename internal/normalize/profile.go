package normalize

import (
	"sort"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// DefaultSampleSize is the number of raw records copied into a Profile.
const DefaultSampleSize = 3

// ColumnProfile describes one key observed across a raw dataset.
type ColumnProfile struct {
	Name    string         `json:"name"`
	Present int            `json:"present"`
	Missing int            `json:"missing"`
	Kinds   map[string]int `json:"kinds"`
}

// Profile is a compact description of a raw dataset: its columns, their value
// kinds, missing counts, and a few sample records.
type Profile struct {
	Records int                 `json:"records"`
	Columns []ColumnProfile     `json:"columns"`
	Sample  []catalog.RawRecord `json:"sample"`
}

// BuildProfile scans raw once. A key absent from a record, or explicitly null,
// counts as missing. Columns are sorted by name.
func BuildProfile(raw catalog.RawDataset, sampleSize int) Profile {
	if sampleSize < 0 {
		sampleSize = 0
	}
	byName := make(map[string]*ColumnProfile)
	for _, rec := range raw {
		for key := range rec {
			if _, ok := byName[key]; !ok {
				byName[key] = &ColumnProfile{Name: key, Kinds: make(map[string]int)}
			}
		}
	}

	for _, rec := range raw {
		for name, col := range byName {
			f := rec.Field(name)
			col.Kinds[f.Kind.String()]++
			if f.Kind == catalog.FieldAbsent || f.Kind == catalog.FieldNull {
				col.Missing++
				continue
			}
			col.Present++
		}
	}

	profile := Profile{
		Records: len(raw),
		Columns: make([]ColumnProfile, 0, len(byName)),
	}
	for _, col := range byName {
		profile.Columns = append(profile.Columns, *col)
	}
	sort.Slice(profile.Columns, func(i, j int) bool {
		return profile.Columns[i].Name < profile.Columns[j].Name
	})

	if sampleSize > len(raw) {
		sampleSize = len(raw)
	}
	profile.Sample = append([]catalog.RawRecord(nil), raw[:sampleSize]...)
	return profile
}
