package normalize

import (
	"strings"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// collapse trims s and folds every run of whitespace into a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// displayText keeps the original casing. Blank or non-text values are nil.
func displayText(f catalog.Field) *string {
	s, ok := f.Text()
	if !ok {
		return nil
	}
	s = collapse(s)
	if s == "" {
		return nil
	}
	return &s
}

// categoricalText is displayText folded to lower case.
func categoricalText(f catalog.Field) *string {
	s := displayText(f)
	if s == nil {
		return nil
	}
	lower := strings.ToLower(*s)
	return &lower
}

// tagList accepts a JSON array of strings or a comma-separated string and
// returns the lower-cased, de-duplicated items joined by ", ".
func tagList(f catalog.Field) *string {
	var items []string
	switch f.Kind {
	case catalog.FieldArray:
		items, _ = f.Strings()
	case catalog.FieldString:
		s, _ := f.Text()
		items = []string{s}
	default:
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			tag := strings.ToLower(collapse(part))
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil
	}
	joined := strings.Join(out, ", ")
	return &joined
}
