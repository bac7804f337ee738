package sink

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

// KindSuggestions labels advisory cleaning notes.
const KindSuggestions = "suggestions"

// WriteSuggestions stores advisory Markdown as <dir>/<name>_<ts>.suggestions.md.
func WriteSuggestions(dir, name string, ts time.Time, text string, hasher catalog.Hasher) (Artifact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Artifact{}, catalog.ErrEmptyDataset
	}
	path := filepath.Join(dir, FileName(name, ts, ".suggestions.md"))
	payload := []byte(text + "\n")

	sum, err := checksum(hasher, payload)
	if err != nil {
		return Artifact{}, &catalog.IOError{Op: "encode", Path: path, Err: err}
	}
	if err := writeAtomic(path, payload); err != nil {
		return Artifact{}, err
	}
	return Artifact{Kind: KindSuggestions, Path: path, Bytes: int64(len(payload)), SHA256: sum}, nil
}
