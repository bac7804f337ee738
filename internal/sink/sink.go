// Package sink persists run artifacts: the verbatim raw dataset as JSON and
// the cleaned table as Parquet. Every write is atomic.
package sink

import (
	"fmt"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/catalog-pipeline/internal/hash/sha256"
)

// Artifact kinds, also used as metric labels.
const (
	KindRaw       = "raw"
	KindPartial   = "partial"
	KindProcessed = "processed"
)

// Artifact describes one file written by a sink.
type Artifact struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Rows   int    `json:"rows"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

func checksum(hasher catalog.Hasher, data []byte) (string, error) {
	if hasher == nil {
		hasher = sha256.New()
	}
	sum, err := hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return sum, nil
}
