// Package sha256 produces the content checksums recorded for every written
// artifact (raw JSON, Parquet, suggestions) in the run summary and ledger.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher satisfies catalog.Hasher. Digests are lower-case hex, 64 characters,
// matching the output of sha256sum so operators can verify files by hand.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash never fails; the error is part of catalog.Hasher.
func (*Hasher) Hash(artifact []byte) (string, error) {
	digest := sha256.Sum256(artifact)
	return hex.EncodeToString(digest[:]), nil
}
