package catalog

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a single search page.
type Fetcher interface {
	Fetch(ctx context.Context, request PageRequest) (PageResponse, error)
}

// Limiter spaces out outbound requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes artifact checksums.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// BlobStore mirrors finished artifacts and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}
