package storage

import (
	"context"
	"io"
)

// Uploader is the boundary to external file storage. Document content never
// flows through this service's own persistence; only the returned reference
// is kept.
type Uploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}
