package frontage

import (
	"context"
	"io"
	"time"
)

// StoredObject is a single object fetched from the store, scoped to one
// request/response cycle. Metadata fields are nil or empty when the store
// did not report them; they are never defaulted.
type StoredObject struct {
	Body         io.ReadCloser
	Length       int64
	ContentType  string
	CacheControl string
	Expires      *time.Time
	LastModified *time.Time
}

// ObjectStore is the capability the resolution engine consumes from the
// underlying blob store.
//
// Implementations must return ErrNotFound (possibly wrapped) when the key
// is absent so callers can distinguish an expected miss from a transport
// failure.
type ObjectStore interface {
	// Get fetches an object by key. The caller owns the returned Body and
	// must close it, whether or not it reads it.
	Get(ctx context.Context, bucket, key string) (*StoredObject, error)

	// Presign produces a time-limited signed retrieval URL for an object.
	// The URL is request-specific and must not be cached.
	Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
