// Package storage defines the blob archive used to retain finished
// report JSON outside the primary store.
package storage

import (
	"context"
	"io"
)

// BlobStore writes immutable artifacts and returns a stable URI.
type BlobStore interface {
	// PutObject uploads data under path with the given content type and
	// returns the artifact URI.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
