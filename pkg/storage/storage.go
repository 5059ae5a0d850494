// Package storage keeps uploaded admission documents on local disk or in an
// S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a stored object does not exist.
var ErrNotFound = errors.New("stored object not found")

// Store is the contract shared by storage backends. Keys are slash separated
// relative paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
