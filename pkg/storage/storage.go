// Package storage provides blob storage for closeout documents and
// certificate files, plus signed time-limited view URLs.
package storage

import (
	"context"
	"io"
)

// Store abstracts the document blob store. Keys are opaque slash-separated
// paths scoped per workflow.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
