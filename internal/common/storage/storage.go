// Package storage provides object storage for submission source archives
// and problem test-data packages.
package storage

import (
	"context"
	"io"
)

// ObjectStorage abstracts the blob store.
type ObjectStorage interface {
	// PutObject uploads an object.
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error

	// GetObject downloads an object. The caller closes the reader.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// RemoveObject deletes an object.
	RemoveObject(ctx context.Context, bucket, key string) error

	// EnsureBucket creates the bucket if it does not exist.
	EnsureBucket(ctx context.Context, bucket string) error
}
