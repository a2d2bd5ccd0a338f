// Package storage provides the scratch space used by in-flight operations and
// optional publishing of finished artifacts to object storage.
package storage

import (
	"context"
	"errors"
)

// ErrS3NotConfigured is returned when publishing is attempted
// without an S3 bucket configured.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Publisher copies a finished artifact to durable remote storage.
type Publisher interface {
	// Publish uploads the file at path under key and returns its public URL.
	Publish(ctx context.Context, key, path string) (url string, err error)
}

// NopPublisher is used when no remote storage is configured.
type NopPublisher struct{}

// Publish always returns ErrS3NotConfigured.
func (NopPublisher) Publish(context.Context, string, string) (string, error) {
	return "", ErrS3NotConfigured
}
