// Package storage keeps uploaded product images in S3-compatible object
// storage.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrKeyRequired is returned for an empty object key
var ErrKeyRequired = errors.New("storage key is required")

// ErrObjectNotFound is returned when an object does not exist
var ErrObjectNotFound = errors.New("storage object not found")

// DefaultPresignExpiry is used when the configuration leaves it unset
const DefaultPresignExpiry = 15 * time.Minute

// Object describes a stored object
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// ObjectStorage is implemented by S3Storage and MemoryStorage
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
	CheckBucket(ctx context.Context) error
}
