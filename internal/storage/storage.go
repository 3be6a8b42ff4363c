// Package storage keeps backup archives behind a small object-store interface.
// Two backends exist: a local directory and an S3-compatible bucket (MinIO).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"protonmc/internal/config"
)

var (
	// ErrObjectNotFound is returned by Get and Delete for unknown keys.
	ErrObjectNotFound = errors.New("object not found")
	// ErrPresignUnsupported is returned by backends that cannot mint download URLs.
	ErrPresignUnsupported = errors.New("presigned urls not supported")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is a reusable object storage client interface.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New builds the backend selected by cfg.Storage.Driver.
func New(cfg *config.AppConfig) (Storage, error) {
	switch cfg.Storage.Driver {
	case "minio", "s3":
		return NewMinIO(cfg.MinIO)
	case "local", "":
		return NewLocal(cfg.Storage.BackupDir)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
