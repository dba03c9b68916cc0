// Package core defines the blob store contract shared by the export
// artifact drivers.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names a blob backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverS3     Driver = "s3"
)

// ErrUnsupported is returned by drivers that cannot serve an operation
// (presigned URLs from the memory driver).
var ErrUnsupported = errors.New("blob: operation not supported by driver")

// PutOptions describe the stored object.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configure PresignURL. Only GET is supported.
type SignedURLOptions struct {
	Method string
	Expiry time.Duration
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a flat key space of immutable objects. Put is create-only:
// writing an existing key fails with sentinel.ErrConflict. Reads of a
// missing key fail with sentinel.ErrNotFound.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}
