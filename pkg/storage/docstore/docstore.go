// Package docstore persists accepted documents under collision-resistant
// names in a single flat namespace.
package docstore

import (
	"context"
	"fmt"
	"io"
)

// Config contains the information required to construct a document store.
type Config struct {
	Provider  string
	Directory string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Client represents the capabilities the ingestion service expects. Remove
// exists so an external janitor can reclaim space; nothing in the service
// itself deletes documents.
type Client interface {
	Put(ctx context.Context, name string, reader io.Reader, size int64) error
	Remove(ctx context.Context, name string) error
	Close() error
}

// New creates a document store client based on the given configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "filesystem":
		return newFilesystemClient(cfg.Directory)
	case "minio", "s3":
		return newMinioClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported document store provider: %s", cfg.Provider)
	}
}
