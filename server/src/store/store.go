package store

import (
	"context"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// BlobStore is the narrow capability set the server needs from the
// object store. Upload reports created=false when the key already
// existed; callers treat that as success since the artifact for a
// given provider id is byte-equivalent.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, data []byte, contentType string, upsert bool) (created bool, err error)
	Info(ctx context.Context, key string) (*ObjectInfo, error)
	PublicURL(key string) string
	List(ctx context.Context, limit int, offset int) ([]ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}
