package model

import (
	"context"
	"io"
)

// ObjectStorage is the object-storage backend used by the file proxy.
type ObjectStorage interface {
	Upload(ctx context.Context, object UploadObject) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// UploadObject describes a single object to be stored publicly.
type UploadObject struct {
	Key         string
	Reader      io.Reader
	Size        int64
	ContentType string
}
