package storage

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist in the requested bucket.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore is the bucket/key interface shared by every storage backend.
type ObjectStore interface {
	// Read returns the bytes stored under bucket/key.
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	// Write stores data under bucket/key and returns the URL the object is reachable at.
	Write(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}

// ExtensionForContentType maps an image content type to the file extension used in object keys.
func ExtensionForContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/jpeg", "image/jpg", "":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func joinURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + path.Join(bucket, key)
}
