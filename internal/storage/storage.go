package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrObjectExists is returned by Put when the key is taken and Upsert is false.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned when the requested key does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// PutOptions controls how an object is written.
type PutOptions struct {
	ContentType  string
	CacheControl string
	// Upsert allows replacing an existing object at the same key.
	Upsert bool
}

// ObjectStore persists binary objects and hands out time-bounded URLs for them.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// CacheControlMaxAge renders a Cache-Control header value for the given lifetime.
func CacheControlMaxAge(d time.Duration) string {
	return fmt.Sprintf("max-age=%d", int(d/time.Second))
}

func normalizeKey(name string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(name), "/")
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	return key, nil
}

func joinURL(base, key string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return key
	}
	return base + "/" + key
}
