package gallery

import (
	"context"
	"sync"
	"time"
)

type signedEntry struct {
	url     string
	reuse   time.Time
	expires time.Time
}

// CachingSigner reuses signed URLs while at least half of their lifetime is
// left, so repeated page loads hand the browser the same URL and let it
// cache the image.
type CachingSigner struct {
	base URLSigner
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]signedEntry
}

// NewCachingSigner wraps base with an in-memory cache.
func NewCachingSigner(base URLSigner) *CachingSigner {
	return &CachingSigner{
		base:  base,
		now:   time.Now,
		items: make(map[string]signedEntry),
	}
}

// SignedURL returns a cached URL for key when one is still fresh, otherwise
// it signs a new one through the wrapped signer.
func (c *CachingSigner) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.reuse) {
		return entry.url, nil
	}

	url, err := c.base.SignedURL(ctx, key, ttl)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.purgeLocked(now)
	c.items[key] = signedEntry{url: url, reuse: now.Add(ttl / 2), expires: now.Add(ttl)}
	c.mu.Unlock()

	return url, nil
}

// Len reports the number of cached URLs.
func (c *CachingSigner) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *CachingSigner) purgeLocked(now time.Time) {
	for key, entry := range c.items {
		if !now.Before(entry.expires) {
			delete(c.items, key)
		}
	}
}
