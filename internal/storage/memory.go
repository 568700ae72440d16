package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MemoryObject is a stored object as kept by MemoryStore.
type MemoryObject struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// MemoryStore keeps objects in process memory. It backs tests and local
// development without an object store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]MemoryObject
	baseURL string
	now     func() time.Time
}

// NewMemoryStore constructs an empty store whose URLs are rooted at baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]MemoryObject),
		baseURL: baseURL,
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(ctx context.Context, name string, body io.Reader, _ int64, opts PutOptions) error {
	key, err := normalizeKey(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("memory storage read %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists && !opts.Upsert {
		return fmt.Errorf("memory storage upload %s: %w", key, ErrObjectExists)
	}
	m.objects[key] = MemoryObject{Data: data, ContentType: opts.ContentType, CacheControl: opts.CacheControl}
	return nil
}

func (m *MemoryStore) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	key, err := normalizeKey(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("memory storage presign %s: %w", key, ErrObjectNotFound)
	}

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(m.now().Add(ttl).Unix(), 10))
	return m.PublicURL(key) + "?" + q.Encode(), nil
}

func (m *MemoryStore) PublicURL(name string) string {
	return joinURL(m.baseURL, name)
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	key, err := normalizeKey(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("memory storage delete %s: %w", key, ErrObjectNotFound)
	}
	delete(m.objects, key)
	return nil
}

// Object returns a copy of the object stored at key.
func (m *MemoryStore) Object(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ ObjectStore = (*MemoryStore)(nil)
