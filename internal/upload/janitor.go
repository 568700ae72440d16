package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/LeeRoiii/Image-Vault/internal/storage"
)

// ObjectDeleter removes stored objects.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
	Attempts  int
	Timeout   time.Duration
}

// Janitor deletes objects orphaned by failed uploads in the background.
type Janitor struct {
	store  ObjectDeleter
	cfg    JanitorConfig
	logger *slog.Logger

	jobs   chan string
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

var errJanitorClosed = errors.New("upload janitor closed")

// NewJanitor starts the worker pool.
func NewJanitor(store ObjectDeleter, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		store:  store,
		cfg:    cfg,
		logger: logger,
		jobs:   make(chan string, cfg.QueueSize),
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}
	return j
}

// Discard schedules deletion of key.
func (j *Janitor) Discard(ctx context.Context, key string) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return errJanitorClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case j.jobs <- key:
		return nil
	}
}

// Shutdown stops accepting work and waits for queued deletions to finish.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.jobs)
		j.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()
	for key := range j.jobs {
		j.delete(key)
	}
}

func (j *Janitor) delete(key string) {
	var err error
	for attempt := 1; attempt <= j.cfg.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
		err = j.store.Delete(ctx, key)
		cancel()

		if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
			j.logger.Info("orphaned upload removed", "path", key, "attempt", attempt)
			return
		}
		if attempt < j.cfg.Attempts {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	j.logger.Error("remove orphaned upload", "path", key, "attempts", j.cfg.Attempts, "error", err)
}
