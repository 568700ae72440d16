package gallery

import (
	"context"
	"errors"
	"sync"

	"github.com/LeeRoiii/Image-Vault/internal/models"
)

// ErrStaleLoad is returned when a newer load superseded the one that just
// finished. The feed is left untouched.
var ErrStaleLoad = errors.New("gallery: load superseded")

// PageLoader is the subset of Loader a Feed needs.
type PageLoader interface {
	LoadPage(ctx context.Context, userID string, page int, category string) (Page, error)
}

// Feed is one viewer's in-memory gallery: the images shown so far, the page
// cursor, the active category filter and whether more pages exist.
type Feed struct {
	loader PageLoader
	userID string

	mu         sync.Mutex
	images     []models.Image
	page       int
	category   string
	hasMore    bool
	loading    bool
	loaded     bool
	generation uint64
}

// Snapshot is a copy of a feed's state for rendering.
type Snapshot struct {
	Images   []models.Image
	Page     int
	Category string
	HasMore  bool
	Loading  bool
	Loaded   bool
}

// NewFeed returns an empty feed for userID.
func NewFeed(loader PageLoader, userID string) *Feed {
	return &Feed{loader: loader, userID: userID}
}

// UserID reports the owner of the feed.
func (f *Feed) UserID() string {
	return f.userID
}

// Load fetches page for category. Page zero replaces the list, any other
// page is appended. Every call supersedes loads still in flight.
func (f *Feed) Load(ctx context.Context, page int, category string) ([]models.Image, error) {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.loading = true
	f.mu.Unlock()

	return f.fetch(ctx, gen, page, category)
}

// SelectCategory switches the filter and reloads from the first page.
// An empty category shows everything.
func (f *Feed) SelectCategory(ctx context.Context, category string) ([]models.Image, error) {
	return f.Load(ctx, 0, category)
}

// Advance loads the page after the cursor and returns the appended images.
// It does nothing while another load is running or when no pages remain.
func (f *Feed) Advance(ctx context.Context) ([]models.Image, error) {
	f.mu.Lock()
	if f.loading || !f.hasMore {
		f.mu.Unlock()
		return nil, nil
	}
	f.generation++
	gen := f.generation
	next := f.page + 1
	category := f.category
	f.loading = true
	f.mu.Unlock()

	return f.fetch(ctx, gen, next, category)
}

func (f *Feed) fetch(ctx context.Context, gen uint64, page int, category string) ([]models.Image, error) {
	result, err := f.loader.LoadPage(ctx, f.userID, page, category)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation {
		return nil, ErrStaleLoad
	}
	f.loading = false
	if err != nil {
		return nil, err
	}

	added := result.Images
	if page == 0 {
		f.images = append([]models.Image(nil), added...)
	} else {
		added = f.unseenLocked(added)
		f.images = append(f.images, added...)
	}
	f.page = page
	f.category = category
	f.hasMore = result.HasMore
	f.loaded = true

	return added, nil
}

// unseenLocked drops images already in the list. Prepended uploads shift the
// offset windows forward, so the next page repeats the tail of the last one.
func (f *Feed) unseenLocked(images []models.Image) []models.Image {
	seen := make(map[string]struct{}, len(f.images))
	for _, img := range f.images {
		seen[img.ID] = struct{}{}
	}
	out := make([]models.Image, 0, len(images))
	for _, img := range images {
		if _, ok := seen[img.ID]; ok {
			continue
		}
		seen[img.ID] = struct{}{}
		out = append(out, img)
	}
	return out
}

// Prepend puts a freshly uploaded image at the head of the list when it
// matches the active filter. It reports whether the image was added.
func (f *Feed) Prepend(image models.Image) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.category != "" && image.Category != f.category {
		return false
	}
	f.images = append([]models.Image{image}, f.images...)
	return true
}

// Snapshot returns a copy of the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Snapshot{
		Images:   append([]models.Image(nil), f.images...),
		Page:     f.page,
		Category: f.category,
		HasMore:  f.hasMore,
		Loading:  f.loading,
		Loaded:   f.loaded,
	}
}
