package web

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeeRoiii/Image-Vault/internal/gallery"
	"github.com/LeeRoiii/Image-Vault/internal/ui"
)

const defaultViewerTTL = 30 * time.Minute

// Viewer is the server-side state of one browser session: its gallery feed
// and the modals it has open.
type Viewer struct {
	ID     string
	UserID string
	Feed   *gallery.Feed

	Upload   ui.Modal
	Category ui.Modal
	Image    ui.Modal

	quotaReached atomic.Bool
}

// Modal returns the named modal.
func (v *Viewer) Modal(name string) (*ui.Modal, bool) {
	switch name {
	case "upload":
		return &v.Upload, true
	case "category":
		return &v.Category, true
	case "image":
		return &v.Image, true
	default:
		return nil, false
	}
}

type viewerEntry struct {
	viewer  *Viewer
	expires time.Time
}

// ViewerRegistry keeps viewers in memory for a sliding TTL.
type ViewerRegistry struct {
	pages gallery.PageLoader
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	items map[string]viewerEntry
}

// NewViewerRegistry returns a registry whose feeds load through pages.
func NewViewerRegistry(pages gallery.PageLoader, ttl time.Duration) *ViewerRegistry {
	if ttl <= 0 {
		ttl = defaultViewerTTL
	}
	return &ViewerRegistry{
		pages: pages,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]viewerEntry),
	}
}

// Get returns the viewer for viewerID, creating a fresh one when it is
// missing, expired or belongs to a different user.
func (r *ViewerRegistry) Get(viewerID, userID string) *Viewer {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.purgeLocked(now)

	entry, ok := r.items[viewerID]
	if !ok || entry.viewer.UserID != userID {
		entry.viewer = &Viewer{
			ID:     viewerID,
			UserID: userID,
			Feed:   gallery.NewFeed(r.pages, userID),
		}
	}
	entry.expires = now.Add(r.ttl)
	r.items[viewerID] = entry
	return entry.viewer
}

// Drop forgets a single viewer.
func (r *ViewerRegistry) Drop(viewerID string) {
	r.mu.Lock()
	delete(r.items, viewerID)
	r.mu.Unlock()
}

// DropUser forgets every viewer of userID and reports how many were removed.
func (r *ViewerRegistry) DropUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.items {
		if entry.viewer.UserID == userID {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live viewers.
func (r *ViewerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(r.now())
	return len(r.items)
}

func (r *ViewerRegistry) purgeLocked(now time.Time) {
	for id, entry := range r.items {
		if !now.Before(entry.expires) {
			delete(r.items, id)
		}
	}
}
