// Package gallery pages through a user's images and keeps the per-viewer feed.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/repositories"
)

const (
	// DefaultPageSize is the number of images fetched per page.
	DefaultPageSize = 12
	// DefaultSignedURLTTL is how long display URLs stay valid.
	DefaultSignedURLTTL = time.Hour

	signConcurrency = 6
)

// ErrNoUser is returned when a page is requested without a signed-in user.
// Callers abort silently.
var ErrNoUser = errors.New("gallery: no user")

// ImageLister returns a window of a user's image records.
type ImageLister interface {
	List(ctx context.Context, query repositories.ImageQuery) ([]models.Image, error)
}

// URLSigner hands out time-limited display URLs for stored objects.
type URLSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Page is one window of a user's gallery, newest first.
type Page struct {
	Number   int
	Category string
	Images   []models.Image
	HasMore  bool
}

// Loader fetches gallery pages and attaches signed URLs to them.
type Loader struct {
	images   ImageLister
	signer   URLSigner
	pageSize int
	urlTTL   time.Duration
}

// NewLoader constructs a Loader. Non-positive sizes fall back to the defaults.
func NewLoader(images ImageLister, signer URLSigner, pageSize int, urlTTL time.Duration) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if urlTTL <= 0 {
		urlTTL = DefaultSignedURLTTL
	}
	return &Loader{images: images, signer: signer, pageSize: pageSize, urlTTL: urlTTL}
}

// PageSize reports how many records a full page holds.
func (l *Loader) PageSize() int {
	return l.pageSize
}

// MaxPage is the highest page whose offset fits in an int.
func (l *Loader) MaxPage() int {
	return math.MaxInt / l.pageSize
}

// LoadPage returns page number page (zero based) of userID's images,
// optionally restricted to category. HasMore is set when the page is full.
func (l *Loader) LoadPage(ctx context.Context, userID string, page int, category string) (Page, error) {
	if userID == "" {
		return Page{}, ErrNoUser
	}
	if page < 0 {
		page = 0
	}
	if page > l.MaxPage() {
		return Page{}, apperror.Validation("page", fmt.Sprintf("page must be at most %d", l.MaxPage()))
	}

	ctx, span := logging.StartSpan(ctx, "gallery.load_page")
	defer span.End()

	images, err := l.images.List(ctx, repositories.ImageQuery{
		UserID:   userID,
		Category: category,
		Offset:   page * l.pageSize,
		Limit:    l.pageSize,
	})
	if err != nil {
		span.RecordError(err)
		return Page{}, fmt.Errorf("list images page %d: %w", page, err)
	}

	l.Sign(ctx, images)
	span.SetAttributes("page", page, "count", len(images))

	return Page{
		Number:   page,
		Category: category,
		Images:   images,
		HasMore:  len(images) == l.pageSize,
	}, nil
}

// Sign fills in SignedURL for every image concurrently and returns once all
// requests have finished. A failed signing leaves SignedURL empty.
func (l *Loader) Sign(ctx context.Context, images []models.Image) {
	if len(images) == 0 || l.signer == nil {
		return
	}

	logger := logging.FromContext(ctx)

	var g errgroup.Group
	g.SetLimit(signConcurrency)
	for i := range images {
		g.Go(func() error {
			signed, err := l.signer.SignedURL(ctx, images[i].Path, l.urlTTL)
			if err != nil {
				logger.Warn("sign image url failed", "path", images[i].Path, "error", err)
				return nil
			}
			images[i].SignedURL = signed
			return nil
		})
	}
	_ = g.Wait()
}
