// Package upload stores new photos and records their metadata.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/storage"
)

const (
	// DefaultQuota is the number of uploads allowed per user.
	DefaultQuota = 2

	msgNoFile      = "Please select an image."
	msgNoCategory  = "Please select a category."
	msgQuota       = "Thanks for testing! You've reached the upload limit."
	msgFailed      = "Upload failed"
	fallbackName   = "image"
	cacheLifetime  = time.Hour
	signedLifetime = time.Hour
)

// ImageStore is the metadata store the upload flow writes to.
type ImageStore interface {
	Create(ctx context.Context, image models.Image) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Discarder schedules removal of an orphaned object.
type Discarder interface {
	Discard(ctx context.Context, key string) error
}

// Request is a single upload.
type Request struct {
	UserID      string
	File        io.Reader
	FileName    string
	Size        int64
	Title       string
	Description string
	Category    string
}

// Result describes a completed upload.
type Result struct {
	Image        models.Image
	Uploads      int
	QuotaReached bool
}

// Config tunes the upload limits. Quota <= 0 disables the quota.
type Config struct {
	Quota    int
	MaxBytes int64
}

// Service runs the upload flow: validate, store the object, insert the record
// and remove the object again when the insert fails.
type Service struct {
	images  ImageStore
	objects storage.ObjectStore
	cleanup Discarder
	cfg     Config
	now     func() time.Time
}

// NewService constructs the upload service. cleanup may be nil, in which case
// orphaned objects are removed inline.
func NewService(images ImageStore, objects storage.ObjectStore, cleanup Discarder, cfg Config) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Service{
		images:  images,
		objects: objects,
		cleanup: cleanup,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates req and stores it for req.UserID.
func (s *Service) Upload(ctx context.Context, req Request) (Result, error) {
	if req.File == nil {
		return Result{}, apperror.Validation("file", msgNoFile)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return Result{}, apperror.Validation("category", msgNoCategory)
	}
	if req.UserID == "" {
		return Result{}, apperror.Unauthorized("User not authenticated.")
	}

	ctx, span := logging.StartSpan(ctx, "upload")
	defer span.End()

	result, err := s.upload(ctx, req, category)
	span.RecordError(err)
	if err == nil {
		span.SetAttributes("path", result.Image.Path, "size", result.Image.Size)
	}
	return result, err
}

func (s *Service) upload(ctx context.Context, req Request, category string) (Result, error) {
	logger := logging.FromContext(ctx)

	count, err := s.images.CountByUser(ctx, req.UserID)
	if err != nil {
		return Result{}, apperror.Internal(msgFailed, fmt.Errorf("count uploads: %w", err))
	}
	if s.cfg.Quota > 0 && count >= s.cfg.Quota {
		return Result{}, apperror.Quota(msgQuota)
	}

	data, contentType, err := readImage(req.File, req.Size, s.cfg.MaxBytes)
	if err != nil {
		return Result{}, err
	}

	now := s.now()
	name := SanitizeFileName(req.FileName)
	if name == "" {
		name = fallbackName
	}
	key := ObjectPath(req.UserID, now, name)

	err = s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType:  contentType,
		CacheControl: storage.CacheControlMaxAge(cacheLifetime),
	})
	if err != nil {
		logger.Error("store upload", "path", key, "error", err)
		return Result{}, apperror.Internal(msgFailed, err)
	}

	image := models.Image{
		ID:          key,
		Path:        key,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  now,
		UserID:      req.UserID,
	}

	if err := s.images.Create(ctx, image); err != nil {
		logger.Error("record upload", "path", key, "error", err)
		s.discard(ctx, key)
		return Result{}, apperror.Internal(msgFailed, err)
	}

	if signed, err := s.objects.SignedURL(ctx, key, signedLifetime); err != nil {
		logger.Warn("sign uploaded image", "path", key, "error", err)
	} else {
		image.SignedURL = signed
	}

	uploads := count + 1
	logger.Info("image uploaded", "path", key, "size", image.Size, "uploads", uploads)

	return Result{
		Image:        image,
		Uploads:      uploads,
		QuotaReached: s.cfg.Quota > 0 && uploads >= s.cfg.Quota,
	}, nil
}

// QuotaReached reports whether userID has used up the upload quota.
func (s *Service) QuotaReached(ctx context.Context, userID string) (bool, error) {
	if s.cfg.Quota <= 0 {
		return false, nil
	}
	count, err := s.images.CountByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count uploads: %w", err)
	}
	return count >= s.cfg.Quota, nil
}

// QuotaMessage is the notice shown once a user has used up the quota.
func QuotaMessage() string {
	return msgQuota
}

// ObjectPath returns the storage key for a file uploaded by userID at t.
func ObjectPath(userID string, t time.Time, sanitizedName string) string {
	return fmt.Sprintf("%s/%d_%s", userID, t.UnixMilli(), sanitizedName)
}

func (s *Service) discard(ctx context.Context, key string) {
	if s.cleanup != nil {
		enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		err := s.cleanup.Discard(enqueueCtx, key)
		cancel()
		if err == nil {
			return
		}
	}

	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.objects.Delete(deleteCtx, key); err != nil {
		logging.FromContext(ctx).Error("remove orphaned upload", "path", key, "error", err)
	}
}
