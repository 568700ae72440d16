package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/storage"
)

type memoryImageStore struct {
	mu        sync.Mutex
	records   []models.Image
	createErr error
	countErr  error
}

func (m *memoryImageStore) Create(_ context.Context, image models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, image)
	return nil
}

func (m *memoryImageStore) CountByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, r := range m.records {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

type recordingDiscarder struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (r *recordingDiscarder) Discard(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, key)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegHeader() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x01}, 64)...)
}

func newTestService(quota int) (*Service, *memoryImageStore, *storage.MemoryStore, *recordingDiscarder) {
	images := &memoryImageStore{}
	objects := storage.NewMemoryStore("http://files.local")
	cleanup := &recordingDiscarder{}
	svc := NewService(images, objects, cleanup, Config{Quota: quota, MaxBytes: DefaultMaxBytes})
	return svc, images, objects, cleanup
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":              "photo.jpg",
		"  My Holiday (1).PNG ": "my_holiday_1_.png",
		"__weird***name__.gif":   "weird_name_.gif",
		"???":                    "",
		"a--b__c.jpeg":           "a--b_c.jpeg",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}
}

func TestUploadStoresObjectAndRecord(t *testing.T) {
	svc, images, objects, _ := newTestService(2)
	fixed := time.UnixMilli(1_720_000_000_123).UTC()
	svc.now = func() time.Time { return fixed }

	data := jpegHeader()
	res, err := svc.Upload(context.Background(), Request{
		UserID:      "u1",
		File:        bytes.NewReader(data),
		FileName:    "photo.jpg",
		Size:        int64(len(data)),
		Title:       " Beach ",
		Description: "Sunset",
		Category:    "Travel",
	})
	require.NoError(t, err)

	assert.Equal(t, "u1/1720000000123_photo.jpg", res.Image.Path)
	assert.Equal(t, res.Image.Path, res.Image.ID)
	assert.Equal(t, "Beach", res.Image.Title)
	assert.Equal(t, "Travel", res.Image.Category)
	assert.Equal(t, "image/jpeg", res.Image.ContentType)
	assert.Equal(t, fixed, res.Image.UploadedAt)
	assert.NotEmpty(t, res.Image.SignedURL)
	assert.Equal(t, 1, res.Uploads)
	assert.False(t, res.QuotaReached)

	obj, ok := objects.Object(res.Image.Path)
	require.True(t, ok)
	assert.Equal(t, "max-age=3600", obj.CacheControl)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	require.Len(t, images.records, 1)
	assert.Equal(t, "u1", images.records[0].UserID)
}

func TestUploadReportsQuotaReachedThenRefuses(t *testing.T) {
	svc, images, objects, _ := newTestService(2)
	ctx := context.Background()
	data := pngBytes(t)

	tick := time.UnixMilli(1_000)
	svc.now = func() time.Time { tick = tick.Add(time.Millisecond); return tick }

	upload := func() (Result, error) {
		return svc.Upload(ctx, Request{UserID: "u1", File: bytes.NewReader(data), FileName: "a.png", Category: "Pets"})
	}

	first, err := upload()
	require.NoError(t, err)
	assert.False(t, first.QuotaReached)

	second, err := upload()
	require.NoError(t, err)
	assert.True(t, second.QuotaReached)
	assert.Equal(t, 2, second.Uploads)

	_, err = upload()
	assert.ErrorIs(t, err, apperror.ErrQuota)
	assert.Equal(t, "Thanks for testing! You've reached the upload limit.", apperror.MessageOf(err, ""))
	assert.Equal(t, 2, objects.Len())
	assert.Len(t, images.records, 2)
}

func TestQuotaReached(t *testing.T) {
	svc, images, _, _ := newTestService(2)
	ctx := context.Background()

	reached, err := svc.QuotaReached(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, reached)

	images.records = append(images.records,
		models.Image{ID: "u1/1_a.png", UserID: "u1"},
		models.Image{ID: "u1/2_b.png", UserID: "u1"},
		models.Image{ID: "u2/1_c.png", UserID: "u2"},
	)

	reached, err = svc.QuotaReached(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, reached)

	reached, err = svc.QuotaReached(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, reached)

	unlimited, _, _, _ := newTestService(0)
	reached, err = unlimited.QuotaReached(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, reached)
}

func TestUploadQuotaDisabled(t *testing.T) {
	svc, _, _, _ := newTestService(0)
	tick := time.UnixMilli(1_000)
	svc.now = func() time.Time { tick = tick.Add(time.Millisecond); return tick }

	for i := 0; i < 4; i++ {
		res, err := svc.Upload(context.Background(), Request{UserID: "u1", File: bytes.NewReader(pngBytes(t)), FileName: "a.png", Category: "Pets"})
		require.NoError(t, err)
		assert.False(t, res.QuotaReached)
	}
}

func TestUploadRejectsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		message string
	}{
		{
			name:    "missing file",
			req:     Request{UserID: "u1", Category: "Pets"},
			message: "Please select an image.",
		},
		{
			name:    "missing category",
			req:     Request{UserID: "u1", File: bytes.NewReader(jpegHeader()), FileName: "a.jpg", Category: "  "},
			message: "Please select a category.",
		},
		{
			name:    "wrong type",
			req:     Request{UserID: "u1", File: strings.NewReader("%PDF-1.4 not an image"), FileName: "a.jpg", Category: "Pets"},
			message: "Invalid file. Only JPEG, PNG and GIF images are allowed.",
		},
		{
			name:    "declared too large",
			req:     Request{UserID: "u1", File: bytes.NewReader(jpegHeader()), FileName: "a.jpg", Size: DefaultMaxBytes + 1, Category: "Pets"},
			message: "Invalid file. Only images under 5MB are allowed.",
		},
		{
			name: "actually too large",
			req: Request{
				UserID:   "u1",
				File:     bytes.NewReader(append(jpegHeader(), make([]byte, DefaultMaxBytes)...)),
				FileName: "a.jpg",
				Category: "Pets",
			},
			message: "Invalid file. Only images under 5MB are allowed.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, images, objects, _ := newTestService(2)
			_, err := svc.Upload(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tc.message, apperror.MessageOf(err, ""))
			assert.Equal(t, 0, objects.Len())
			assert.Empty(t, images.records)
		})
	}
}

func TestUploadCompensatesFailedInsert(t *testing.T) {
	svc, images, objects, cleanup := newTestService(2)
	images.createErr = errors.New("insert failed")

	_, err := svc.Upload(context.Background(), Request{UserID: "u1", File: bytes.NewReader(pngBytes(t)), FileName: "a.png", Category: "Pets"})
	require.Error(t, err)
	assert.Equal(t, "Upload failed", apperror.MessageOf(err, ""))
	require.Len(t, cleanup.keys, 1)
	assert.True(t, strings.HasPrefix(cleanup.keys[0], "u1/"))
	assert.Equal(t, 1, objects.Len())
}

func TestUploadCompensatesInlineWhenQueueUnavailable(t *testing.T) {
	svc, images, objects, cleanup := newTestService(2)
	images.createErr = errors.New("insert failed")
	cleanup.err = errors.New("closed")

	_, err := svc.Upload(context.Background(), Request{UserID: "u1", File: bytes.NewReader(pngBytes(t)), FileName: "a.png", Category: "Pets"})
	require.Error(t, err)
	assert.Equal(t, 0, objects.Len())
}

func TestUploadRefusesExistingPath(t *testing.T) {
	svc, images, objects, _ := newTestService(0)
	fixed := time.UnixMilli(42)
	svc.now = func() time.Time { return fixed }

	req := func() Request {
		return Request{UserID: "u1", File: bytes.NewReader(pngBytes(t)), FileName: "a.png", Category: "Pets"}
	}
	_, err := svc.Upload(context.Background(), req())
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), req())
	assert.ErrorIs(t, err, storage.ErrObjectExists)
	assert.Equal(t, "Upload failed", apperror.MessageOf(err, ""))
	assert.Equal(t, 1, objects.Len())
	assert.Len(t, images.records, 1)
}

type flakyDeleter struct {
	mu       sync.Mutex
	failures int
	deleted  []string
}

func (f *flakyDeleter) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("temporary")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *flakyDeleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func TestJanitorRetriesAndDrainsOnShutdown(t *testing.T) {
	store := &flakyDeleter{failures: 1}
	janitor := NewJanitor(store, JanitorConfig{QueueSize: 4, Workers: 1, Attempts: 2}, nil)

	require.NoError(t, janitor.Discard(context.Background(), "u1/1_a.png"))
	require.NoError(t, janitor.Discard(context.Background(), "u1/2_b.png"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, janitor.Shutdown(ctx))
	assert.Equal(t, 2, store.count())

	assert.ErrorIs(t, janitor.Discard(context.Background(), "u1/3_c.png"), errJanitorClosed)
}

func TestTooLargeMessageFollowsLimit(t *testing.T) {
	assert.Equal(t, "Invalid file. Only images under 5MB are allowed.", TooLargeMessage(DefaultMaxBytes))
	assert.Equal(t, "Invalid file. Only images under 10MB are allowed.", TooLargeMessage(10<<20))
	assert.Equal(t, "Invalid file. Only images under 512KB are allowed.", TooLargeMessage(512<<10))
}
