package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCacheControlMaxAge(t *testing.T) {
	assert.Equal(t, "max-age=3600", CacheControlMaxAge(time.Hour))
}

func TestMemoryStorePutRefusesOverwrite(t *testing.T) {
	store := NewMemoryStore("http://files.local/images")
	ctx := context.Background()

	opts := PutOptions{ContentType: "image/png", CacheControl: "max-age=3600"}
	require.NoError(t, store.Put(ctx, "u1/1_a.png", strings.NewReader("one"), 3, opts))

	err := store.Put(ctx, "u1/1_a.png", strings.NewReader("two"), 3, opts)
	assert.ErrorIs(t, err, ErrObjectExists)

	obj, ok := store.Object("u1/1_a.png")
	require.True(t, ok)
	assert.Equal(t, "one", string(obj.Data))
	assert.Equal(t, "max-age=3600", obj.CacheControl)

	opts.Upsert = true
	require.NoError(t, store.Put(ctx, "u1/1_a.png", strings.NewReader("two"), 3, opts))
	obj, _ = store.Object("u1/1_a.png")
	assert.Equal(t, "two", string(obj.Data))
}

func TestMemoryStoreSignedURLAndDelete(t *testing.T) {
	store := NewMemoryStore("http://files.local/images/")
	fixed := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	_, err := store.SignedURL(ctx, "missing.png", time.Hour)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, store.Put(ctx, "/u1/photo.jpg", bytes.NewReader([]byte{1}), 1, PutOptions{}))
	signed, err := store.SignedURL(ctx, "u1/photo.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/images/u1/photo.jpg?expires=1700003600", signed)

	require.NoError(t, store.Delete(ctx, "u1/photo.jpg"))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, store.Delete(ctx, "u1/photo.jpg"), ErrObjectNotFound)
}

func TestNormalizeKeyRejectsEmpty(t *testing.T) {
	_, err := normalizeKey("  / ")
	assert.Error(t, err)
}

type mockMinio struct {
	mock.Mock
}

func (m *mockMinio) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *mockMinio) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucket, key, reader, size, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *mockMinio) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucket, key, expires, params)
	u, _ := args.Get(0).(*url.URL)
	return u, args.Error(1)
}

func (m *mockMinio) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucket, key, opts)
	return args.Error(0)
}

func TestMinioStorePutChecksExistingKey(t *testing.T) {
	client := new(mockMinio)
	store := newMinioStore(client, "images", "")
	ctx := context.Background()

	client.On("StatObject", ctx, "images", "u1/1_a.png", mock.Anything).
		Return(minio.ObjectInfo{Key: "u1/1_a.png"}, nil).Once()

	err := store.Put(ctx, "u1/1_a.png", strings.NewReader("x"), 1, PutOptions{})
	assert.ErrorIs(t, err, ErrObjectExists)
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMinioStorePutWritesNewKey(t *testing.T) {
	client := new(mockMinio)
	store := newMinioStore(client, "images", "")
	ctx := context.Background()

	notFound := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	client.On("StatObject", ctx, "images", "u1/1_a.png", mock.Anything).
		Return(minio.ObjectInfo{}, notFound).Once()
	client.On("PutObject", ctx, "images", "u1/1_a.png", mock.Anything, int64(1), minio.PutObjectOptions{
		ContentType:  "image/png",
		CacheControl: "max-age=3600",
	}).Return(minio.UploadInfo{Key: "u1/1_a.png"}, nil).Once()

	err := store.Put(ctx, "u1/1_a.png", strings.NewReader("x"), 1, PutOptions{
		ContentType:  "image/png",
		CacheControl: "max-age=3600",
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestMinioStoreStatFailureIsReturned(t *testing.T) {
	client := new(mockMinio)
	store := newMinioStore(client, "images", "")
	ctx := context.Background()

	client.On("StatObject", ctx, "images", "k", mock.Anything).
		Return(minio.ObjectInfo{}, errors.New("connection reset")).Once()

	err := store.Put(ctx, "k", strings.NewReader("x"), 1, PutOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectExists)
}

func TestMinioStoreSignedURL(t *testing.T) {
	client := new(mockMinio)
	store := newMinioStore(client, "images", "https://cdn.local/images")
	ctx := context.Background()

	signed, _ := url.Parse("https://minio.local/images/u1/a.png?X-Amz-Expires=3600")
	client.On("PresignedGetObject", ctx, "images", "u1/a.png", time.Hour, mock.Anything).Return(signed, nil).Once()

	got, err := store.SignedURL(ctx, "u1/a.png", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, signed.String(), got)
	assert.Equal(t, "https://cdn.local/images/u1/a.png", store.PublicURL("u1/a.png"))
}

func TestMinioStoreDeleteMapsNotFound(t *testing.T) {
	client := new(mockMinio)
	store := newMinioStore(client, "images", "")
	ctx := context.Background()

	client.On("RemoveObject", ctx, "images", "gone", mock.Anything).
		Return(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}).Once()

	assert.ErrorIs(t, store.Delete(ctx, "gone"), ErrObjectNotFound)
}
