package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/LeeRoiii/Image-Vault/internal/config"
)

// minioAPI is the subset of *minio.Client used by MinioStore.
type minioAPI interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioStore implements ObjectStore on top of a MinIO deployment.
type MinioStore struct {
	client  minioAPI
	bucket  string
	baseURL string
}

// NewMinioStore connects to the MinIO endpoint named in cfg.
func NewMinioStore(cfg config.ObjectStoreConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio storage: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio storage: bucket is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return newMinioStore(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newMinioStore(client minioAPI, bucket, baseURL string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, baseURL: baseURL}
}

// Put writes body under key. Without Upsert an existing key is reported as
// ErrObjectExists; the check and the write are not atomic.
func (m *MinioStore) Put(ctx context.Context, name string, body io.Reader, size int64, opts PutOptions) error {
	key, err := normalizeKey(name)
	if err != nil {
		return err
	}

	if !opts.Upsert {
		_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
		switch {
		case err == nil:
			return fmt.Errorf("minio storage upload %s: %w", key, ErrObjectExists)
		case !isMinioNotFound(err):
			return fmt.Errorf("minio storage stat %s: %w", key, err)
		}
	}

	_, err = m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return fmt.Errorf("minio storage upload %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a presigned GET URL for key valid for ttl.
func (m *MinioStore) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	key, err := normalizeKey(name)
	if err != nil {
		return "", err
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio storage presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (m *MinioStore) PublicURL(name string) string {
	return joinURL(m.baseURL, strings.TrimLeft(name, "/"))
}

// Delete removes key from the bucket.
func (m *MinioStore) Delete(ctx context.Context, name string) error {
	key, err := normalizeKey(name)
	if err != nil {
		return err
	}

	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return fmt.Errorf("minio storage delete %s: %w", key, ErrObjectNotFound)
		}
		return fmt.Errorf("minio storage delete %s: %w", key, err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == 404
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

var _ ObjectStore = (*MinioStore)(nil)
