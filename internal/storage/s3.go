package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/LeeRoiii/Image-Vault/internal/config"
)

// S3Store implements ObjectStore backed by an S3-compatible service.
type S3Store struct {
	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
}

// NewS3Store configures a client targeting the provided object store. maxObjectSize
// sizes the upload parts so that objects up to that size go out in a single
// PutObject request, which is what makes the no-overwrite precondition hold.
func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig, maxObjectSize int64) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	partSize := int64(manager.MinUploadPartSize)
	if maxObjectSize >= partSize {
		partSize = maxObjectSize + 1
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.LeavePartsOnError = false
	})

	return &S3Store{
		client:    client,
		uploader:  uploader,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		baseURL:   cfg.PublicBaseURL,
	}, nil
}

// Put uploads body under key. Unless opts.Upsert is set the write is
// conditional on the key being absent.
func (s *S3Store) Put(ctx context.Context, name string, body io.Reader, size int64, opts PutOptions) error {
	key, err := normalizeKey(name)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if !opts.Upsert {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		if isS3ErrorCode(err, "PreconditionFailed", "ConditionalRequestConflict") {
			return fmt.Errorf("s3 storage upload %s: %w", key, ErrObjectExists)
		}
		return fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	return nil
}

// SignedURL returns a presigned GET URL for key valid for ttl.
func (s *S3Store) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	key, err := normalizeKey(name)
	if err != nil {
		return "", err
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 storage presign %s: %w", key, err)
	}

	return req.URL, nil
}

// PublicURL returns the unsigned location of key. It only resolves for
// publicly readable buckets.
func (s *S3Store) PublicURL(name string) string {
	return joinURL(s.baseURL, strings.TrimLeft(name, "/"))
}

// Delete removes key from the bucket.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	key, err := normalizeKey(name)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3ErrorCode(err, "NoSuchKey", "NotFound") {
			return fmt.Errorf("s3 storage delete %s: %w", key, ErrObjectNotFound)
		}
		return fmt.Errorf("s3 storage delete %s: %w", key, err)
	}

	return nil
}

func isS3ErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

var _ ObjectStore = (*S3Store)(nil)
