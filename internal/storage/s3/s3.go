// Package s3 saves downloads into an S3-compatible bucket.
package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/metrics"
	"github.com/fruitsalade/filedesk/internal/storage/object"
)

// BackendConfig is a JSON-serializable config for S3 backends.
type BackendConfig struct {
	Endpoint  string `json:"endpoint"` // empty uses the AWS default resolver
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
}

// API is the subset of the S3 client used by the backend.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Backend implements storage.Backend using S3/MinIO.
type S3Backend struct {
	client API
	bucket string
	prefix string
}

// NewBackend creates a new S3 backend from a BackendConfig.
func NewBackend(ctx context.Context, cfg BackendConfig) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	backend := NewWithClient(client, cfg.Bucket, cfg.Prefix)
	if err := backend.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}
	return backend, nil
}

// NewWithClient wraps an existing S3 client.
func NewWithClient(client API, bucket, prefix string) *S3Backend {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Backend{client: client, bucket: bucket, prefix: prefix}
}

// NewBackendFromJSON creates an S3Backend from raw JSON config.
func NewBackendFromJSON(ctx context.Context, raw json.RawMessage) (*S3Backend, error) {
	var cfg BackendConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse s3 config: %w", err)
	}
	return NewBackend(ctx, cfg)
}

func record(op string, start time.Time, err error) {
	metrics.RecordStorageOperation("s3", op, time.Since(start), err == nil)
}

func (b *S3Backend) objectKey(key string) string {
	return b.prefix + key
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (b *S3Backend) ensureBucket(ctx context.Context) error {
	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	})
	record("create_bucket", start, err)
	if err != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, err)
	}
	logging.Info("created S3 bucket", zap.String("bucket", b.bucket))
	return nil
}

// PutObject uploads content to S3.
func (b *S3Backend) PutObject(ctx context.Context, key string, body io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { record("put_object", start, err) }()

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	logging.Debug("S3 put object", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// StatObject returns object metadata via HeadObject.
func (b *S3Backend) StatObject(ctx context.Context, key string) (_ object.Info, err error) {
	start := time.Now()
	defer func() { record("head_object", start, err) }()

	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return object.Info{}, fmt.Errorf("%s: %w", key, object.ErrNotFound)
		}
		return object.Info{}, fmt.Errorf("head object %s: %w", key, err)
	}

	return object.Info{
		Key:     key,
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

// Type returns "s3".
func (b *S3Backend) Type() string { return "s3" }

// Close is a no-op for S3 backends.
func (b *S3Backend) Close() error { return nil }
