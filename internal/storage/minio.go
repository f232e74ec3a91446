package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
)

// MinioSink uploads images to a MinIO/S3 bucket
type MinioSink struct {
	client   *minio.Client
	endpoint string
	bucket   string
	useSSL   bool

	mu      sync.Mutex
	ensured bool
}

// NewMinioSink creates a sink for bucket. No request is made until the first save.
func NewMinioSink(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioSink, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinioSink{
		client:   client,
		endpoint: endpoint,
		bucket:   bucket,
		useSSL:   useSSL,
	}, nil
}

// ensureBucket creates the bucket once per sink
func (s *MinioSink) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	ctx, span := tracer.Start(ctx, "minio_ensure_bucket")
	defer span.End()
	span.SetAttributes(attribute.String("minio.bucket", s.bucket))

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fail(span, fmt.Errorf("failed to check bucket existence: %w", err))
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fail(span, fmt.Errorf("failed to create bucket: %w", err))
		}
	}
	s.ensured = true
	return nil
}

// Save uploads data as object name and returns its URL
func (s *MinioSink) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "minio_upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", s.bucket),
		attribute.String("minio.key", name),
		attribute.Int("minio.size", len(data)),
	)

	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to upload to MinIO: %w", err))
	}
	return s.objectURL(name), nil
}

func (s *MinioSink) Locate(name string) string {
	return s.objectURL(name)
}

func (s *MinioSink) objectURL(name string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, name)
}
