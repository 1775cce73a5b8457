package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements ObjectStore for MinIO. Each container is a bucket,
// created on first use.
type MinioStore struct {
	client  *minio.Client
	cfg     Config
	buckets sync.Map
}

// NewMinioStore creates a MinIO client. Buckets are checked lazily on upload.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg}, nil
}

// Upload writes data to bucket container under blob and returns its URL.
func (m *MinioStore) Upload(ctx context.Context, container, blob string, data []byte, contentType string) (string, error) {
	if err := m.ensureBucket(ctx, container); err != nil {
		return "", err
	}
	key := prefixedKey(m.cfg.Prefix, blob)
	_, err := m.client.PutObject(ctx, container, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	if m.cfg.PresignExpiry > 0 {
		u, err := m.client.PresignedGetObject(ctx, container, key, m.cfg.PresignExpiry, nil)
		if err != nil {
			return "", fmt.Errorf("presign get: %w", err)
		}
		return u.String(), nil
	}
	return m.objectURL(container, key)
}

func (m *MinioStore) objectURL(container, key string) (string, error) {
	base := m.cfg.PublicBaseURL
	if base == "" {
		base = m.client.EndpointURL().String()
	}
	return joinURL(base, container, key)
}

func (m *MinioStore) ensureBucket(ctx context.Context, bucket string) error {
	if _, ok := m.buckets.Load(bucket); ok {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	m.buckets.Store(bucket, struct{}{})
	return nil
}
