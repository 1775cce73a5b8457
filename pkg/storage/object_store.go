package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ObjectStore uploads rendered assets and returns a URL social platforms can fetch.
// Uploading to an existing (container, blob) overwrites it.
type ObjectStore interface {
	Upload(ctx context.Context, container, blob string, data []byte, contentType string) (string, error)
}

// Config selects and configures an ObjectStore backend.
type Config struct {
	Provider  string // "minio" (default) or "s3"
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Bucket is the S3 bucket; containers become key prefixes inside it.
	// MinIO maps each container to its own bucket instead.
	Bucket string
	Prefix string
	// PublicBaseURL, when set, is joined with the object path to form the returned URL.
	PublicBaseURL string
	// PresignExpiry > 0 returns presigned GET URLs instead of public URLs.
	PresignExpiry time.Duration
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "minio":
		return NewMinioStore(cfg)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown object store provider %q", cfg.Provider)
	}
}

// joinURL appends escaped path segments to base.
func joinURL(base string, segments ...string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return u.JoinPath(parts...).String(), nil
}

func prefixedKey(prefix string, parts ...string) string {
	out := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, "/"); p != "" {
		out = append(out, p)
	}
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, "/")
}
