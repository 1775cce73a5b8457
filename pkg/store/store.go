package store

import (
	"context"
	"errors"

	"autogensocial/pkg/domain"
)

var (
	// ErrPostExists is returned by CreatePost when (id, brandId) is already stored.
	ErrPostExists = errors.New("post already exists")
	// ErrPostNotFound is returned by ReplacePost when there is nothing to replace.
	ErrPostNotFound = errors.New("post not found")
)

// TemplateStore reads content templates. A missing template is (zero, false, nil).
type TemplateStore interface {
	GetTemplate(ctx context.Context, templateID, brandID string) (domain.Template, bool, error)
}

// BrandStore reads brand documents.
type BrandStore interface {
	GetBrand(ctx context.Context, brandID string) (domain.Brand, bool, error)
}

// PostStore persists post records. Every write is a whole-record write keyed by (id, brandId).
type PostStore interface {
	CreatePost(ctx context.Context, post domain.PostRecord) error
	ReplacePost(ctx context.Context, post domain.PostRecord) error
	GetPost(ctx context.Context, postID, brandID string) (domain.PostRecord, bool, error)
	ListPostsByBrand(ctx context.Context, brandID string, limit int) ([]domain.PostRecord, error)
}

// Store bundles every document collection the orchestrator touches.
type Store interface {
	TemplateStore
	BrandStore
	PostStore

	SaveTemplate(ctx context.Context, tpl domain.Template) error
	SaveBrand(ctx context.Context, brand domain.Brand) error
}

const defaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
