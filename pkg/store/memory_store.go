package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"autogensocial/pkg/domain"
)

type postKey struct {
	id      string
	brandID string
}

type templateKey struct {
	id      string
	brandID string
}

// MemoryStore keeps templates, brands and posts in-process. Used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[templateKey]domain.Template
	brands    map[string]domain.Brand
	posts     map[postKey]domain.PostRecord
	order     []postKey
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[templateKey]domain.Template),
		brands:    make(map[string]domain.Brand),
		posts:     make(map[postKey]domain.PostRecord),
	}
}

// Seed is the on-disk format accepted by LoadSeedFile.
type Seed struct {
	Brands    []domain.Brand    `json:"brands"`
	Templates []domain.Template `json:"templates"`
}

// LoadSeedFile reads brands and templates from a JSON file into s.
func LoadSeedFile(ctx context.Context, s Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, b := range seed.Brands {
		if err := s.SaveBrand(ctx, b); err != nil {
			return fmt.Errorf("seed brand %s: %w", b.ID, err)
		}
	}
	for _, t := range seed.Templates {
		if err := s.SaveTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.ID, err)
		}
	}
	return nil
}

func (m *MemoryStore) GetTemplate(_ context.Context, templateID, brandID string) (domain.Template, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[templateKey{id: templateID, brandID: brandID}]
	return tpl, ok, nil
}

func (m *MemoryStore) SaveTemplate(_ context.Context, tpl domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[templateKey{id: tpl.ID, brandID: tpl.BrandID}] = tpl
	return nil
}

func (m *MemoryStore) GetBrand(_ context.Context, brandID string) (domain.Brand, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	brand, ok := m.brands[brandID]
	return brand, ok, nil
}

func (m *MemoryStore) SaveBrand(_ context.Context, brand domain.Brand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brands[brand.ID] = brand
	return nil
}

// CreatePost stores a new record and tracks insertion order.
func (m *MemoryStore) CreatePost(_ context.Context, post domain.PostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := postKey{id: post.ID, brandID: post.BrandID}
	if _, exists := m.posts[key]; exists {
		return ErrPostExists
	}
	m.posts[key] = clonePost(post)
	m.order = append(m.order, key)
	return nil
}

// ReplacePost swaps the stored record for post in one step.
func (m *MemoryStore) ReplacePost(_ context.Context, post domain.PostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := postKey{id: post.ID, brandID: post.BrandID}
	if _, exists := m.posts[key]; !exists {
		return ErrPostNotFound
	}
	m.posts[key] = clonePost(post)
	return nil
}

func (m *MemoryStore) GetPost(_ context.Context, postID, brandID string) (domain.PostRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	post, ok := m.posts[postKey{id: postID, brandID: brandID}]
	if !ok {
		return domain.PostRecord{}, false, nil
	}
	return clonePost(post), true, nil
}

// ListPostsByBrand returns the newest posts first.
func (m *MemoryStore) ListPostsByBrand(_ context.Context, brandID string, limit int) ([]domain.PostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = normalizeLimit(limit)
	res := make([]domain.PostRecord, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(res) < limit; i-- {
		key := m.order[i]
		if key.brandID != brandID {
			continue
		}
		if post, ok := m.posts[key]; ok {
			res = append(res, clonePost(post))
		}
	}
	return res, nil
}

func clonePost(p domain.PostRecord) domain.PostRecord {
	p.SocialAccounts = slices.Clone(p.SocialAccounts)
	p.ImageURLs = slices.Clone(p.ImageURLs)
	p.ContentResponse = slices.Clone(p.ContentResponse)
	if p.PostResult != nil {
		r := *p.PostResult
		r.Platforms = slices.Clone(r.Platforms)
		p.PostResult = &r
	}
	return p
}
