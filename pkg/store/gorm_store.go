package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"autogensocial/pkg/domain"
)

const migrateLockID int64 = 41720417

// GormStore implements Store using GORM. Postgres in production, any dialector in tests.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore opens a Postgres database and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	return NewGormStoreWithDialector(postgres.Open(dsn))
}

// NewGormStoreWithDialector opens the given dialector and runs auto-migrations.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&TemplateModel{}, &BrandModel{}, &PostModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if db.Dialector.Name() == "postgres" {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity for health probes.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetTemplate returns the template stored under (templateID, brandID).
func (s *GormStore) GetTemplate(ctx context.Context, templateID, brandID string) (domain.Template, bool, error) {
	var model TemplateModel
	if err := s.db.WithContext(ctx).First(&model, "id = ? AND brand_id = ?", templateID, brandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Template{}, false, nil
		}
		return domain.Template{}, false, err
	}
	tpl, err := templateFromModel(model)
	if err != nil {
		return domain.Template{}, false, err
	}
	return tpl, true, nil
}

// SaveTemplate inserts or replaces a template document.
func (s *GormStore) SaveTemplate(ctx context.Context, tpl domain.Template) error {
	doc, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	now := s.now().UTC()
	model := TemplateModel{ID: tpl.ID, BrandID: tpl.BrandID, Document: datatypes.JSON(doc), CreatedAt: now, UpdatedAt: now}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "brand_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(&model).Error
}

// GetBrand returns a brand by id.
func (s *GormStore) GetBrand(ctx context.Context, brandID string) (domain.Brand, bool, error) {
	var model BrandModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", brandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Brand{}, false, nil
		}
		return domain.Brand{}, false, err
	}
	var brand domain.Brand
	if err := json.Unmarshal(model.Document, &brand); err != nil {
		return domain.Brand{}, false, fmt.Errorf("decode brand %s: %w", brandID, err)
	}
	brand.ID = model.ID
	if brand.UserID == "" {
		brand.UserID = model.UserID
	}
	return brand, true, nil
}

// SaveBrand inserts or replaces a brand document.
func (s *GormStore) SaveBrand(ctx context.Context, brand domain.Brand) error {
	doc, err := json.Marshal(brand)
	if err != nil {
		return fmt.Errorf("encode brand: %w", err)
	}
	now := s.now().UTC()
	model := BrandModel{ID: brand.ID, UserID: brand.UserID, Document: datatypes.JSON(doc), CreatedAt: now, UpdatedAt: now}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "document", "updated_at"}),
	}).Create(&model).Error
}

// CreatePost stores a new post record. A second create for the same key fails with ErrPostExists.
func (s *GormStore) CreatePost(ctx context.Context, post domain.PostRecord) error {
	model, err := postToModel(post)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&PostModel{}).Where("id = ? AND brand_id = ?", post.ID, post.BrandID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPostExists
		}
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrPostExists
			}
			return err
		}
		return nil
	})
}

// ReplacePost overwrites every column of an existing post record.
func (s *GormStore) ReplacePost(ctx context.Context, post domain.PostRecord) error {
	model, err := postToModel(post)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(&PostModel{}).
		Where("id = ? AND brand_id = ?", post.ID, post.BrandID).
		Select("*").
		Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// GetPost returns a post record by (postID, brandID).
func (s *GormStore) GetPost(ctx context.Context, postID, brandID string) (domain.PostRecord, bool, error) {
	var model PostModel
	if err := s.db.WithContext(ctx).First(&model, "id = ? AND brand_id = ?", postID, brandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PostRecord{}, false, nil
		}
		return domain.PostRecord{}, false, err
	}
	post, err := postFromModel(model)
	if err != nil {
		return domain.PostRecord{}, false, err
	}
	return post, true, nil
}

// ListPostsByBrand returns the newest posts of a brand first.
func (s *GormStore) ListPostsByBrand(ctx context.Context, brandID string, limit int) ([]domain.PostRecord, error) {
	var models []PostModel
	if err := s.db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("created_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.PostRecord, 0, len(models))
	for _, m := range models {
		post, err := postFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, post)
	}
	return res, nil
}

func templateFromModel(m TemplateModel) (domain.Template, error) {
	var tpl domain.Template
	if err := json.Unmarshal(m.Document, &tpl); err != nil {
		return domain.Template{}, fmt.Errorf("decode template %s: %w", m.ID, err)
	}
	tpl.ID = m.ID
	tpl.BrandID = m.BrandID
	return tpl, nil
}

func postToModel(p domain.PostRecord) (PostModel, error) {
	accounts, err := marshalJSONColumn(p.SocialAccounts)
	if err != nil {
		return PostModel{}, fmt.Errorf("encode social accounts: %w", err)
	}
	urls, err := marshalJSONColumn(p.ImageURLs)
	if err != nil {
		return PostModel{}, fmt.Errorf("encode image urls: %w", err)
	}
	var result datatypes.JSON
	if p.PostResult != nil {
		if result, err = marshalJSONColumn(p.PostResult); err != nil {
			return PostModel{}, fmt.Errorf("encode post result: %w", err)
		}
	}
	var content datatypes.JSON
	if len(p.ContentResponse) > 0 {
		content = datatypes.JSON(p.ContentResponse)
	}
	return PostModel{
		ID:              p.ID,
		BrandID:         p.BrandID,
		TemplateID:      p.TemplateID,
		Status:          string(p.Status),
		SocialAccounts:  accounts,
		ContentResponse: content,
		ImageURLs:       urls,
		PostResult:      result,
		Error:           p.Error,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}, nil
}

func postFromModel(m PostModel) (domain.PostRecord, error) {
	post := domain.PostRecord{
		ID:         m.ID,
		BrandID:    m.BrandID,
		TemplateID: m.TemplateID,
		Status:     domain.PostStatus(m.Status),
		Error:      m.Error,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if len(m.SocialAccounts) > 0 {
		if err := json.Unmarshal(m.SocialAccounts, &post.SocialAccounts); err != nil {
			return domain.PostRecord{}, fmt.Errorf("decode social accounts: %w", err)
		}
	}
	if len(m.ImageURLs) > 0 {
		if err := json.Unmarshal(m.ImageURLs, &post.ImageURLs); err != nil {
			return domain.PostRecord{}, fmt.Errorf("decode image urls: %w", err)
		}
	}
	if len(m.PostResult) > 0 && string(m.PostResult) != "null" {
		var result domain.PostResult
		if err := json.Unmarshal(m.PostResult, &result); err != nil {
			return domain.PostRecord{}, fmt.Errorf("decode post result: %w", err)
		}
		post.PostResult = &result
	}
	if len(m.ContentResponse) > 0 && string(m.ContentResponse) != "null" {
		post.ContentResponse = json.RawMessage(m.ContentResponse)
	}
	return post, nil
}

func marshalJSONColumn(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
