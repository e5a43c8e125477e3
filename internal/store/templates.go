package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// TemplateFilter narrows ListTemplates.
type TemplateFilter struct {
	Category string
	Tag      string
	Limit    int
	Offset   int
}

func (s *Store) CreateTemplate(ctx context.Context, t *Template) error {
	return translateError(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Store) GetTemplateByID(ctx context.Context, id uint) (*Template, error) {
	var t Template
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

func (s *Store) GetTemplateBySlug(ctx context.Context, slug string) (*Template, error) {
	var t Template
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error; err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

func (s *Store) ListTemplates(ctx context.Context, f TemplateFilter) ([]Template, int64, error) {
	q := s.db.WithContext(ctx).Model(&Template{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Tag != "" {
		q = q.Where("JSON_CONTAINS(tags, JSON_QUOTE(?))", f.Tag)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var templates []Template
	err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&templates).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return templates, total, nil
}

// ListPopularTemplates returns the most downloaded templates.
func (s *Store) ListPopularTemplates(ctx context.Context, limit int) ([]Template, error) {
	var templates []Template
	err := s.db.WithContext(ctx).
		Order("downloads DESC, views DESC").
		Limit(limit).
		Find(&templates).Error
	if err != nil {
		return nil, translateError(err)
	}
	return templates, nil
}

// ListAllTemplates streams every template, used by reindex jobs.
func (s *Store) ListAllTemplates(ctx context.Context) ([]Template, error) {
	var templates []Template
	if err := s.db.WithContext(ctx).Find(&templates).Error; err != nil {
		return nil, translateError(err)
	}
	return templates, nil
}

func (s *Store) UpdateTemplate(ctx context.Context, t *Template) error {
	return translateError(s.db.WithContext(ctx).Save(t).Error)
}

// UpsertTemplateBySlug inserts t, or refreshes the existing row when the
// slug is already taken. Re-running an import is therefore safe.
func (s *Store) UpsertTemplateBySlug(ctx context.Context, t *Template) (created bool, err error) {
	existing, err := s.GetTemplateBySlug(ctx, t.Slug)
	if errors.Is(err, ErrNotFound) {
		return true, translateError(s.db.WithContext(ctx).Create(t).Error)
	}
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"title":            t.Title,
		"description":      t.Description,
		"category":         t.Category,
		"tags":             t.Tags,
		"source_url":       t.SourceURL,
		"workflow":         t.Workflow,
		"author_name":      t.AuthorName,
		"license":          t.License,
		"last_verified_at": &now,
	}
	err = s.db.WithContext(ctx).Model(&Template{}).Where("id = ?", existing.ID).Updates(updates).Error
	if err == nil {
		t.ID = existing.ID
	}
	return false, translateError(err)
}

func (s *Store) IncrementTemplateDownloads(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&Template{}).Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + 1"))
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IncrementTemplateViews(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&Template{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CountTemplates(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Template{}).Count(&n).Error
	return n, translateError(err)
}

func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	return translateError(s.db.WithContext(ctx).Create(c).Error)
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := s.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&categories).Error
	if err != nil {
		return nil, translateError(err)
	}
	return categories, nil
}
