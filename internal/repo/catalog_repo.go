// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the Catalog Store: files and categories.
//
// The entitlement path only ever reads from these tables. Writes come from the
// catalog-management collaborator (admin upsert) through services.CatalogService.
//
// Functions:
//
//   - GetFile(ctx, db, id) -> *domain.File, error
//     Returns ErrNotFound for unknown ids.
//
//   - CountFiles / ListFilesPage(ctx, db, filter, offset, limit)
//     Paginated browse, newest first, optionally scoped to a category or to
//     free/paid files.
//
//   - UpsertFile(ctx, db, f) -> error
//     Insert-or-update keyed by id.
//
//   - CreateCategory / GetCategory / ListCategories
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

// FileFilter narrows catalog listings. Zero values mean "no filter".
type FileFilter struct {
	CategoryID string
	Free       *bool
}

func (f FileFilter) apply(q *gorm.DB) *gorm.DB {
	if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.Free != nil {
		q = q.Where("is_free = ?", *f.Free)
	}
	return q
}

// GetFile fetches a single catalog entry by id.
func GetFile(ctx context.Context, db *gorm.DB, id string) (*domain.File, error) {
	var f domain.File
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// CountFiles returns the number of files matching filter.
func CountFiles(ctx context.Context, db *gorm.DB, filter FileFilter) (int64, error) {
	var total int64
	err := filter.apply(db.WithContext(ctx).Model(&domain.File{})).Count(&total).Error
	return total, err
}

// ListFilesPage returns a page of files ordered by creation time descending,
// with id as a tiebreaker for stable pagination.
func ListFilesPage(ctx context.Context, db *gorm.DB, filter FileFilter, offset, limit int) ([]domain.File, error) {
	var out []domain.File
	err := filter.apply(db.WithContext(ctx)).
		Order("created_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpsertFile inserts f or, when a file with the same id exists, overwrites its
// mutable columns. CreatedAt is preserved on update.
func UpsertFile(ctx context.Context, db *gorm.DB, f *domain.File) error {
	now := time.Now().UTC()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "preview_url", "download_url",
			"category_id", "price", "is_free", "updated_at",
		}),
	}).Create(f).Error
}

// CreateCategory inserts a category. A slug collision returns ErrDuplicate.
func CreateCategory(ctx context.Context, db *gorm.DB, name, slug string) (*domain.Category, error) {
	c := &domain.Category{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetCategory fetches a category by id.
func GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// Catalog exposes the catalog functions as methods so it can be handed to
// services that take a repository value.
type Catalog struct{}

func (Catalog) GetFile(ctx context.Context, db *gorm.DB, id string) (*domain.File, error) {
	return GetFile(ctx, db, id)
}

func (Catalog) CountFiles(ctx context.Context, db *gorm.DB, filter FileFilter) (int64, error) {
	return CountFiles(ctx, db, filter)
}

func (Catalog) ListFilesPage(ctx context.Context, db *gorm.DB, filter FileFilter, offset, limit int) ([]domain.File, error) {
	return ListFilesPage(ctx, db, filter, offset, limit)
}

func (Catalog) UpsertFile(ctx context.Context, db *gorm.DB, f *domain.File) error {
	return UpsertFile(ctx, db, f)
}

func (Catalog) CreateCategory(ctx context.Context, db *gorm.DB, name, slug string) (*domain.Category, error) {
	return CreateCategory(ctx, db, name, slug)
}

func (Catalog) GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	return GetCategory(ctx, db, id)
}

func (Catalog) ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	return ListCategories(ctx, db)
}
