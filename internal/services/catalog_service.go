// Package services – CatalogService
//
// This file implements CatalogService, the catalog-management collaborator.
// It serves browse listings and lets admins maintain files and categories.
// Writes enforce the file invariants (price >= 0, a free file has price 0) so
// the entitlement engine can trust whatever it reads.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/utils"
)

// CatalogRepo defines the repository contract required by CatalogService.
type CatalogRepo interface {
	// GetFile fetches a file by id.
	GetFile(ctx context.Context, db *gorm.DB, id string) (*domain.File, error)

	// CountFiles returns the number of files matching filter.
	CountFiles(ctx context.Context, db *gorm.DB, filter repo.FileFilter) (int64, error)

	// ListFilesPage returns a page of files matching filter.
	ListFilesPage(ctx context.Context, db *gorm.DB, filter repo.FileFilter, offset, limit int) ([]domain.File, error)

	// UpsertFile inserts or overwrites a file.
	UpsertFile(ctx context.Context, db *gorm.DB, f *domain.File) error

	// CreateCategory inserts a category.
	CreateCategory(ctx context.Context, db *gorm.DB, name, slug string) (*domain.Category, error)

	// GetCategory fetches a category by id.
	GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error)

	// ListCategories returns all categories.
	ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error)
}

// CatalogService provides catalog browse and management.
type CatalogService struct {
	DB   *gorm.DB
	Repo CatalogRepo
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(db *gorm.DB, r CatalogRepo) *CatalogService {
	return &CatalogService{DB: db, Repo: r}
}

// FileInput is the writable part of a catalog entry.
type FileInput struct {
	Title       string
	Description string
	PreviewURL  string
	DownloadURL string
	CategoryID  *string
	Price       int64
	IsFree      bool
}

// GetFile returns one catalog entry.
func (s *CatalogService) GetFile(ctx context.Context, id string) (*domain.File, error) {
	f, err := s.Repo.GetFile(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	return f, err
}

// ListFiles returns a page of files and the total count for filter.
func (s *CatalogService) ListFiles(ctx context.Context, filter repo.FileFilter, page, pageSize int) ([]domain.File, int64, error) {
	page, pageSize = utils.ClampPage(page, pageSize)
	total, err := s.Repo.CountFiles(ctx, s.DB, filter)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.File{}, 0, nil
	}
	items, err := s.Repo.ListFilesPage(ctx, s.DB, filter, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// UpsertFile creates or replaces the file with id on behalf of an admin.
func (s *CatalogService) UpsertFile(ctx context.Context, actor identity.Identity, id string, in FileInput) (*domain.File, error) {
	if !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}
	id = strings.TrimSpace(id)
	in.Title = strings.TrimSpace(in.Title)
	if id == "" || in.Title == "" || in.Price < 0 || (in.IsFree && in.Price != 0) {
		return nil, ErrInvalidFile
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		in.CategoryID = nil
	}

	f := &domain.File{
		ID:          id,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		PreviewURL:  strings.TrimSpace(in.PreviewURL),
		DownloadURL: strings.TrimSpace(in.DownloadURL),
		CategoryID:  in.CategoryID,
		Price:       in.Price,
		IsFree:      in.IsFree,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if f.CategoryID != nil {
			if _, err := s.Repo.GetCategory(ctx, tx, *f.CategoryID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrCategoryNotFound
				}
				return err
			}
		}
		if err := s.Repo.UpsertFile(ctx, tx, f); err != nil {
			return err
		}
		price := f.Price
		return repo.AppendActivity(ctx, tx, &domain.ActivityLog{
			ActorID:      actor.UserID,
			Action:       domain.ActionFileUpserted,
			ResourceType: domain.ResourceFile,
			ResourceID:   f.ID,
			FileID:       f.ID,
			Amount:       &price,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Repo.GetFile(ctx, s.DB, f.ID)
}

var slugRE = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and joins its alphanumeric runs with dashes.
func slugify(s string) string {
	return strings.Trim(slugRE.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// CreateCategory adds a category. The slug is derived from name when empty.
func (s *CatalogService) CreateCategory(ctx context.Context, actor identity.Identity, name, slug string) (*domain.Category, error) {
	if !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}
	name = strings.TrimSpace(name)
	if slug = slugify(slug); slug == "" {
		slug = slugify(name)
	}
	if name == "" || slug == "" {
		return nil, ErrInvalidInput
	}
	c, err := s.Repo.CreateCategory(ctx, s.DB, name, slug)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicateCategory
	}
	return c, err
}

// ListCategories returns all categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Repo.ListCategories(ctx, s.DB)
}
