// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only activity log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

// ActivityFilter narrows activity listings. Zero values mean "no filter".
type ActivityFilter struct {
	ActorID      string
	ResourceType domain.ResourceType
}

func (f ActivityFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	return q
}

// AppendActivity inserts a; ID and CreatedAt are filled when empty. Pass the
// transaction handle so the entry commits or rolls back with the change it
// describes.
func AppendActivity(ctx context.Context, db *gorm.DB, a *domain.ActivityLog) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(a).Error
}

// CountActivity returns the number of entries matching filter.
func CountActivity(ctx context.Context, db *gorm.DB, filter ActivityFilter) (int64, error) {
	var total int64
	err := filter.apply(db.WithContext(ctx).Model(&domain.ActivityLog{})).Count(&total).Error
	return total, err
}

// ListActivityPage returns a page of entries, newest first.
func ListActivityPage(ctx context.Context, db *gorm.DB, filter ActivityFilter, offset, limit int) ([]domain.ActivityLog, error) {
	var out []domain.ActivityLog
	err := filter.apply(db.WithContext(ctx)).
		Order("created_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
