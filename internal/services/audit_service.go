package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
	"github.com/tbourn/go-filemarket-backend/internal/repo"
	"github.com/tbourn/go-filemarket-backend/internal/utils"
)

// AuditService exposes invoices and the activity log to admins.
type AuditService struct {
	DB *gorm.DB
}

// ListInvoices returns a page of invoices, newest first.
func (s *AuditService) ListInvoices(ctx context.Context, actor identity.Identity, page, pageSize int) ([]domain.Invoice, int64, error) {
	if !actor.IsAdmin {
		return nil, 0, ErrNotAuthorized
	}
	page, pageSize = utils.ClampPage(page, pageSize)
	total, err := repo.CountInvoices(ctx, s.DB)
	if err != nil || total == 0 {
		return []domain.Invoice{}, total, err
	}
	items, err := repo.ListInvoicesPage(ctx, s.DB, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// ListActivity returns a page of activity entries matching filter.
func (s *AuditService) ListActivity(ctx context.Context, actor identity.Identity, filter repo.ActivityFilter, page, pageSize int) ([]domain.ActivityLog, int64, error) {
	if !actor.IsAdmin {
		return nil, 0, ErrNotAuthorized
	}
	page, pageSize = utils.ClampPage(page, pageSize)
	total, err := repo.CountActivity(ctx, s.DB, filter)
	if err != nil || total == 0 {
		return []domain.ActivityLog{}, total, err
	}
	items, err := repo.ListActivityPage(ctx, s.DB, filter, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}
