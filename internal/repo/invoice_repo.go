// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for invoices.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

// CreateInvoice inserts inv. A second invoice for the same purchase, or a
// reused invoice number, returns ErrDuplicate.
func CreateInvoice(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	if err := db.WithContext(ctx).Create(inv).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetInvoiceByPurchase returns the invoice issued for purchaseID, or ErrNotFound.
func GetInvoiceByPurchase(ctx context.Context, db *gorm.DB, purchaseID string) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// CountInvoices returns the total number of invoices.
func CountInvoices(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Invoice{}).Count(&total).Error
	return total, err
}

// ListInvoicesPage returns a page of invoices, newest first.
func ListInvoicesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := db.WithContext(ctx).
		Order("created_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
