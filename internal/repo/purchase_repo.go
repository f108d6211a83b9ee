// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the Purchase Ledger.
//
// The ledger is an append-and-update log. Rows are never deleted. Status only
// moves through UpdateStatus, which performs a compare-and-swap against the
// 'pending' state, so concurrent decisions on one purchase cannot both apply.
//
// Duplicate prevention for (user_id, file_id) is backed by the partial unique
// index ux_purchases_active created in AutoMigrate. InsertPending checks for an
// active row first and falls back to the index when two callers race.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound.
//   - InsertPending returns the already active purchase together with
//     ErrDuplicate.
//   - UpdateStatus returns ErrNotPending when the row exists but has already
//     left 'pending', and ErrInvalidTransition for non-terminal targets.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

var (
	// ErrNotPending is returned by UpdateStatus when the purchase is already terminal.
	ErrNotPending = errors.New("purchase is not pending")
	// ErrInvalidTransition is returned by UpdateStatus for a target state the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

var activeStatuses = []domain.PurchaseStatus{domain.PurchasePending, domain.PurchaseApproved}

// InsertPending creates a pending purchase for (userID, fileID) unless an
// active one already exists, in which case that purchase is returned along
// with ErrDuplicate.
//
// db may be a transaction. The insert runs in a nested transaction (a
// savepoint inside an outer one) so a unique violation does not poison the
// caller's transaction before the existing row is re-read.
func InsertPending(ctx context.Context, db *gorm.DB, userID, fileID, paymentMethod string, amount int64) (*domain.Purchase, error) {
	if existing, err := FindActiveByUserAndFile(ctx, db, userID, fileID); err == nil {
		return existing, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	p := &domain.Purchase{
		ID:            uuid.NewString(),
		FileID:        fileID,
		UserID:        userID,
		PaymentMethod: paymentMethod,
		Amount:        amount,
		Status:        domain.PurchasePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(p).Error
	})
	if err == nil {
		return p, nil
	}
	if !IsUniqueViolation(err) {
		return nil, err
	}
	// Lost the race: another request created the active row first.
	existing, ferr := FindActiveByUserAndFile(ctx, db, userID, fileID)
	if ferr != nil {
		return nil, err
	}
	return existing, ErrDuplicate
}

// GetPurchase fetches a purchase by id.
func GetPurchase(ctx context.Context, db *gorm.DB, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActiveByUserAndFile returns the pending-or-approved purchase for the
// pair, or ErrNotFound.
func FindActiveByUserAndFile(ctx context.Context, db *gorm.DB, userID, fileID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).
		Where("user_id = ? AND file_id = ? AND status IN ?", userID, fileID, activeStatuses).
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindApproved returns the approved purchase for the pair, or ErrNotFound.
func FindApproved(ctx context.Context, db *gorm.DB, userID, fileID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).
		Where("user_id = ? AND file_id = ? AND status = ?", userID, fileID, domain.PurchaseApproved).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus moves purchase id from 'pending' to the terminal state to.
//
// The update is a single conditional statement (WHERE status = 'pending'), so
// of two concurrent callers exactly one observes RowsAffected == 1. The loser
// gets ErrNotPending; an unknown id gets ErrNotFound. On success the updated
// row is returned.
func UpdateStatus(ctx context.Context, db *gorm.DB, id string, to domain.PurchaseStatus, now time.Time) (*domain.Purchase, error) {
	if !domain.CanTransition(domain.PurchasePending, to) {
		return nil, ErrInvalidTransition
	}
	res := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("id = ? AND status = ?", id, domain.PurchasePending).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := GetPurchase(ctx, db, id); err != nil {
			return nil, err
		}
		return nil, ErrNotPending
	}
	return GetPurchase(ctx, db, id)
}

// CountPurchasesByUser returns the number of purchases made by userID.
func CountPurchasesByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListPurchasesByUserPage returns a page of userID's purchases, newest first.
func ListPurchasesByUserPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func statusScope(q *gorm.DB, status domain.PurchaseStatus) *gorm.DB {
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q
}

// CountPurchases returns the number of purchases, optionally filtered by status.
func CountPurchases(ctx context.Context, db *gorm.DB, status domain.PurchaseStatus) (int64, error) {
	var total int64
	err := statusScope(db.WithContext(ctx).Model(&domain.Purchase{}), status).Count(&total).Error
	return total, err
}

// ListPurchasesPage returns a page of all purchases (admin view), newest first,
// optionally filtered by status.
func ListPurchasesPage(ctx context.Context, db *gorm.DB, status domain.PurchaseStatus, offset, limit int) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := statusScope(db.WithContext(ctx), status).
		Order("created_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
