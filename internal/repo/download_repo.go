// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides Download Accounting.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

// UpsertDownload atomically creates the (fileID, userID) download row with a
// count of 1, or increments the existing row's count by exactly 1. It is a
// single INSERT ... ON CONFLICT DO UPDATE statement, so concurrent calls never
// lose an increment. The resulting row is returned.
//
// purchaseID is nil for free files; an existing non-nil purchase id is kept
// when a later call passes nil.
func UpsertDownload(ctx context.Context, db *gorm.DB, userID, fileID string, purchaseID *string, now time.Time) (*domain.DownloadRecord, error) {
	rec := &domain.DownloadRecord{
		ID:               uuid.NewString(),
		FileID:           fileID,
		UserID:           userID,
		PurchaseID:       purchaseID,
		DownloadCount:    1,
		LastDownloadedAt: now,
		CreatedAt:        now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"download_count":     gorm.Expr("file_downloads.download_count + 1"),
			"last_downloaded_at": now,
			"purchase_id":        gorm.Expr("COALESCE(excluded.purchase_id, file_downloads.purchase_id)"),
		}),
	}).Create(rec).Error
	if err != nil {
		return nil, err
	}
	return GetDownload(ctx, db, userID, fileID)
}

// GetDownload returns the download row for (userID, fileID), or ErrNotFound.
func GetDownload(ctx context.Context, db *gorm.DB, userID, fileID string) (*domain.DownloadRecord, error) {
	var d domain.DownloadRecord
	err := db.WithContext(ctx).
		Where("file_id = ? AND user_id = ?", fileID, userID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDownloadByID returns a download row by primary key, or ErrNotFound.
func GetDownloadByID(ctx context.Context, db *gorm.DB, id string) (*domain.DownloadRecord, error) {
	var d domain.DownloadRecord
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDownloadHistory returns all of userID's download rows, most recently
// downloaded first.
func GetDownloadHistory(ctx context.Context, db *gorm.DB, userID string) ([]domain.DownloadRecord, error) {
	var out []domain.DownloadRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_downloaded_at desc, id asc").
		Find(&out).Error
	return out, err
}
