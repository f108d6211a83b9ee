package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

// DownloadStats summarises a user's download rows for conditional responses.
type DownloadStats struct {
	Rows             int64
	Downloads        int64
	LastDownloadedAt *time.Time
}

// PurchasesStats returns the number of purchases owned by userID and the
// greatest UpdatedAt among them, or (0, nil) when there are none. A decision
// bumps updated_at, so the pair moves whenever any purchase in the list does.
func PurchasesStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	q := db.WithContext(ctx).Model(&domain.Purchase{}).Where("user_id = ?", userID)
	return countAndLatest(q, "updated_at")
}

// DownloadsStats returns the row count, the summed download counter and the
// latest last_downloaded_at of userID's download rows.
func DownloadsStats(ctx context.Context, db *gorm.DB, userID string) (DownloadStats, error) {
	q := db.WithContext(ctx).Model(&domain.DownloadRecord{}).Where("user_id = ?", userID)

	rows, last, err := countAndLatest(q, "last_downloaded_at")
	if err != nil || rows == 0 {
		return DownloadStats{}, err
	}
	var sum struct{ Total int64 }
	if err := q.Session(&gorm.Session{}).
		Select("COALESCE(SUM(download_count), 0) AS total").
		Scan(&sum).Error; err != nil {
		return DownloadStats{}, err
	}
	return DownloadStats{Rows: rows, Downloads: sum.Total, LastDownloadedAt: last}, nil
}

// countAndLatest counts q and reads the greatest value of col by ordering
// rather than MAX(), which SQLite hands back as TEXT.
func countAndLatest(q *gorm.DB, col string) (int64, *time.Time, error) {
	var n int64
	if err := q.Session(&gorm.Session{}).Count(&n).Error; err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, nil
	}
	var latest struct{ At time.Time }
	if err := q.Session(&gorm.Session{}).
		Select(col + " AS at").
		Order(col + " DESC").
		Limit(1).
		Scan(&latest).Error; err != nil {
		return 0, nil, err
	}
	return n, &latest.At, nil
}
