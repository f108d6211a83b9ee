package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tbourn/go-filemarket-backend/internal/repo"
)

// DefaultStoreTimeout bounds a single service call's store work when the
// caller has not configured one.
const DefaultStoreTimeout = 3 * time.Second

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// storeErr wraps timeouts and connectivity failures in ErrStoreUnavailable
// and passes every other error through unchanged.
func storeErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	if ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// isBusy reports SQLite lock contention, which clears on retry.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "database is locked") ||
		strings.Contains(low, "sqlite_busy") ||
		strings.Contains(low, "database table is locked")
}

// retryable reports whether a ledger write lost a race and may be retried
// against fresh state.
func retryable(err error) bool {
	return repo.IsUniqueViolation(err) || isBusy(err)
}
