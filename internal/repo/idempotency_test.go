package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

// seedKey stores a replay key for user u1 on file f1 expiring at exp.
func seedKey(t *testing.T, db *gorm.DB, id, key, downloadID string, exp time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&domain.Idempotency{
		ID: id, UserID: "u1", Scope: "f1", Key: key,
		ResourceID: downloadID, Status: 200,
		CreatedAt: exp.Add(-time.Hour), ExpiresAt: exp,
	}).Error)
}

func TestGetIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()
	seedKey(t, db, "live", "k-live", "d1", now.Add(time.Hour))
	seedKey(t, db, "stale", "k-stale", "d0", now.Add(-time.Minute))

	misses := map[string][3]string{
		"blank scope": {"u1", "  ", "k-live"},
		"expired":     {"u1", "f1", "k-stale"},
		"unknown key": {"u1", "f1", "k-none"},
		"other user":  {"u2", "f1", "k-live"},
		"other file":  {"u1", "f2", "k-live"},
	}
	for name, m := range misses {
		rec, err := GetIdempotency(context.Background(), db, m[0], m[1], m[2], now)
		assert.Nil(t, rec, name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	rec, err := GetIdempotency(context.Background(), db, "u1", "f1", "k-live", now)
	require.NoError(t, err)
	assert.Equal(t, "d1", rec.ResourceID)
	assert.Equal(t, 200, rec.Status)
}

func TestCreateIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	before := time.Now().UTC()

	rec, err := CreateIdempotency(context.Background(), db, "u9", "f9", "k9", "d9", 200, 90*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, [4]string{"u9", "f9", "k9", "d9"}, [4]string{rec.UserID, rec.Scope, rec.Key, rec.ResourceID})
	assert.WithinDuration(t, before.Add(90*time.Minute), rec.ExpiresAt, time.Minute)

	_, err = CreateIdempotency(context.Background(), db, "u9", "f9", "k9", "other", 200, time.Minute)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same key under another file is a separate slot.
	_, err = CreateIdempotency(context.Background(), db, "u9", "f10", "k9", "d10", 200, time.Minute)
	assert.NoError(t, err)
}

func TestCreateIdempotency_StorageError(t *testing.T) {
	db := newTestDB(t)
	_, err := CreateIdempotency(context.Background(), db, "u", "f", "k", "d", 200, time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()
	seedKey(t, db, "a", "ka", "d", now.Add(-time.Hour))
	seedKey(t, db, "b", "kb", "d", now.Add(-time.Second))
	seedKey(t, db, "c", "kc", "d", now.Add(time.Hour))

	n, err := PurgeExpiredIdempotency(context.Background(), db, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	var ids []string
	require.NoError(t, db.Model(&domain.Idempotency{}).Pluck("id", &ids).Error)
	assert.Equal(t, []string{"c"}, ids)
}

func TestClaimIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ClaimIdempotency(ctx, tx, "u1", "f1", "k1", "d1", time.Hour, now)
	}))

	// A live claim cannot be taken over.
	err := db.Transaction(func(tx *gorm.DB) error {
		return ClaimIdempotency(ctx, tx, "u1", "f1", "k1", "d2", time.Hour, now)
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Once expired, the slot is reusable even before a purge runs.
	later := now.Add(2 * time.Hour)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ClaimIdempotency(ctx, tx, "u1", "f1", "k1", "d3", time.Hour, later)
	}))
	rec, err := GetIdempotency(ctx, db, "u1", "f1", "k1", later)
	require.NoError(t, err)
	assert.Equal(t, "d3", rec.ResourceID)
}

func TestClaimIdempotency_RolledBackWithCaller(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()
	boom := errors.New("download upsert failed")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ClaimIdempotency(ctx, tx, "u1", "f1", "k1", "d1", time.Hour, now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = GetIdempotency(ctx, db, "u1", "f1", "k1", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIdempotencyLedger(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	l := IdempotencyLedger{DB: db}
	now := time.Now().UTC()

	_, found, err := l.Lookup(ctx, "u1", "f1", "k1", now)
	require.NoError(t, err)
	assert.False(t, found)

	seedKey(t, db, "a", "k1", "d1", now.Add(time.Hour))

	id, found, err := l.Lookup(ctx, "u1", "f1", "k1", now)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "d1", id)

	_, found, err = l.Lookup(ctx, "u1", "f1", "k1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyLedger_LookupError(t *testing.T) {
	l := IdempotencyLedger{DB: newTestDB(t)}
	_, found, err := l.Lookup(context.Background(), "u1", "f1", "k1", time.Now())
	assert.Error(t, err)
	assert.False(t, found)
}
