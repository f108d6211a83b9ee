package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestUpsertDownload_CreateThenIncrement(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	t1 := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	pid := "p1"
	d1, err := UpsertDownload(ctx, db, "u1", "f1", &pid, t1)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if d1.DownloadCount != 1 || d1.PurchaseID == nil || *d1.PurchaseID != "p1" || !d1.LastDownloadedAt.Equal(t1) {
		t.Fatalf("unexpected first record: %+v", d1)
	}

	t2 := t1.Add(time.Hour)
	d2, err := UpsertDownload(ctx, db, "u1", "f1", nil, t2)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if d2.ID != d1.ID {
		t.Fatalf("expected the same row, got %s vs %s", d2.ID, d1.ID)
	}
	if d2.DownloadCount != 2 || !d2.LastDownloadedAt.Equal(t2) {
		t.Fatalf("unexpected second record: %+v", d2)
	}
	if d2.PurchaseID == nil || *d2.PurchaseID != "p1" {
		t.Fatalf("purchase id should be kept, got %v", d2.PurchaseID)
	}
}

func TestUpsertDownload_FreeFileHasNoPurchase(t *testing.T) {
	db := newLedgerDB(t)
	d, err := UpsertDownload(context.Background(), db, "u1", "free", nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if d.PurchaseID != nil || d.DownloadCount != 1 {
		t.Fatalf("unexpected record: %+v", d)
	}
}

func TestUpsertDownload_ConcurrentIncrements(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := UpsertDownload(ctx, db, "u1", "f1", nil, time.Now().UTC()); err != nil {
				t.Errorf("upsert: %v", err)
			}
		}()
	}
	wg.Wait()

	d, err := GetDownload(ctx, db, "u1", "f1")
	if err != nil {
		t.Fatalf("GetDownload: %v", err)
	}
	if d.DownloadCount != n {
		t.Fatalf("expected count %d, got %d", n, d.DownloadCount)
	}
}

func TestGetDownloadHistoryAndByID(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a, _ := UpsertDownload(ctx, db, "u1", "fa", nil, base)
	b, _ := UpsertDownload(ctx, db, "u1", "fb", nil, base.Add(time.Minute))
	_, _ = UpsertDownload(ctx, db, "u2", "fa", nil, base.Add(2*time.Minute))

	hist, err := GetDownloadHistory(ctx, db, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].ID != b.ID || hist[1].ID != a.ID {
		t.Fatalf("unexpected history: %+v", hist)
	}

	got, err := GetDownloadByID(ctx, db, a.ID)
	if err != nil || got.FileID != "fa" {
		t.Fatalf("GetDownloadByID: %+v, %v", got, err)
	}
	if _, err := GetDownloadByID(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := GetDownload(ctx, db, "u3", "fa"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
