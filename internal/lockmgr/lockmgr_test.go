package lockmgr_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chatcache/chatcache/internal/lockmgr"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "locks.db"))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE locks (name TEXT PRIMARY KEY, holder_id TEXT NOT NULL, acquired_at INTEGER NOT NULL, expires_at INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create locks table: %v", err)
	}
	return db
}

func TestWithLock_RunsFnAndReleases(t *testing.T) {
	db := newTestDB(t)
	m := lockmgr.New(db, time.Minute)

	var ran bool
	err := m.WithLock(context.Background(), "refresh_users", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Fatal("fn was not invoked")
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM locks WHERE name = 'refresh_users'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("lock row should be released, found %d rows", count)
	}
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	db := newTestDB(t)
	m := lockmgr.New(db, time.Minute)

	err := m.WithLock(context.Background(), "refresh_users", func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("expected fn's error to propagate")
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM locks WHERE name = 'refresh_users'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("lock must release even when fn returns an error")
	}
}

func TestWithLock_FailsWhenAlreadyHeld(t *testing.T) {
	db := newTestDB(t)

	// Simulate another process holding the lock with a lease far in the future.
	if _, err := db.Exec(`INSERT INTO locks(name, holder_id, acquired_at, expires_at) VALUES (?, ?, ?, ?)`,
		"refresh_users", "other-holder", time.Now().Unix(), time.Now().Add(time.Hour).Unix()); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	m := lockmgr.New(db, time.Minute)

	var attempts int32
	err := m.WithLock(context.Background(), "refresh_users", func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return nil
	})
	if err == nil {
		t.Fatal("expected lock acquisition to fail")
	}
	if attempts != 0 {
		t.Fatal("fn should never run when the lock can't be acquired")
	}
}

func TestWithLock_ReclaimsStaleLock(t *testing.T) {
	db := newTestDB(t)

	// Expired lease from a crashed holder.
	if _, err := db.Exec(`INSERT INTO locks(name, holder_id, acquired_at, expires_at) VALUES (?, ?, ?, ?)`,
		"refresh_users", "dead-holder", time.Now().Add(-time.Hour).Unix(), time.Now().Add(-time.Minute).Unix()); err != nil {
		t.Fatalf("seed stale lock: %v", err)
	}

	m := lockmgr.New(db, time.Minute)

	var ran bool
	err := m.WithLock(context.Background(), "refresh_users", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock should reclaim the stale lock: %v", err)
	}
	if !ran {
		t.Fatal("fn was not invoked")
	}
}
