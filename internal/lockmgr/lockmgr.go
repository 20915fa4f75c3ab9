// Package lockmgr implements a cooperative distributed lock: a
// SQL-table-backed mutex with stale reclamation, used to keep
// concurrent refreshes of the same scope from racing each other.
package lockmgr

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chatcache/chatcache/internal/chatcacheerr"
)

// Manager acquires and releases rows in the `locks` table.
type Manager struct {
	db       *sql.DB
	holderID string
	ttl      time.Duration
	sleep    func(context.Context, time.Duration) error // test seam
}

// New creates a Manager with a fresh random holder ID and the given lock
// TTL (how long a held lock survives before another holder may reclaim it
// as stale).
func New(db *sql.DB, ttl time.Duration) *Manager {
	return &Manager{
		db:       db,
		holderID: uuid.NewString(),
		ttl:      ttl,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	maxAttempts  = 3
	baseBackoff  = 500 * time.Millisecond
	backoffGrow  = 2
	backoffJitMs = 250
)

// WithLock runs fn while holding name, retrying acquisition with bounded
// exponential backoff (3 attempts, 500ms base, doubling) before giving up
// with a LockAcquisitionFailed error. The lock is always released before
// WithLock returns, even if fn panics.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	backoff := baseBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		acquired, err := m.tryAcquire(name)
		if err != nil {
			return chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "acquire lock", err)
		}
		if acquired {
			return m.runLocked(ctx, name, fn)
		}

		if attempt == maxAttempts {
			break
		}
		if err := m.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= backoffGrow
	}

	return &chatcacheerr.LockAcquisitionFailed{Name: name, Attempts: maxAttempts}
}

func (m *Manager) runLocked(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if relErr := m.release(name); relErr != nil && err == nil {
			err = chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "release lock", relErr)
		}
	}()
	return fn(ctx)
}

// tryAcquire reclaims name if its prior holder's lease expired, then
// attempts an insert-or-fail acquire. Both steps run in one transaction
// so a concurrent reclaim-then-acquire race can't leave two holders
// believing they hold the same name.
func (m *Manager) tryAcquire(name string) (bool, error) {
	tx, err := m.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	nowUnix := time.Now().Unix()

	if _, err := tx.Exec(`DELETE FROM locks WHERE name = ? AND expires_at < ?`, name, nowUnix); err != nil {
		return false, err
	}

	res, err := tx.Exec(
		`INSERT INTO locks(name, holder_id, acquired_at, expires_at) SELECT ?, ?, ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM locks WHERE name = ?)`,
		name, m.holderID, nowUnix, nowUnix+int64(m.ttl.Seconds()), name,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Rollback()
	}

	return true, tx.Commit()
}

// release deletes name only if still held by this manager's holder ID,
// so a lock whose lease already expired and was reclaimed by someone
// else is never accidentally released out from under them.
func (m *Manager) release(name string) error {
	_, err := m.db.Exec(`DELETE FROM locks WHERE name = ? AND holder_id = ?`, name, m.holderID)
	return err
}

// ErrNotHeld reports that a lock expected to be held is not held. No
// function in this package returns it.
var ErrNotHeld = errors.New("lockmgr: lock not held")
