package cachedb

import (
	"database/sql"
	"fmt"
)

// Store is the top-level handle on the workspace cache. It owns the
// connection pool and exposes one repository per cached entity plus the
// metadata store. Users and channels share a Save/Get/Search/IsStale
// shape; members are saved, listed and checked for staleness per channel.
type Store struct {
	db       *sql.DB
	Users    *UserRepo
	Channels *ChannelRepo
	Members  *MemberRepo
	Meta     *MetadataRepo
}

// Open creates the data directory if needed, opens SQLite in WAL mode,
// runs migrations, and wires up the per-entity repositories.
func Open(cfg Config) (*Store, error) {
	db, err := openPool(cfg)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:       db,
		Users:    &UserRepo{db: db},
		Channels: &ChannelRepo{db: db},
		Members:  &MemberRepo{db: db},
		Meta:     &MetadataRepo{db: db},
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for packages that need to share the
// same connection (the lock manager acquires/releases rows in the same
// database the repositories read and write).
func (s *Store) DB() *sql.DB {
	return s.db
}

// execer/queryer are the statement methods *sql.DB and *sql.Tx have in
// common. The repositories in this package call *sql.DB and *sql.Tx
// directly rather than through these interfaces.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic — the shape every atomic-swap Save uses.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
