package cachedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection of a failing driver.
var openDB = sql.Open

// Config configures the pool backing a Store.
type Config struct {
	// DataDir holds the SQLite file. Created with 0700 if missing.
	DataDir string
	// MaxOpenConns bounds concurrent connections; database/sql's own
	// semaphore is the pool, there is no separate pool type to configure.
	MaxOpenConns int
}

const dbFileName = "cache.db"

// openPool opens the SQLite file under cfg.DataDir, applies the pragmas
// the engine depends on for correctness under concurrent readers/writers,
// and runs migrate. WAL mode lets readers see a consistent snapshot while
// a refresh's atomic swap is mid-transaction.
func openPool(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("cachedb: create data dir: %w", err)
	}

	// The _pragma parameters are applied by the driver to every new
	// connection in the pool; the PRAGMA loop below covers the first one.
	dbPath := filepath.Join(cfg.DataDir, dbFileName)
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cachedb: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cachedb: pragma %q: %w", p, err)
		}
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
