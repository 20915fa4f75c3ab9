package cachedb

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/chatcache/chatcache/internal/chatcacheerr"
)

// MetadataRepo is a small key/value store backing staleness bookkeeping
// (last_*_sync timestamps, schema_version) in a dedicated table rather
// than bespoke columns per tracked fact.
type MetadataRepo struct {
	db *sql.DB
}

// Get returns a metadata value, or ("", false) if the key is unset.
func (r *MetadataRepo) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "get metadata", err)
	default:
		return value, true, nil
	}
}

// Set upserts a metadata value.
func (r *MetadataRepo) Set(key, value string) error {
	if _, err := r.db.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`, key, value); err != nil {
		return chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "set metadata", err)
	}
	return nil
}

// isStale reports whether the unix-seconds timestamp stored under key is
// older than ttlHours, or absent entirely.
func (r *MetadataRepo) isStale(key string, ttlHours float64) (bool, error) {
	raw, ok, err := r.Get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, chatcacheerr.NewCacheError(chatcacheerr.KindSerialization, "parse "+key, err)
	}

	age := now().Sub(time.Unix(sec, 0))
	return age.Hours() > ttlHours, nil
}
