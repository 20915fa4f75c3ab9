package cachedb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chatcache/chatcache/internal/chatcacheerr"
)

// UserRepo is the repository for cached workspace users.
type UserRepo struct {
	db *sql.DB
}

// Save atomically replaces the entire user set with users: load into a
// temp staging table, then swap it into the live table inside one
// transaction, so WAL-mode readers only ever see the pre- or
// post-refresh snapshot, never a half-populated one.
func (r *UserRepo) Save(users []User) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`CREATE TEMP TABLE users_staging (id TEXT PRIMARY KEY, doc TEXT NOT NULL, updated_at INTEGER NOT NULL)`); err != nil {
			return fmt.Errorf("cachedb: create users_staging: %w", err)
		}
		defer tx.Exec(`DROP TABLE IF EXISTS users_staging`)

		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO users_staging(id, doc, updated_at) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("cachedb: prepare users_staging insert: %w", err)
		}
		defer stmt.Close()

		for _, u := range users {
			if _, err := stmt.Exec(u.ID, u.Doc, u.UpdatedAt); err != nil {
				return fmt.Errorf("cachedb: stage user %s: %w", u.ID, err)
			}
		}

		if _, err := tx.Exec(`DELETE FROM users`); err != nil {
			return fmt.Errorf("cachedb: clear users: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO users(id, doc, updated_at) SELECT id, doc, updated_at FROM users_staging`); err != nil {
			return fmt.Errorf("cachedb: swap users: %w", err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES ('last_users_sync', ?)`, fmt.Sprint(now().Unix())); err != nil {
			return fmt.Errorf("cachedb: stamp last_users_sync: %w", err)
		}
		return nil
	})
}

// Get returns the user by id, or a KindNotFound CacheError.
func (r *UserRepo) Get(id string) (*User, error) {
	row := r.db.QueryRow(`SELECT id, doc, name, display_name, real_name, email, is_bot, updated_at FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindNotFound, "get user", err)
		}
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "get user", err)
	}
	return u, nil
}

// Count returns the number of cached users.
func (r *UserRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "count users", err)
	}
	return n, nil
}

// IsEmpty reports whether the cache has never been populated.
func (r *UserRepo) IsEmpty() (bool, error) {
	n, err := r.Count()
	return n == 0, err
}

// IsStale reports whether last_users_sync is older than ttlHours, or
// absent entirely (never synced counts as stale).
func (r *UserRepo) IsStale(meta *MetadataRepo, ttlHours float64) (bool, error) {
	return meta.isStale("last_users_sync", ttlHours)
}

// Search performs a two-phase search: Phase 1 scores substring matches
// on name/display_name/real_name (0=exact, 1=prefix, 2=word-boundary
// substring, 3=other substring); if Phase 1 finds nothing and the
// sanitized query isn't degenerate, Phase 2 falls back to an FTS5
// MATCH query ordered by rank.
func (r *UserRepo) Search(query string, limit int) ([]SearchResult[User], error) {
	if limit <= 0 {
		limit = 20
	}

	results, err := r.searchSubstring(query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}

	ftsQuery, degenerate := sanitizeFTS(query)
	if degenerate {
		return results, nil
	}
	return r.searchFTS(ftsQuery, limit)
}

func (r *UserRepo) searchSubstring(query string, limit int) ([]SearchResult[User], error) {
	pattern := "%" + likePattern(query) + "%"
	prefixPattern := likePattern(query) + "%"

	rows, err := r.db.Query(`
		SELECT id, doc, name, display_name, real_name, email, is_bot, updated_at,
			CASE
				WHEN lower(name) = lower(?) OR lower(display_name) = lower(?) OR lower(real_name) = lower(?) THEN 0
				WHEN lower(name) LIKE lower(?) ESCAPE '\' OR lower(display_name) LIKE lower(?) ESCAPE '\' OR lower(real_name) LIKE lower(?) ESCAPE '\' THEN 1
				WHEN lower(name) LIKE lower('% ' || ?) ESCAPE '\' OR lower(display_name) LIKE lower('% ' || ?) ESCAPE '\' THEN 2
				ELSE 3
			END AS score
		FROM users
		WHERE (lower(name) LIKE lower(?) ESCAPE '\' OR lower(display_name) LIKE lower(?) ESCAPE '\' OR lower(real_name) LIKE lower(?) ESCAPE '\' OR lower(email) LIKE lower(?) ESCAPE '\')
			AND is_bot = 0
		ORDER BY score ASC, name ASC, id ASC
		LIMIT ?`,
		query, query, query,
		prefixPattern, prefixPattern, prefixPattern,
		pattern, pattern,
		pattern, pattern, pattern, pattern,
		limit,
	)
	if err != nil {
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "search users (substring)", err)
	}
	defer rows.Close()

	var out []SearchResult[User]
	for rows.Next() {
		var u User
		var isBot int
		var score int
		if err := rows.Scan(&u.ID, &u.Doc, &u.Name, &u.DisplayName, &u.RealName, &u.Email, &isBot, &u.UpdatedAt, &score); err != nil {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "scan user search row", err)
		}
		u.IsBot = isBot != 0
		out = append(out, SearchResult[User]{Entity: u, Score: score})
	}
	return out, rows.Err()
}

func (r *UserRepo) searchFTS(ftsQuery string, limit int) ([]SearchResult[User], error) {
	rows, err := r.db.Query(`
		SELECT u.id, u.doc, u.name, u.display_name, u.real_name, u.email, u.is_bot, u.updated_at
		FROM users_fts fts
		JOIN users u ON u.rowid = fts.rowid
		WHERE users_fts MATCH ? AND u.is_bot = 0
		ORDER BY fts.rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "search users (fts)", err)
	}
	defer rows.Close()

	var out []SearchResult[User]
	for rows.Next() {
		var u User
		var isBot int
		if err := rows.Scan(&u.ID, &u.Doc, &u.Name, &u.DisplayName, &u.RealName, &u.Email, &isBot, &u.UpdatedAt); err != nil {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "scan user fts row", err)
		}
		u.IsBot = isBot != 0
		out = append(out, SearchResult[User]{Entity: u, Score: -1})
	}
	return out, rows.Err()
}

type rowOrRows interface {
	Scan(dest ...any) error
}

func scanUser(row rowOrRows) (*User, error) {
	var u User
	var isBot int
	if err := row.Scan(&u.ID, &u.Doc, &u.Name, &u.DisplayName, &u.RealName, &u.Email, &isBot, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.IsBot = isBot != 0
	return &u, nil
}
