package cachedb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chatcache/chatcache/internal/chatcacheerr"
)

// ChannelRepo is the repository for cached workspace channels.
type ChannelRepo struct {
	db *sql.DB
}

// Save atomically replaces the entire channel set, identical in shape to
// UserRepo.Save.
func (r *ChannelRepo) Save(channels []Channel) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`CREATE TEMP TABLE channels_staging (id TEXT PRIMARY KEY, doc TEXT NOT NULL, updated_at INTEGER NOT NULL)`); err != nil {
			return fmt.Errorf("cachedb: create channels_staging: %w", err)
		}
		defer tx.Exec(`DROP TABLE IF EXISTS channels_staging`)

		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO channels_staging(id, doc, updated_at) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("cachedb: prepare channels_staging insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range channels {
			if _, err := stmt.Exec(c.ID, c.Doc, c.UpdatedAt); err != nil {
				return fmt.Errorf("cachedb: stage channel %s: %w", c.ID, err)
			}
		}

		if _, err := tx.Exec(`DELETE FROM channels`); err != nil {
			return fmt.Errorf("cachedb: clear channels: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO channels(id, doc, updated_at) SELECT id, doc, updated_at FROM channels_staging`); err != nil {
			return fmt.Errorf("cachedb: swap channels: %w", err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES ('last_channels_sync', ?)`, fmt.Sprint(now().Unix())); err != nil {
			return fmt.Errorf("cachedb: stamp last_channels_sync: %w", err)
		}
		return nil
	})
}

// Get returns the channel by id, or a KindNotFound CacheError.
func (r *ChannelRepo) Get(id string) (*Channel, error) {
	row := r.db.QueryRow(`SELECT id, doc, name, is_private, is_im, is_mpim, updated_at FROM channels WHERE id = ?`, id)
	c, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindNotFound, "get channel", err)
		}
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "get channel", err)
	}
	return c, nil
}

// ListAll returns every cached channel, ordered by id. Used by the
// refresh orchestrator to enumerate channels for a members refresh.
func (r *ChannelRepo) ListAll() ([]Channel, error) {
	rows, err := r.db.Query(`SELECT id, doc, name, is_private, is_im, is_mpim, updated_at FROM channels ORDER BY id ASC`)
	if err != nil {
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "list channels", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var c Channel
		var isPrivate, isIM, isMPIM int
		if err := rows.Scan(&c.ID, &c.Doc, &c.Name, &isPrivate, &isIM, &isMPIM, &c.UpdatedAt); err != nil {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "scan channel row", err)
		}
		c.IsPrivate, c.IsIM, c.IsMPIM = isPrivate != 0, isIM != 0, isMPIM != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of cached channels.
func (r *ChannelRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT count(*) FROM channels`).Scan(&n); err != nil {
		return 0, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "count channels", err)
	}
	return n, nil
}

// IsEmpty reports whether the cache has never been populated.
func (r *ChannelRepo) IsEmpty() (bool, error) {
	n, err := r.Count()
	return n == 0, err
}

// IsStale reports whether last_channels_sync is older than ttlHours.
func (r *ChannelRepo) IsStale(meta *MetadataRepo, ttlHours float64) (bool, error) {
	return meta.isStale("last_channels_sync", ttlHours)
}

// Search performs the same two-phase substring-then-FTS5 search as
// UserRepo.Search, scoped to the channel name field only.
func (r *ChannelRepo) Search(query string, limit int) ([]SearchResult[Channel], error) {
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

func (r *ChannelRepo) searchSubstring(query string, limit int) ([]SearchResult[Channel], error) {
	pattern := "%" + likePattern(query) + "%"
	prefixPattern := likePattern(query) + "%"

	rows, err := r.db.Query(`
		SELECT id, doc, name, is_private, is_im, is_mpim, updated_at,
			CASE
				WHEN lower(name) = lower(?) THEN 0
				WHEN lower(name) LIKE lower(?) ESCAPE '\' THEN 1
				WHEN lower(name) LIKE lower('%-' || ?) ESCAPE '\' OR lower(name) LIKE lower('%_' || ? || '_%') ESCAPE '\' THEN 2
				ELSE 3
			END AS score
		FROM channels
		WHERE lower(name) LIKE lower(?) ESCAPE '\'
		ORDER BY score ASC, name ASC, id ASC
		LIMIT ?`,
		query, prefixPattern, query, query, pattern, limit,
	)
	if err != nil {
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "search channels (substring)", err)
	}
	defer rows.Close()

	var out []SearchResult[Channel]
	for rows.Next() {
		var c Channel
		var isPrivate, isIM, isMPIM int
		var score int
		if err := rows.Scan(&c.ID, &c.Doc, &c.Name, &isPrivate, &isIM, &isMPIM, &c.UpdatedAt, &score); err != nil {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "scan channel search row", err)
		}
		c.IsPrivate, c.IsIM, c.IsMPIM = isPrivate != 0, isIM != 0, isMPIM != 0
		out = append(out, SearchResult[Channel]{Entity: c, Score: score})
	}
	return out, rows.Err()
}

func (r *ChannelRepo) searchFTS(ftsQuery string, limit int) ([]SearchResult[Channel], error) {
	rows, err := r.db.Query(`
		SELECT c.id, c.doc, c.name, c.is_private, c.is_im, c.is_mpim, c.updated_at
		FROM channels_fts fts
		JOIN channels c ON c.rowid = fts.rowid
		WHERE channels_fts MATCH ?
		ORDER BY fts.rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "search channels (fts)", err)
	}
	defer rows.Close()

	var out []SearchResult[Channel]
	for rows.Next() {
		var c Channel
		var isPrivate, isIM, isMPIM int
		if err := rows.Scan(&c.ID, &c.Doc, &c.Name, &isPrivate, &isIM, &isMPIM, &c.UpdatedAt); err != nil {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "scan channel fts row", err)
		}
		c.IsPrivate, c.IsIM, c.IsMPIM = isPrivate != 0, isIM != 0, isMPIM != 0
		out = append(out, SearchResult[Channel]{Entity: c, Score: -1})
	}
	return out, rows.Err()
}

func scanChannel(row rowOrRows) (*Channel, error) {
	var c Channel
	var isPrivate, isIM, isMPIM int
	if err := row.Scan(&c.ID, &c.Doc, &c.Name, &isPrivate, &isIM, &isMPIM, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.IsPrivate, c.IsIM, c.IsMPIM = isPrivate != 0, isIM != 0, isMPIM != 0
	return &c, nil
}
