package cachedb

import (
	"database/sql"
	"fmt"

	"github.com/chatcache/chatcache/internal/chatcacheerr"
)

// MemberRepo is the repository for cached channel membership, backing
// the ttl_members_hours staleness setting against a real table rather
// than a bare TTL with nothing to measure it against.
type MemberRepo struct {
	db *sql.DB
}

// SaveChannel atomically replaces the membership list of a single
// channel. Unlike UserRepo/ChannelRepo.Save, this swaps only the rows for
// one channel_id, since membership is refreshed per-channel rather than
// workspace-wide.
func (r *MemberRepo) SaveChannel(channelID string, members []Member) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM members WHERE channel_id = ?`, channelID); err != nil {
			return fmt.Errorf("cachedb: clear members for %s: %w", channelID, err)
		}

		stmt, err := tx.Prepare(`INSERT INTO members(channel_id, user_id, joined_at) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("cachedb: prepare members insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range members {
			if _, err := stmt.Exec(channelID, m.UserID, m.JoinedAt); err != nil {
				return fmt.Errorf("cachedb: insert member %s/%s: %w", channelID, m.UserID, err)
			}
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata(key, value) VALUES ('last_members_sync:' || ?, ?)`, channelID, fmt.Sprint(now().Unix())); err != nil {
			return fmt.Errorf("cachedb: stamp last_members_sync: %w", err)
		}
		return nil
	})
}

// ListChannel returns the cached member user IDs of a channel.
func (r *MemberRepo) ListChannel(channelID string) ([]Member, error) {
	rows, err := r.db.Query(`SELECT channel_id, user_id, joined_at FROM members WHERE channel_id = ? ORDER BY joined_at ASC`, channelID)
	if err != nil {
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "list members", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "scan member row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListChannelsForUser returns the cached channel memberships of a user,
// the reverse direction of ListChannel.
func (r *MemberRepo) ListChannelsForUser(userID string) ([]Member, error) {
	rows, err := r.db.Query(`SELECT channel_id, user_id, joined_at FROM members WHERE user_id = ? ORDER BY joined_at ASC`, userID)
	if err != nil {
		return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "list channels for user", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, chatcacheerr.NewCacheError(chatcacheerr.KindDatabase, "scan member row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IsStale reports whether channelID's membership was last synced more
// than ttlHours ago, or never synced at all.
func (r *MemberRepo) IsStale(meta *MetadataRepo, channelID string, ttlHours float64) (bool, error) {
	return meta.isStale("last_members_sync:"+channelID, ttlHours)
}
