package cachedb

import (
	"database/sql"
	"fmt"
)

// schemaDDL creates every table, generated column, FTS5 shadow, and
// index the cache needs. It is idempotent (IF NOT EXISTS throughout) so
// it can run on every open.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	doc          TEXT NOT NULL,
	name         TEXT GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.name'), '')) STORED,
	display_name TEXT GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.display_name'), '')) STORED,
	real_name    TEXT GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.real_name'), '')) STORED,
	email        TEXT GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.email'), '')) STORED,
	is_bot       INTEGER GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.is_bot'), 0)) STORED,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_updated_at ON users(updated_at);

CREATE VIRTUAL TABLE IF NOT EXISTS users_fts USING fts5(
	name, display_name, real_name, email,
	tokenize = 'porter unicode61',
	content = 'users',
	content_rowid = 'rowid'
);

CREATE TRIGGER IF NOT EXISTS users_ai AFTER INSERT ON users BEGIN
	INSERT INTO users_fts(rowid, name, display_name, real_name, email)
	VALUES (new.rowid, new.name, new.display_name, new.real_name, new.email);
END;
CREATE TRIGGER IF NOT EXISTS users_ad AFTER DELETE ON users BEGIN
	INSERT INTO users_fts(users_fts, rowid, name, display_name, real_name, email)
	VALUES ('delete', old.rowid, old.name, old.display_name, old.real_name, old.email);
END;
CREATE TRIGGER IF NOT EXISTS users_au AFTER UPDATE ON users BEGIN
	INSERT INTO users_fts(users_fts, rowid, name, display_name, real_name, email)
	VALUES ('delete', old.rowid, old.name, old.display_name, old.real_name, old.email);
	INSERT INTO users_fts(rowid, name, display_name, real_name, email)
	VALUES (new.rowid, new.name, new.display_name, new.real_name, new.email);
END;

CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	name       TEXT GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.name'), '')) STORED,
	is_private INTEGER GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.is_private'), 0)) STORED,
	is_im      INTEGER GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.is_im'), 0)) STORED,
	is_mpim    INTEGER GENERATED ALWAYS AS (coalesce(json_extract(doc, '$.is_mpim'), 0)) STORED,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_channels_updated_at ON channels(updated_at);

CREATE VIRTUAL TABLE IF NOT EXISTS channels_fts USING fts5(
	name,
	tokenize = 'porter unicode61',
	content = 'channels',
	content_rowid = 'rowid'
);

CREATE TRIGGER IF NOT EXISTS channels_ai AFTER INSERT ON channels BEGIN
	INSERT INTO channels_fts(rowid, name) VALUES (new.rowid, new.name);
END;
CREATE TRIGGER IF NOT EXISTS channels_ad AFTER DELETE ON channels BEGIN
	INSERT INTO channels_fts(channels_fts, rowid, name) VALUES ('delete', old.rowid, old.name);
END;
CREATE TRIGGER IF NOT EXISTS channels_au AFTER UPDATE ON channels BEGIN
	INSERT INTO channels_fts(channels_fts, rowid, name) VALUES ('delete', old.rowid, old.name);
	INSERT INTO channels_fts(rowid, name) VALUES (new.rowid, new.name);
END;

CREATE TABLE IF NOT EXISTS members (
	channel_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	joined_at  INTEGER NOT NULL,
	PRIMARY KEY (channel_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_members_user ON members(user_id);

CREATE TABLE IF NOT EXISTS locks (
	name        TEXT PRIMARY KEY,
	holder_id   TEXT NOT NULL,
	acquired_at INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// migrate applies schemaDDL and stamps schema_version, failing loudly on
// a version mismatch rather than attempting an unimplemented migration.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("cachedb: apply schema: %w", err)
	}

	var versionStr string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&versionStr)
	switch {
	case err == sql.ErrNoRows:
		_, err := db.Exec(`INSERT INTO metadata(key, value) VALUES ('schema_version', ?)`, fmt.Sprint(schemaVersion))
		if err != nil {
			return fmt.Errorf("cachedb: stamp schema_version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("cachedb: read schema_version: %w", err)
	default:
		if versionStr != fmt.Sprint(schemaVersion) {
			return fmt.Errorf("cachedb: schema_version mismatch: db has %s, binary wants %d (no migration implemented)", versionStr, schemaVersion)
		}
	}

	return nil
}
