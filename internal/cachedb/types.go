// Package cachedb implements the workspace cache engine: an embedded
// SQLite store with FTS5-backed search, atomic-swap refresh, and a
// cooperative distributed lock table.
package cachedb

import "time"

// User is the cached, materialized view of a remote workspace user. Doc
// holds the remote JSON document verbatim; Name/DisplayName/RealName/
// Email/IsBot are generated columns SQLite derives from it via
// json_extract, surfaced here for callers that don't want to touch JSON.
type User struct {
	ID          string
	Doc         []byte
	Name        string
	DisplayName string
	RealName    string
	Email       string
	IsBot       bool
	UpdatedAt   int64
}

// Channel is the cached, materialized view of a remote workspace channel.
type Channel struct {
	ID        string
	Doc       []byte
	Name      string
	IsPrivate bool
	IsIM      bool
	IsMPIM    bool
	UpdatedAt int64
}

// Member records that a user belongs to a channel, as of the last
// membership refresh.
type Member struct {
	ChannelID string
	UserID    string
	JoinedAt  int64
}

// SearchResult wraps an entity with the score that ranked it during
// Phase 1, or -1 for rows returned by the Phase 2 FTS fallback (where
// SQLite's own `rank` ordering already applies and a synthetic score
// would be misleading).
type SearchResult[T any] struct {
	Entity T
	Score  int
}

// now is the clock used for sync timestamps and staleness checks; it is a
// variable so the clock source can be replaced.
var now = func() time.Time { return time.Now() }

const schemaVersion = 1
