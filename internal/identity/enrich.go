// Package identity implements best-effort identity enrichment: turning
// a bare user ID into a human-readable label using whatever the cache
// currently has, without ever failing.
package identity

import "github.com/chatcache/chatcache/internal/cachedb"

// Enricher resolves user IDs to display labels.
type Enricher struct {
	users *cachedb.UserRepo
}

// New builds an Enricher backed by users.
func New(users *cachedb.UserRepo) *Enricher {
	return &Enricher{users: users}
}

// Label returns display_name if non-empty, else real_name, else name,
// else userID itself. A cache miss or lookup error falls through to the
// id-itself case rather than propagating an error — this helper never
// fails.
func (e *Enricher) Label(userID string) string {
	u, err := e.users.Get(userID)
	if err != nil || u == nil {
		return userID
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.RealName != "" {
		return u.RealName
	}
	if u.Name != "" {
		return u.Name
	}
	return userID
}
