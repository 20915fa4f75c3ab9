package identity_test

import (
	"testing"

	"github.com/chatcache/chatcache/internal/cachedb"
	"github.com/chatcache/chatcache/internal/identity"
)

func newTestStore(t *testing.T) *cachedb.Store {
	t.Helper()
	s, err := cachedb.Open(cachedb.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("cachedb.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLabel_PrefersDisplayName(t *testing.T) {
	s := newTestStore(t)
	if err := s.Users.Save([]cachedb.User{
		{ID: "U1", Doc: []byte(`{"id":"U1","name":"alice","display_name":"Ally","real_name":"Alice Smith"}`), UpdatedAt: 1},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	e := identity.New(s.Users)
	if got := e.Label("U1"); got != "Ally" {
		t.Fatalf("Label = %q, want Ally", got)
	}
}

func TestLabel_FallsBackToRealNameThenName(t *testing.T) {
	s := newTestStore(t)
	if err := s.Users.Save([]cachedb.User{
		{ID: "U1", Doc: []byte(`{"id":"U1","name":"alice","display_name":"","real_name":"Alice Smith"}`), UpdatedAt: 1},
		{ID: "U2", Doc: []byte(`{"id":"U2","name":"bob","display_name":"","real_name":""}`), UpdatedAt: 1},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	e := identity.New(s.Users)
	if got := e.Label("U1"); got != "Alice Smith" {
		t.Fatalf("Label(U1) = %q, want Alice Smith", got)
	}
	if got := e.Label("U2"); got != "bob" {
		t.Fatalf("Label(U2) = %q, want bob", got)
	}
}

func TestLabel_NeverFailsOnMiss(t *testing.T) {
	s := newTestStore(t)
	e := identity.New(s.Users)
	if got := e.Label("U-unknown"); got != "U-unknown" {
		t.Fatalf("Label on a cache miss = %q, want the id itself", got)
	}
}
