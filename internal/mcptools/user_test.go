package mcptools_test

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatcache/chatcache/internal/cachedb"
	"github.com/chatcache/chatcache/internal/mcptools"
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

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustNotError(t *testing.T, r *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
}

func mustBeToolError(t *testing.T, r *mcp.CallToolResult, err error, wantSubstr string) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if !r.IsError {
		t.Fatalf("expected tool error containing %q, got success: %s", wantSubstr, resultText(r))
	}
	if wantSubstr != "" && !strings.Contains(resultText(r), wantSubstr) {
		t.Errorf("error text %q does not contain %q", resultText(r), wantSubstr)
	}
}

func TestUserGetTool_Success(t *testing.T) {
	s := newTestStore(t)
	if err := s.Users.Save([]cachedb.User{
		{ID: "U1", Doc: []byte(`{"id":"U1","name":"alice","display_name":"Ally","real_name":"Alice Smith","email":"a@example.com"}`), UpdatedAt: 1},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tool := mcptools.NewUserGetTool(s.Users)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "U1"}))
	mustNotError(t, r, err)

	text := resultText(r)
	if !strings.Contains(text, "Ally") || !strings.Contains(text, "a@example.com") {
		t.Errorf("unexpected text: %s", text)
	}
}

func TestUserGetTool_NotFound(t *testing.T) {
	s := newTestStore(t)
	tool := mcptools.NewUserGetTool(s.Users)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "U-missing"}))
	mustBeToolError(t, r, err, "")
}

func TestUserGetTool_MissingID(t *testing.T) {
	s := newTestStore(t)
	tool := mcptools.NewUserGetTool(s.Users)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "id")
}

func TestUserSearchTool_FindsResults(t *testing.T) {
	s := newTestStore(t)
	if err := s.Users.Save([]cachedb.User{
		{ID: "U1", Doc: []byte(`{"id":"U1","name":"alice"}`), Name: "alice", UpdatedAt: 1},
		{ID: "U2", Doc: []byte(`{"id":"U2","name":"bob"}`), Name: "bob", UpdatedAt: 1},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tool := mcptools.NewUserSearchTool(s.Users)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "alice"}))
	mustNotError(t, r, err)

	text := resultText(r)
	if !strings.Contains(text, "U1") {
		t.Errorf("expected U1 in results, got: %s", text)
	}
}

func TestUserSearchTool_NoResults(t *testing.T) {
	s := newTestStore(t)
	tool := mcptools.NewUserSearchTool(s.Users)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "nobody"}))
	mustNotError(t, r, err)

	if !strings.Contains(resultText(r), "No users found") {
		t.Errorf("expected no-results message, got: %s", resultText(r))
	}
}

func TestUserSearchTool_MissingQuery(t *testing.T) {
	s := newTestStore(t)
	tool := mcptools.NewUserSearchTool(s.Users)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "query")
}
