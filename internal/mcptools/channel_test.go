package mcptools_test

import (
	"context"
	"strings"
	"testing"

	"github.com/chatcache/chatcache/internal/cachedb"
	"github.com/chatcache/chatcache/internal/mcptools"
)

func TestChannelSearchTool_FindsResults(t *testing.T) {
	s := newTestStore(t)
	if err := s.Channels.Save([]cachedb.Channel{
		{ID: "C1", Doc: []byte(`{"id":"C1","name":"general"}`), Name: "general", UpdatedAt: 1},
		{ID: "C2", Doc: []byte(`{"id":"C2","name":"random","is_private":true}`), Name: "random", IsPrivate: true, UpdatedAt: 1},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tool := mcptools.NewChannelSearchTool(s.Channels)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "random"}))
	mustNotError(t, r, err)

	text := resultText(r)
	if !strings.Contains(text, "#random") || !strings.Contains(text, "[private]") {
		t.Errorf("expected private random channel in results, got: %s", text)
	}
}

func TestChannelSearchTool_NoResults(t *testing.T) {
	s := newTestStore(t)
	tool := mcptools.NewChannelSearchTool(s.Channels)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "nope"}))
	mustNotError(t, r, err)

	if !strings.Contains(resultText(r), "No channels found") {
		t.Errorf("expected no-results message, got: %s", resultText(r))
	}
}

func TestChannelSearchTool_MissingQuery(t *testing.T) {
	s := newTestStore(t)
	tool := mcptools.NewChannelSearchTool(s.Channels)

	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "query")
}
