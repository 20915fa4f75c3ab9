package mcptools_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chatcache/chatcache/internal/cachedb"
	"github.com/chatcache/chatcache/internal/chatapi"
	"github.com/chatcache/chatcache/internal/identity"
	"github.com/chatcache/chatcache/internal/mcptools"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *chatapi.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return chatapi.New(chatapi.Config{
		BaseURL: srv.URL, BotToken: "t", RequestsPerMinute: 6000, BurstCapacity: 100,
		Timeout: 5 * time.Second, MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond,
	})
}

func TestMessageSendTool_Success(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	tool := mcptools.NewMessageSendTool(api)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"channel_id": "C1",
		"text":       "hello",
	}))
	mustNotError(t, r, err)
}

func TestMessageSendTool_MissingArgs(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {})

	tool := mcptools.NewMessageSendTool(api)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"channel_id": "C1"}))
	mustBeToolError(t, r, err, "text")
}

func TestMessageHistoryTool_EnrichesSender(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": []map[string]any{
				{"ts": "1.1", "user": "U1", "text": "hi there"},
			},
		})
	})

	s := newTestStore(t)
	if err := s.Users.Save([]cachedb.User{
		{ID: "U1", Doc: []byte(`{"id":"U1","display_name":"Ally"}`), UpdatedAt: 1},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	enricher := identity.New(s.Users)

	tool := mcptools.NewMessageHistoryTool(api, enricher)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"channel_id": "C1"}))
	mustNotError(t, r, err)

	text := resultText(r)
	if !strings.Contains(text, "Ally") || !strings.Contains(text, "hi there") {
		t.Errorf("expected enriched label and text, got: %s", text)
	}
}

func TestMessageHistoryTool_MissingChannelID(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {})

	tool := mcptools.NewMessageHistoryTool(api, nil)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	mustBeToolError(t, r, err, "channel_id")
}

func TestThreadReadTool_Success(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": []map[string]any{
				{"ts": "1.1", "user": "U1", "text": "parent"},
				{"ts": "1.2", "user": "U2", "text": "reply"},
			},
		})
	})

	tool := mcptools.NewThreadReadTool(api, nil)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"channel_id": "C1",
		"thread_ts":  "1.1",
	}))
	mustNotError(t, r, err)

	text := resultText(r)
	if !strings.Contains(text, "reply") {
		t.Errorf("expected thread replies, got: %s", text)
	}
}

func TestThreadReadTool_MissingThreadTS(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {})

	tool := mcptools.NewThreadReadTool(api, nil)
	r, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"channel_id": "C1"}))
	mustBeToolError(t, r, err, "thread_ts")
}
