// Package server wires all cache-engine components and the MCP tool
// surface into one running server. This is the composition root: it
// creates concrete implementations and injects them into the tools that
// depend on them. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/chatcache/chatcache/internal/cachedb"
	"github.com/chatcache/chatcache/internal/chatapi"
	"github.com/chatcache/chatcache/internal/config"
	"github.com/chatcache/chatcache/internal/identity"
	"github.com/chatcache/chatcache/internal/lockmgr"
	"github.com/chatcache/chatcache/internal/mcptools"
	"github.com/chatcache/chatcache/internal/refresh"
)

// Version is set at build time via ldflags.
var Version = "dev"

const lockTTL = 30 * time.Second

// New creates and configures the MCP server with every chatcache tool
// registered, plus the background refresh orchestrator. The returned
// cleanup function stops the orchestrator and closes the cache's
// database connection; it is always non-nil and safe to call even if
// setup failed partway through.
func New(cfg *config.Config) (*mcpserver.MCPServer, func(), error) {
	logger := newLogger(cfg.LogLevel)

	store, api, _, orchestrator, cleanup, err := build(cfg, logger)
	if err != nil {
		return nil, noop, err
	}

	enricher := identity.New(store.Users)

	s := mcpserver.NewMCPServer(
		"chatcache",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions(cfg.MCPInstructions)),
	)

	registerTools(s, store, api, enricher)

	orchestrator.Start(context.Background())
	prevCleanup := cleanup
	cleanup = func() {
		orchestrator.Stop()
		prevCleanup()
	}

	return s, cleanup, nil
}

// RefreshOnce builds the same components as New minus the MCP server and
// background ticker, runs a single synchronous full refresh, and closes
// the store before returning. It's what backs `chatcached refresh`.
func RefreshOnce(cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)

	_, _, _, orchestrator, cleanup, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return orchestrator.Refresh(context.Background(), refresh.ScopeAll)
}

// build wires the cache store, HTTP client, lock manager, and refresh
// orchestrator shared by New and RefreshOnce. It does not start the
// orchestrator's background loop or register any MCP tools.
func build(cfg *config.Config, logger *slog.Logger) (*cachedb.Store, *chatapi.Client, *lockmgr.Manager, *refresh.Orchestrator, func(), error) {
	store, err := cachedb.Open(cachedb.Config{DataDir: cfg.DataPath, MaxOpenConns: cfg.MaxConnections})
	if err != nil {
		return nil, nil, nil, nil, noop, fmt.Errorf("opening cache: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache store close failed", "error", err)
		}
	}

	locks := lockmgr.New(store.DB(), lockTTL)

	api := chatapi.New(chatapi.Config{
		BaseURL:           "https://slack.com/api",
		BotToken:          cfg.BotToken,
		UserToken:         cfg.UserToken,
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstCapacity:     int(cfg.RequestsPerMinute),
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxConnections:    cfg.MaxConnections,
		MaxAttempts:       cfg.MaxAttempts,
		InitialDelay:      time.Duration(cfg.InitialDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		ExponentialBase:   cfg.ExponentialBase,
	})

	orchestrator := refresh.New(store, api, locks, refresh.TTLs{
		UsersHours:    cfg.TTLUsersHours,
		ChannelsHours: cfg.TTLChannelsHours,
		MembersHours:  cfg.TTLMembersHours,
	}, logger)

	return store, api, locks, orchestrator, cleanup, nil
}

func registerTools(s *mcpserver.MCPServer, store *cachedb.Store, api *chatapi.Client, enricher *identity.Enricher) {
	userGet := mcptools.NewUserGetTool(store.Users)
	s.AddTool(userGet.Definition(), userGet.Handle)

	userSearch := mcptools.NewUserSearchTool(store.Users)
	s.AddTool(userSearch.Definition(), userSearch.Handle)

	channelSearch := mcptools.NewChannelSearchTool(store.Channels)
	s.AddTool(channelSearch.Definition(), channelSearch.Handle)

	messageSend := mcptools.NewMessageSendTool(api)
	s.AddTool(messageSend.Definition(), messageSend.Handle)

	messageHistory := mcptools.NewMessageHistoryTool(api, enricher)
	s.AddTool(messageHistory.Definition(), messageHistory.Handle)

	threadRead := mcptools.NewThreadReadTool(api, enricher)
	s.AddTool(threadRead.Definition(), threadRead.Handle)
}

func serverInstructions(path string) string {
	if path == "" {
		return "chatcache serves cached workspace user/channel lookups and forwards messaging operations through a rate-limited client."
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "chatcache serves cached workspace user/channel lookups and forwards messaging operations through a rate-limited client."
	}
	return string(data)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// noop is the default cleanup function used when setup fails before a
// store exists to close.
func noop() {}
