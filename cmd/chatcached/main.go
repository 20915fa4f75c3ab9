// chatcached: workspace cache engine MCP server.
//
// Usage:
//
//	chatcached serve    # Start MCP server (stdio transport)
//	chatcached refresh  # Force a synchronous full refresh, then exit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/chatcache/chatcache/internal/config"
	chatcachesrv "github.com/chatcache/chatcache/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "refresh":
		if err := runRefresh(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("chatcached v%s\n", chatcachesrv.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, cleanup, err := chatcachesrv.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	_ = ctx // stdio server manages its own request lifecycle

	return mcpserver.ServeStdio(s)
}

func runRefresh() error {
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := chatcachesrv.RefreshOnce(cfg); err != nil {
		return fmt.Errorf("refreshing cache: %w", err)
	}
	fmt.Println("Refresh complete.")
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `chatcached v%s — workspace cache engine MCP server

Usage:
  chatcached serve    Start the MCP server (stdio transport)
  chatcached refresh  Force a synchronous full refresh, then exit

Configuration:
  Set CHATCACHE_CONFIG_FILE to a YAML file (see internal/config), and
  CHATCACHE_BOT_TOKEN / CHATCACHE_USER_TOKEN in the environment.

  {
    "mcpServers": {
      "chatcache": {
        "command": "chatcached",
        "args": ["serve"]
      }
    }
  }
`, chatcachesrv.Version)
}
