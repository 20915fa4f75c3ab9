package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatcache/chatcache/internal/cachedb"
)

// ChannelSearchTool handles the channel_search MCP tool.
type ChannelSearchTool struct {
	channels *cachedb.ChannelRepo
}

// NewChannelSearchTool creates a ChannelSearchTool.
func NewChannelSearchTool(channels *cachedb.ChannelRepo) *ChannelSearchTool {
	return &ChannelSearchTool{channels: channels}
}

// Definition returns the MCP tool definition for channel_search.
func (t *ChannelSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("channel_search",
		mcp.WithDescription("Search cached workspace channels by name."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	)
}

// Handle processes the channel_search tool call.
func (t *ChannelSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := stringArg(req, "query")
	if !ok {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	limit := intArg(req, "limit", 20)

	results, err := t.channels.Search(query, limit)
	if err != nil {
		return errorResult(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No channels found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d channels:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] #%s (%s)%s\n", i+1, r.Entity.Name, r.Entity.ID, visibilitySuffix(r.Entity))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func visibilitySuffix(c cachedb.Channel) string {
	switch {
	case c.IsIM:
		return " [dm]"
	case c.IsMPIM:
		return " [group dm]"
	case c.IsPrivate:
		return " [private]"
	default:
		return ""
	}
}
