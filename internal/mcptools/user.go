package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatcache/chatcache/internal/cachedb"
)

// UserGetTool handles the user_get MCP tool.
type UserGetTool struct {
	users *cachedb.UserRepo
}

// NewUserGetTool creates a UserGetTool.
func NewUserGetTool(users *cachedb.UserRepo) *UserGetTool {
	return &UserGetTool{users: users}
}

// Definition returns the MCP tool definition for user_get.
func (t *UserGetTool) Definition() mcp.Tool {
	return mcp.NewTool("user_get",
		mcp.WithDescription("Look up a cached workspace user by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("User id")),
	)
}

// Handle processes the user_get tool call.
func (t *UserGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := stringArg(req, "id")
	if !ok {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	u, err := t.users.Get(id)
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s (%s) <%s>%s", u.DisplayName, u.Name, u.Email, botSuffix(u.IsBot))), nil
}

func botSuffix(isBot bool) string {
	if isBot {
		return " [bot]"
	}
	return ""
}

// UserSearchTool handles the user_search MCP tool.
type UserSearchTool struct {
	users *cachedb.UserRepo
}

// NewUserSearchTool creates a UserSearchTool.
func NewUserSearchTool(users *cachedb.UserRepo) *UserSearchTool {
	return &UserSearchTool{users: users}
}

// Definition returns the MCP tool definition for user_search.
func (t *UserSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("user_search",
		mcp.WithDescription("Search cached workspace users by name, display name, real name, or email."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	)
}

// Handle processes the user_search tool call.
func (t *UserSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := stringArg(req, "query")
	if !ok {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	limit := intArg(req, "limit", 20)

	results, err := t.users.Search(query, limit)
	if err != nil {
		return errorResult(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No users found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d users:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s — %s (%s)\n", i+1, r.Entity.ID, r.Entity.DisplayName, r.Entity.Name)
	}
	return mcp.NewToolResultText(b.String()), nil
}
