// Package mcptools provides MCP tool handlers over the workspace cache:
// each tool is a struct with its dependency injected via constructor,
// Definition() returns the mcp.Tool schema, Handle() processes the
// request.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatcache/chatcache/internal/chatcacheerr"
)

// intArg extracts an integer argument, returning defaultVal if the key
// is missing or not a number (JSON numbers decode as float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// stringArg extracts a required string argument, or ("", false) if
// missing or empty.
func stringArg(req mcp.CallToolRequest, key string) (string, bool) {
	v := req.GetString(key, "")
	return v, v != ""
}

// errorResult renders a protocol-layer error as an MCP tool error result.
func errorResult(err error) *mcp.CallToolResult {
	proto := chatcacheerr.Project(err)
	return mcp.NewToolResultError(proto.Error())
}
