package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatcache/chatcache/internal/chatapi"
	"github.com/chatcache/chatcache/internal/identity"
)

// MessageSendTool handles the message_send MCP tool.
type MessageSendTool struct {
	api *chatapi.Client
}

// NewMessageSendTool creates a MessageSendTool.
func NewMessageSendTool(api *chatapi.Client) *MessageSendTool {
	return &MessageSendTool{api: api}
}

// Definition returns the MCP tool definition for message_send.
func (t *MessageSendTool) Definition() mcp.Tool {
	return mcp.NewTool("message_send",
		mcp.WithDescription("Send a message to a workspace channel."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
	)
}

// Handle processes the message_send tool call.
func (t *MessageSendTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, ok := stringArg(req, "channel_id")
	if !ok {
		return mcp.NewToolResultError("'channel_id' is required"), nil
	}
	text, ok := stringArg(req, "text")
	if !ok {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	if err := t.api.SendMessage(ctx, channelID, text); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText("message sent"), nil
}

// MessageHistoryTool handles the message_history MCP tool.
type MessageHistoryTool struct {
	api      *chatapi.Client
	enricher *identity.Enricher
}

// NewMessageHistoryTool creates a MessageHistoryTool.
func NewMessageHistoryTool(api *chatapi.Client, enricher *identity.Enricher) *MessageHistoryTool {
	return &MessageHistoryTool{api: api, enricher: enricher}
}

// Definition returns the MCP tool definition for message_history.
func (t *MessageHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("message_history",
		mcp.WithDescription("Read recent messages from a workspace channel, enriched with sender labels."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id")),
		mcp.WithNumber("limit", mcp.Description("Max messages (default 20)")),
	)
}

// Handle processes the message_history tool call.
func (t *MessageHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, ok := stringArg(req, "channel_id")
	if !ok {
		return mcp.NewToolResultError("'channel_id' is required"), nil
	}
	limit := intArg(req, "limit", 20)

	msgs, err := t.api.ReadHistory(ctx, channelID, chatapi.HistoryOptions{Limit: limit})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(renderMessages(msgs, t.enricher)), nil
}

// ThreadReadTool handles the thread_read MCP tool.
type ThreadReadTool struct {
	api      *chatapi.Client
	enricher *identity.Enricher
}

// NewThreadReadTool creates a ThreadReadTool.
func NewThreadReadTool(api *chatapi.Client, enricher *identity.Enricher) *ThreadReadTool {
	return &ThreadReadTool{api: api, enricher: enricher}
}

// Definition returns the MCP tool definition for thread_read.
func (t *ThreadReadTool) Definition() mcp.Tool {
	return mcp.NewTool("thread_read",
		mcp.WithDescription("Read the replies under a thread, enriched with sender labels."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel id")),
		mcp.WithString("thread_ts", mcp.Required(), mcp.Description("Parent message timestamp")),
		mcp.WithNumber("limit", mcp.Description("Max messages (default 20)")),
	)
}

// Handle processes the thread_read tool call.
func (t *ThreadReadTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, ok := stringArg(req, "channel_id")
	if !ok {
		return mcp.NewToolResultError("'channel_id' is required"), nil
	}
	threadTS, ok := stringArg(req, "thread_ts")
	if !ok {
		return mcp.NewToolResultError("'thread_ts' is required"), nil
	}
	limit := intArg(req, "limit", 20)

	msgs, err := t.api.ReadThread(ctx, channelID, threadTS, chatapi.HistoryOptions{Limit: limit})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(renderMessages(msgs, t.enricher)), nil
}

func renderMessages(msgs []chatapi.Message, enricher *identity.Enricher) string {
	if len(msgs) == 0 {
		return "No messages found."
	}

	var b strings.Builder
	for _, m := range msgs {
		label := m.UserID
		if enricher != nil {
			label = enricher.Label(m.UserID)
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.TS, label, m.Text)
	}
	return b.String()
}
