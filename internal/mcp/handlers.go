package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/site"
)

// Backend is the daemon surface the tools drive. *api.Client satisfies it.
type Backend interface {
	CollectContext(ctx context.Context, req api.CollectRequest) (site.Context, error)
	RunAction(ctx context.Context, action string, args map[string]any) (site.Result, error)
	QueueMessage(ctx context.Context, req api.QueueRequest) (api.QueueResponse, error)
	SearchMessages(ctx context.Context, req api.SearchRequest) ([]api.SearchHit, error)
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	backend Backend
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(backend Backend) *Handlers {
	return &Handlers{backend: backend}
}

// CollectRequest represents the arguments for wpp_collect_context.
type CollectRequest struct {
	MessageLimit int `json:"message_limit,omitempty"`
}

// ActionRequest represents the arguments for wpp_run_action.
type ActionRequest struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

// SendRequest represents the arguments for wpp_send_message.
type SendRequest struct {
	Text          string `json:"text"`
	Chat          string `json:"chat,omitempty"`
	ExpectedPhone string `json:"expected_phone,omitempty"`
	Queue         bool   `json:"queue,omitempty"`
}

// OpenRequest represents the arguments for wpp_open_chat.
type OpenRequest struct {
	Query     string `json:"query,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ChatIndex *int   `json:"chat_index,omitempty"`
	Prefer    string `json:"prefer,omitempty"`
}

// ReadRequest represents the arguments for wpp_read_messages.
type ReadRequest struct {
	Limit int `json:"limit,omitempty"`
}

// InboxRequest represents the arguments for wpp_get_inbox.
type InboxRequest struct {
	Scope string `json:"scope,omitempty"`
	Query string `json:"query,omitempty"`
	Phone string `json:"phone,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ArchiveRequest represents the arguments for wpp_archive_chats.
type ArchiveRequest struct {
	Scope     string `json:"scope,omitempty"`
	Query     string `json:"query,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	ChatIndex *int   `json:"chat_index,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// SearchRequest represents the arguments for wpp_search_messages.
type SearchRequest struct {
	Query     string `json:"query"`
	ChannelID string `json:"channel_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// HandleCollectContext handles wpp_collect_context.
func (h *Handlers) HandleCollectContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[CollectRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	pc, err := h.backend.CollectContext(ctx, api.CollectRequest{MessageLimit: in.MessageLimit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(pc)
}

// HandleRunAction handles wpp_run_action.
func (h *Handlers) HandleRunAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[ActionRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	if strings.TrimSpace(in.Action) == "" {
		return invalidResult("action is required"), nil
	}
	return h.run(ctx, in.Action, in.Args)
}

// HandleSendMessage handles wpp_send_message.
func (h *Handlers) HandleSendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[SendRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	if strings.TrimSpace(in.Text) == "" {
		return invalidResult("text is required"), nil
	}

	if in.Queue {
		if strings.TrimSpace(in.Chat) == "" {
			return invalidResult("chat is required to queue a message"), nil
		}
		resp, err := h.backend.QueueMessage(ctx, api.QueueRequest{Chat: in.Chat, ExpectedPhone: in.ExpectedPhone, Text: in.Text})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(resp)
	}

	args := map[string]any{"text": in.Text}
	if in.ExpectedPhone != "" {
		args["expectedPhone"] = in.ExpectedPhone
	}
	if strings.TrimSpace(in.Chat) == "" {
		return h.run(ctx, "sendMessage", args)
	}
	args["query"] = in.Chat
	return h.run(ctx, "openChatAndSendMessage", args)
}

// HandleOpenChat handles wpp_open_chat.
func (h *Handlers) HandleOpenChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[OpenRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	args := map[string]any{}
	setString(args, "query", in.Query)
	setString(args, "phone", in.Phone)
	setString(args, "prefer", in.Prefer)
	if in.ChatIndex != nil {
		args["chatIndex"] = *in.ChatIndex
	}
	return h.run(ctx, "openChat", args)
}

// HandleReadMessages handles wpp_read_messages.
func (h *Handlers) HandleReadMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[ReadRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	args := map[string]any{}
	if in.Limit > 0 {
		args["limit"] = in.Limit
	}
	return h.run(ctx, "readMessages", args)
}

// HandleGetInbox handles wpp_get_inbox.
func (h *Handlers) HandleGetInbox(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[InboxRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	args := map[string]any{}
	setString(args, "scope", in.Scope)
	setString(args, "query", in.Query)
	setString(args, "phone", in.Phone)
	if in.Limit > 0 {
		args["limit"] = in.Limit
	}
	return h.run(ctx, "getInbox", args)
}

// HandleArchiveChats handles wpp_archive_chats.
func (h *Handlers) HandleArchiveChats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[ArchiveRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	args := map[string]any{"dryRun": in.DryRun}
	setString(args, "scope", in.Scope)
	setString(args, "query", in.Query)
	setString(args, "phone", in.Phone)
	if in.Limit > 0 {
		args["limit"] = in.Limit
	}
	if in.ChatIndex != nil {
		args["chatIndex"] = *in.ChatIndex
	}
	return h.run(ctx, "archiveChats", args)
}

// HandleSearchMessages handles wpp_search_messages.
func (h *Handlers) HandleSearchMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[SearchRequest](req)
	if err != nil {
		return invalidResult(err.Error()), nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return invalidResult("query is required"), nil
	}
	hits, err := h.backend.SearchMessages(ctx, api.SearchRequest{Query: in.Query, ChannelID: in.ChannelID, Limit: in.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"results": hits, "count": len(hits)})
}

func (h *Handlers) run(ctx context.Context, action string, args map[string]any) (*mcp.CallToolResult, error) {
	res, err := h.backend.RunAction(ctx, action, args)
	if err != nil {
		return errorResult(err), nil
	}
	if !res.OK {
		return actionFailure(res), nil
	}
	return successResult(res.Result)
}

func setString(args map[string]any, key, value string) {
	if strings.TrimSpace(value) != "" {
		args[key] = value
	}
}

// Result helpers

// actionFailure reports a failed page action with its reason and details.
func actionFailure(res site.Result) *mcp.CallToolResult {
	return jsonError(map[string]any{
		"error": map[string]any{
			"code":    res.Error,
			"details": res.Result,
		},
	})
}

func invalidResult(msg string) *mcp.CallToolResult {
	return jsonError(map[string]any{
		"error": map[string]any{
			"code":    site.ErrInvalidRequest,
			"message": msg,
		},
	})
}

// errorResult reports a failure to reach the daemon.
func errorResult(err error) *mcp.CallToolResult {
	msg := "daemon request failed"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "request cancelled"
	}
	return jsonError(map[string]any{
		"error": map[string]any{
			"code":    "daemon_unavailable",
			"message": msg,
			"cause":   err.Error(),
		},
	})
}

func jsonError(payload map[string]any) *mcp.CallToolResult {
	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
