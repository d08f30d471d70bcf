// Package mcp serves the daemon's page automation as MCP tools over stdio, so
// assistants can read and drive the WhatsApp Web tab.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/matheus3301/wppilot/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"wpp_collect_context": {
		def:     collectContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCollectContext },
	},
	"wpp_run_action": {
		def:     runActionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunAction },
	},
	"wpp_send_message": {
		def:     sendMessageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSendMessage },
	},
	"wpp_open_chat": {
		def:     openChatToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOpenChat },
	},
	"wpp_read_messages": {
		def:     readMessagesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReadMessages },
	},
	"wpp_get_inbox": {
		def:     getInboxToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetInbox },
	},
	"wpp_archive_chats": {
		def:     archiveChatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchiveChats },
	},
	"wpp_search_messages": {
		def:     searchMessagesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchMessages },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the unknown names in names.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the enabled tools registered.
func NewServer(backend Backend, cfg config.MCP, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"wppilot",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(backend)
	for name, entry := range toolRegistry {
		if !cfg.ToolEnabled(name) {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(backend Backend, cfg config.MCP, version string) error {
	return server.ServeStdio(NewServer(backend, cfg, version))
}
