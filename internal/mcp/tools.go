package mcp

import "github.com/mark3labs/mcp-go/mcp"

var collectContextToolDef = mcp.NewTool("wpp_collect_context",
	mcp.WithDescription("Collect what the WhatsApp Web tab currently shows: page status, login code, open chat, visible messages with sync state, and the inbox."),
	mcp.WithNumber("message_limit", mcp.Description("Maximum number of trailing messages to return (default 80).")),
)

var runActionToolDef = mcp.NewTool("wpp_run_action",
	mcp.WithDescription("Run any page action by name, e.g. getMyNumber, getCurrentChat, getAutomationPack, getSyncStatus, getLoginCode."),
	mcp.WithString("action", mcp.Required(), mcp.Description("Action name.")),
	mcp.WithObject("args", mcp.Description("Action arguments as a JSON object.")),
)

var sendMessageToolDef = mcp.NewTool("wpp_send_message",
	mcp.WithDescription("Send a text message. With chat set, the chat is opened first; without it, the message goes to the chat already open. Set queue to deliver later through the outbox."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Message text.")),
	mcp.WithString("chat", mcp.Description("Chat title, name fragment or phone number to open before sending.")),
	mcp.WithString("expected_phone", mcp.Description("Refuse to send unless the open chat belongs to this phone number.")),
	mcp.WithBoolean("queue", mcp.Description("Queue the message in the outbox instead of sending now. Requires chat.")),
)

var openChatToolDef = mcp.NewTool("wpp_open_chat",
	mcp.WithDescription("Open a chat from the inbox by name, phone number or list index."),
	mcp.WithString("query", mcp.Description("Chat title or name fragment.")),
	mcp.WithString("phone", mcp.Description("Phone number of the contact.")),
	mcp.WithNumber("chat_index", mcp.Description("Zero-based position in the visible chat list.")),
	mcp.WithString("prefer", mcp.Description("Bias ranking towards a kind of chat."), mcp.Enum("all", "groups", "contacts")),
)

var readMessagesToolDef = mcp.NewTool("wpp_read_messages",
	mcp.WithDescription("Read the trailing messages of the open chat, with ids and sync state."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of messages (default 80).")),
)

var getInboxToolDef = mcp.NewTool("wpp_get_inbox",
	mcp.WithDescription("List the visible chat list, optionally filtered and ranked by a query."),
	mcp.WithString("scope", mcp.Description("Which chats to list."), mcp.Enum("all", "groups", "contacts")),
	mcp.WithString("query", mcp.Description("Filter and rank by title.")),
	mcp.WithString("phone", mcp.Description("Filter and rank by phone number.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of chats.")),
)

var archiveChatsToolDef = mcp.NewTool("wpp_archive_chats",
	mcp.WithDescription("Archive chats from the visible list. Use dry_run first to see what would be archived."),
	mcp.WithString("scope", mcp.Description("Which chats to consider."), mcp.Enum("all", "groups", "contacts")),
	mcp.WithString("query", mcp.Description("Only chats matching this title.")),
	mcp.WithString("phone", mcp.Description("Only chats matching this phone number.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of chats to archive.")),
	mcp.WithNumber("chat_index", mcp.Description("Archive only the chat at this list position.")),
	mcp.WithBoolean("dry_run", mcp.Description("Report matches without archiving.")),
)

var searchMessagesToolDef = mcp.NewTool("wpp_search_messages",
	mcp.WithDescription("Full-text search over messages archived from earlier observations."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search terms (SQLite FTS syntax).")),
	mcp.WithString("channel_id", mcp.Description("Restrict to one chat.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 50).")),
)
