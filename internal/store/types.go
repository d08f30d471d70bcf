package store

// Chat is an inbox row as last observed in the chat list.
type Chat struct {
	ChannelID   string
	Title       string
	Phone       string
	Kind        string // contact, group, unknown
	Preview     string
	UnreadCount int
	ListIndex   int
	LastSeenAt  int64
}

// Message is an archived observation of one conversation turn.
type Message struct {
	ID             int64
	ChannelID      string
	MsgID          string
	Role           string // me, contact
	Kind           string
	Body           string
	TimestampLabel string
	Enriched       string // JSON object, empty when the message carried no extras
	ObservedAt     int64
}

// OutboxEntry is a message queued for delivery through the browser tab.
type OutboxEntry struct {
	ID            int64
	ClientMsgID   string
	ChatQuery     string
	ExpectedPhone string
	Body          string
	Status        string // queued, sending, sent, skipped, failed
	ErrorMessage  string
	Attempts      int
	CreatedAt     int64
	UpdatedAt     int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
