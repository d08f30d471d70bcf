package api

import (
	"github.com/matheus3301/wppilot/internal/store"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
)

// StatusInfo is the GetStatus response.
type StatusInfo struct {
	Session       string `json:"session"`
	Status        string `json:"status"`
	Handler       string `json:"handler"`
	URL           string `json:"url"`
	UptimeMs      int64  `json:"uptimeMs"`
	ChatCount     int64  `json:"chatCount"`
	MessageCount  int64  `json:"messageCount"`
	OutboxPending int    `json:"outboxPending"`
	KnownChats    int    `json:"knownChats"`
	EventsDropped uint64 `json:"eventsDropped,omitempty"`
}

// CollectRequest is the CollectContext request.
type CollectRequest struct {
	TextLimit    int `json:"textLimit,omitempty"`
	MessageLimit int `json:"messageLimit,omitempty"`
}

// ActionRequest is the RunAction request.
type ActionRequest struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

// QueueRequest is the QueueMessage request. ClientMsgID is generated when
// empty.
type QueueRequest struct {
	ClientMsgID   string `json:"clientMsgId,omitempty"`
	Chat          string `json:"chat"`
	ExpectedPhone string `json:"expectedPhone,omitempty"`
	Text          string `json:"text"`
}

// QueueResponse acknowledges a queued message.
type QueueResponse struct {
	ClientMsgID string `json:"clientMsgId"`
	Status      string `json:"status"`
}

// OutboxItem is one outbox entry as listed by ListOutbox.
type OutboxItem struct {
	ClientMsgID   string `json:"clientMsgId"`
	Chat          string `json:"chat"`
	ExpectedPhone string `json:"expectedPhone,omitempty"`
	Text          string `json:"text"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	Attempts      int    `json:"attempts"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// OutboxList is the ListOutbox response.
type OutboxList struct {
	Entries []OutboxItem `json:"entries"`
}

// SearchRequest is the SearchMessages request.
type SearchRequest struct {
	Query     string `json:"query"`
	ChannelID string `json:"channelId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// SearchHit is one archived message matching a search.
type SearchHit struct {
	ChannelID      string `json:"channelId"`
	MessageID      string `json:"messageId"`
	Role           string `json:"role"`
	Kind           string `json:"kind"`
	Body           string `json:"body"`
	TimestampLabel string `json:"timestampLabel,omitempty"`
	ObservedAt     int64  `json:"observedAt"`
	Snippet        string `json:"snippet"`
}

// SearchResponse is the SearchMessages response.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// LedgerView is the ListLedger response.
type LedgerView struct {
	Chats []syncpkg.Entry `json:"chats"`
}

// WatchRequest selects the event namespace to stream. Empty streams all.
type WatchRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// EventEnvelope is one streamed bus event.
type EventEnvelope struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	OccurredAt int64  `json:"occurredAt"`
	Payload    any    `json:"payload,omitempty"`
}

func outboxItem(e store.OutboxEntry) OutboxItem {
	return OutboxItem{
		ClientMsgID:   e.ClientMsgID,
		Chat:          e.ChatQuery,
		ExpectedPhone: e.ExpectedPhone,
		Text:          e.Body,
		Status:        e.Status,
		Error:         e.ErrorMessage,
		Attempts:      e.Attempts,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func searchHit(r store.SearchResult) SearchHit {
	return SearchHit{
		ChannelID:      r.Message.ChannelID,
		MessageID:      r.Message.MsgID,
		Role:           r.Message.Role,
		Kind:           r.Message.Kind,
		Body:           r.Message.Body,
		TimestampLabel: r.Message.TimestampLabel,
		ObservedAt:     r.Message.ObservedAt,
		Snippet:        r.Snippet,
	}
}
