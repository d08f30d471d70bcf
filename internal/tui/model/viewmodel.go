package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/chatapp"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/tui/ui"
)

// EventLogSize bounds the in-memory event log.
const EventLogSize = 200

// Backend is the daemon surface the TUI needs. *api.Client satisfies it.
type Backend interface {
	Status(ctx context.Context) (api.StatusInfo, error)
	CollectContext(ctx context.Context, req api.CollectRequest) (site.Context, error)
	RunAction(ctx context.Context, action string, args map[string]any) (site.Result, error)
	QueueMessage(ctx context.Context, req api.QueueRequest) (api.QueueResponse, error)
	ListOutbox(ctx context.Context, limit int) ([]api.OutboxItem, error)
	SearchMessages(ctx context.Context, req api.SearchRequest) ([]api.SearchHit, error)
}

// ViewModel caches daemon state for the views and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	backend Backend
	status  api.StatusInfo
	page    site.Context
	details chatapp.Details
	outbox  []api.OutboxItem
	events  []api.EventEnvelope
	Flash   *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a view model backed by the daemon client.
func NewViewModel(b Backend) *ViewModel {
	return &ViewModel{
		backend:   b,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.backend.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadContext collects the page and decodes the chat details when the chat
// handler is active.
func (vm *ViewModel) LoadContext(ctx context.Context, messageLimit int) error {
	pc, err := vm.backend.CollectContext(ctx, api.CollectRequest{MessageLimit: messageLimit})
	if err != nil {
		return err
	}
	var d chatapp.Details
	if pc.Site == chatapp.Name && pc.Details != nil {
		if err := remarshal(pc.Details, &d); err != nil {
			return fmt.Errorf("decode chat details: %w", err)
		}
	}
	vm.mu.Lock()
	vm.page = pc
	vm.details = d
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadOutbox fetches the most recent outbox entries.
func (vm *ViewModel) LoadOutbox(ctx context.Context, limit int) error {
	items, err := vm.backend.ListOutbox(ctx, limit)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.outbox = items
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// OpenChat opens the inbox row with the given index.
func (vm *ViewModel) OpenChat(ctx context.Context, index int) (chatapp.OpenResult, error) {
	return runAction[chatapp.OpenResult](ctx, vm.backend, "openChat", map[string]any{"chatIndex": index})
}

// OpenChatByQuery opens the best inbox match for query.
func (vm *ViewModel) OpenChatByQuery(ctx context.Context, query string) (chatapp.OpenResult, error) {
	return runAction[chatapp.OpenResult](ctx, vm.backend, "openChat", map[string]any{"query": query})
}

// OpenChannel opens the chat an archived channel id points at.
func (vm *ViewModel) OpenChannel(ctx context.Context, channelID string) (chatapp.OpenResult, error) {
	args, err := openTarget(channelID)
	if err != nil {
		return chatapp.OpenResult{}, err
	}
	return runAction[chatapp.OpenResult](ctx, vm.backend, "openChat", args)
}

// openTarget turns a channel id back into openChat arguments. Group ids
// carry no phone, so they fall back to their own user part as a query.
func openTarget(channelID string) (map[string]any, error) {
	kind, rest, ok := strings.Cut(channelID, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("unrecognized channel id %q", channelID)
	}
	switch kind {
	case "phone":
		return map[string]any{"phone": rest}, nil
	case "jid":
		if jid, ok := normalize.ParseChannelToken(rest); ok && !normalize.IsGroupJID(jid) {
			return map[string]any{"phone": "+" + jid.User}, nil
		}
		user, _, _ := strings.Cut(rest, "@")
		return map[string]any{"query": user}, nil
	case "title":
		return map[string]any{"query": rest}, nil
	}
	return nil, fmt.Errorf("unrecognized channel id %q", channelID)
}

// ArchiveChat archives the inbox row with the given index.
func (vm *ViewModel) ArchiveChat(ctx context.Context, index int) (chatapp.ArchiveReport, error) {
	return runAction[chatapp.ArchiveReport](ctx, vm.backend, "archiveChats", map[string]any{"chatIndex": index})
}

// Queue puts text on the outbox for the open chat. The chat's phone, when
// known, pins the recipient.
func (vm *ViewModel) Queue(ctx context.Context, text string) (api.QueueResponse, error) {
	chat := vm.CurrentChat()
	if chat == nil {
		return api.QueueResponse{}, fmt.Errorf("no chat is open")
	}
	req := api.QueueRequest{
		ClientMsgID:   uuid.NewString(),
		Chat:          chat.Title,
		ExpectedPhone: chat.Phone,
		Text:          text,
	}
	if chat.Phone != "" {
		req.Chat = chat.Phone
	}
	resp, err := vm.backend.QueueMessage(ctx, req)
	if err != nil {
		return api.QueueResponse{}, err
	}
	vm.Flash.Info("Queued " + shortID(resp.ClientMsgID))
	vm.signalRefresh()
	return resp, nil
}

// Search runs a full-text query over the archive.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]api.SearchHit, error) {
	return vm.backend.SearchMessages(ctx, api.SearchRequest{Query: query, Limit: 50})
}

// AddEvent appends a streamed event, dropping the oldest past EventLogSize.
func (vm *ViewModel) AddEvent(env api.EventEnvelope) {
	vm.mu.Lock()
	vm.events = append(vm.events, env)
	if over := len(vm.events) - EventLogSize; over > 0 {
		vm.events = append([]api.EventEnvelope(nil), vm.events[over:]...)
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// GetStatus returns a snapshot of the daemon status.
func (vm *ViewModel) GetStatus() api.StatusInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// GetPage returns the last collected page context.
func (vm *ViewModel) GetPage() site.Context {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.page
}

// GetInbox returns the last scraped chat list.
func (vm *ViewModel) GetInbox() []chatapp.InboxEntry {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.details.Inbox
}

// GetMessages returns the visible messages of the open chat.
func (vm *ViewModel) GetMessages() []chatapp.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.details.Messages
}

// CurrentChat returns the open chat, or nil.
func (vm *ViewModel) CurrentChat() *chatapp.CurrentChat {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.details.CurrentChat
}

// GetDetails returns the decoded chat details.
func (vm *ViewModel) GetDetails() chatapp.Details {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.details
}

// GetOutbox returns the last fetched outbox entries.
func (vm *ViewModel) GetOutbox() []api.OutboxItem {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.outbox
}

// GetEvents returns a copy of the event log, oldest first.
func (vm *ViewModel) GetEvents() []api.EventEnvelope {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make([]api.EventEnvelope, len(vm.events))
	copy(out, vm.events)
	return out
}

// ActionError is a failed action as reported by the daemon.
type ActionError struct {
	Action  string
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed: %s", e.Action, e.Code)
	}
	return fmt.Sprintf("%s failed: %s: %s", e.Action, e.Code, e.Message)
}

// ReasonCode returns the daemon's failure code, which picks the flash level.
func (e *ActionError) ReasonCode() string {
	return e.Code
}

func runAction[T any](ctx context.Context, b Backend, action string, args map[string]any) (T, error) {
	var out T
	res, err := b.RunAction(ctx, action, args)
	if err != nil {
		return out, err
	}
	if !res.OK {
		ae := &ActionError{Action: action, Code: res.Error}
		if m, ok := res.Result.(map[string]any); ok {
			ae.Message, _ = m["message"].(string)
		}
		return out, ae
	}
	if err := remarshal(res.Result, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", action, err)
	}
	return out, nil
}

// remarshal converts the loosely typed values carried over the wire into dst.
func remarshal(v any, dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
