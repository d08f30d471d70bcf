package sync

import (
	"encoding/json"
	"errors"
	"slices"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

const (
	// LedgerKey is the checkpoint key holding the serialized ledger.
	LedgerKey = "chat_sync_ledger"
	// LedgerVersion is the record format version written by this package.
	LedgerVersion = 1

	MaxMessageIDs = 180
	MaxChannels   = 120
	MaxMissingIDs = 12
)

// Backend persists the ledger record.
type Backend interface {
	GetCheckpoint(key string) (string, error)
	UpdateCheckpoint(key, value string) error
}

// Entry is the persisted sync state of one channel.
type Entry struct {
	ChannelID     string   `json:"channelId"`
	ChatKey       string   `json:"chatKey"`
	Title         string   `json:"title"`
	Phone         string   `json:"phone"`
	LastMessageID string   `json:"lastMessageId"`
	MessageIDs    []string `json:"messageIds"`
	UpdatedAt     int64    `json:"updatedAt"`
}

// Status reports how the visible messages relate to what was already known.
type Status struct {
	ChannelID            string   `json:"channelId"`
	KnownLastMessageID   string   `json:"knownLastMessageId"`
	LastVisibleMessageID string   `json:"lastVisibleMessageId"`
	IsLastMessageSynced  bool     `json:"isLastMessageSynced"`
	MissingMessageCount  int      `json:"missingMessageCount"`
	MissingMessageIDs    []string `json:"missingMessageIds"`
	KnownMessageCount    int      `json:"knownMessageCount"`
}

type record struct {
	Version   int               `json:"version"`
	UpdatedAt int64             `json:"updatedAt"`
	Chats     []json.RawMessage `json:"chats"`
}

// Ledger tracks, per channel, which message ids were already reconciled.
// Every change is written through to the backend.
type Ledger struct {
	mu      gosync.Mutex
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	loaded  bool
	entries map[string]*Entry
}

// NewLedger creates a ledger over backend. The record is read lazily on first use.
func NewLedger(backend Backend, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// Load (re)reads the persisted record. An absent or unreadable record leaves
// the ledger empty; malformed entries are skipped.
func (l *Ledger) Load() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadLocked()
}

func (l *Ledger) loadLocked() {
	l.loaded = true
	l.entries = make(map[string]*Entry)

	raw, err := l.backend.GetCheckpoint(LedgerKey)
	if errors.Is(err, ErrNoCheckpoint) || raw == "" {
		return
	}
	if err != nil {
		l.logger.Warn("ledger unreadable, starting empty", zap.Error(err))
		return
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		l.logger.Warn("ledger malformed, starting empty", zap.Error(err))
		return
	}
	if rec.Version > LedgerVersion {
		l.logger.Warn("ledger written by a newer version, starting empty", zap.Int("version", rec.Version))
		return
	}

	skipped := 0
	for _, item := range rec.Chats {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil || e.ChannelID == "" {
			skipped++
			continue
		}
		e.MessageIDs = sanitizeIDs(e.MessageIDs)
		if e.LastMessageID == "" && len(e.MessageIDs) > 0 {
			e.LastMessageID = e.MessageIDs[len(e.MessageIDs)-1]
		}
		l.entries[e.ChannelID] = &e
	}
	if skipped > 0 {
		l.logger.Warn("ledger entries skipped", zap.Int("count", skipped))
	}
	l.evictLocked("")
}

// Update merges the visible message ids of a channel into its known set and
// reports the sync status relative to the state before the merge.
func (l *Ledger) Update(channelID, chatKey, title, phone string, visibleIDs []string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		l.loadLocked()
	}

	visible := sanitizeIDs(visibleIDs)
	prev := l.entries[channelID]
	st, merged := computeStatus(channelID, prev, visible)
	prevLast := st.KnownLastMessageID

	if channelID == "" {
		return st
	}

	next := &Entry{
		ChannelID:     channelID,
		ChatKey:       chatKey,
		Title:         title,
		Phone:         phone,
		LastMessageID: st.LastVisibleMessageID,
		MessageIDs:    merged,
	}
	if next.LastMessageID == "" {
		next.LastMessageID = prevLast
	}
	if prev != nil {
		if next.ChatKey == "" {
			next.ChatKey = prev.ChatKey
		}
		if next.Title == "" {
			next.Title = prev.Title
		}
		if next.Phone == "" {
			next.Phone = prev.Phone
		}
		if sameEntry(prev, next) {
			return st
		}
	}

	next.UpdatedAt = l.now().UnixMilli()
	l.entries[channelID] = next
	l.evictLocked(channelID)
	l.persistLocked()
	return st
}

// Peek reports the status Update would return without merging or persisting.
func (l *Ledger) Peek(channelID string, visibleIDs []string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		l.loadLocked()
	}
	st, _ := computeStatus(channelID, l.entries[channelID], sanitizeIDs(visibleIDs))
	return st
}

func computeStatus(channelID string, prev *Entry, visible []string) (Status, []string) {
	var known []string
	prevLast := ""
	if prev != nil {
		known = prev.MessageIDs
		prevLast = prev.LastMessageID
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, id := range known {
		knownSet[id] = struct{}{}
	}

	st := Status{
		ChannelID:          channelID,
		KnownLastMessageID: prevLast,
		MissingMessageIDs:  []string{},
	}
	var missing []string
	for _, id := range visible {
		if _, ok := knownSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(visible) > 0 {
		st.LastVisibleMessageID = visible[len(visible)-1]
		_, st.IsLastMessageSynced = knownSet[st.LastVisibleMessageID]
	}
	st.MissingMessageCount = len(missing)
	if len(missing) > MaxMissingIDs {
		missing = missing[len(missing)-MaxMissingIDs:]
	}
	st.MissingMessageIDs = append(st.MissingMessageIDs, missing...)

	merged := mergeIDs(known, visible)
	st.KnownMessageCount = len(merged)
	return st, merged
}

// Entry returns a copy of the stored entry for channelID.
func (l *Ledger) Entry(channelID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		l.loadLocked()
	}
	e, ok := l.entries[channelID]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(e), true
}

// Entries returns copies of all entries, most recently updated first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		l.loadLocked()
	}
	return l.sortedLocked()
}

func (l *Ledger) sortedLocked() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, copyEntry(e))
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if a.UpdatedAt != b.UpdatedAt {
			if a.UpdatedAt > b.UpdatedAt {
				return -1
			}
			return 1
		}
		if a.ChannelID < b.ChannelID {
			return -1
		}
		if a.ChannelID > b.ChannelID {
			return 1
		}
		return 0
	})
	return out
}

// evictLocked drops the oldest entries over MaxChannels. keep survives even
// when it ties with older entries on UpdatedAt.
func (l *Ledger) evictLocked(keep string) {
	excess := len(l.entries) - MaxChannels
	if excess <= 0 {
		return
	}
	sorted := l.sortedLocked()
	for i := len(sorted) - 1; i >= 0 && excess > 0; i-- {
		if sorted[i].ChannelID == keep {
			continue
		}
		delete(l.entries, sorted[i].ChannelID)
		excess--
	}
}

func (l *Ledger) persistLocked() {
	entries := l.sortedLocked()
	rec := record{
		Version:   LedgerVersion,
		UpdatedAt: l.now().UnixMilli(),
		Chats:     make([]json.RawMessage, 0, len(entries)),
	}
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		rec.Chats = append(rec.Chats, b)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		l.logger.Error("encode ledger", zap.Error(err))
		return
	}
	if err := l.backend.UpdateCheckpoint(LedgerKey, string(b)); err != nil {
		l.logger.Warn("persist ledger", zap.Error(err))
	}
}

// mergeIDs moves visible ids to the most recent end of known and bounds the
// result, dropping the oldest first.
func mergeIDs(known, visible []string) []string {
	visibleSet := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		visibleSet[id] = struct{}{}
	}
	merged := make([]string, 0, len(known)+len(visible))
	for _, id := range known {
		if _, ok := visibleSet[id]; !ok {
			merged = append(merged, id)
		}
	}
	merged = append(merged, visible...)
	if len(merged) > MaxMessageIDs {
		merged = merged[len(merged)-MaxMessageIDs:]
	}
	return merged
}

// sanitizeIDs drops empty and repeated ids and bounds the result to the tail.
func sanitizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > MaxMessageIDs {
		out = out[len(out)-MaxMessageIDs:]
	}
	return out
}

func sameEntry(a, b *Entry) bool {
	return a.ChannelID == b.ChannelID &&
		a.ChatKey == b.ChatKey &&
		a.Title == b.Title &&
		a.Phone == b.Phone &&
		a.LastMessageID == b.LastMessageID &&
		slices.Equal(a.MessageIDs, b.MessageIDs)
}

func copyEntry(e *Entry) Entry {
	c := *e
	c.MessageIDs = slices.Clone(e.MessageIDs)
	return c
}
