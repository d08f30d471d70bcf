package chatapp

import (
	"context"
	"strconv"
	"strings"

	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/site"
)

// ObserveContextChanges reports material changes of the collected context:
// login state, the open chat, its message tail and its sync state.
func (h *Handler) ObserveContextChanges(onChange func(reason string)) func() {
	cfg := site.ObserverConfig{Debounce: h.cfg.Debounce, Heartbeat: h.cfg.Heartbeat}
	return site.Observe(h.page, cfg, h.signature, onChange, h.logger)
}

// signature summarizes the page without touching the ledger.
func (h *Handler) signature(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return "error|" + err.Error()
	}
	parts := []string{v.status, v.loginCode}
	channelID := ""
	if v.chat != nil {
		channelID = v.chat.ChannelID
	}
	parts = append(parts, channelID, strconv.Itoa(len(v.messages)))

	known, missing, lastVisible := 0, 0, ""
	if channelID != "" {
		if e, ok := h.ledger.Entry(channelID); ok {
			known = len(e.MessageIDs)
		}
		st := h.ledger.Peek(channelID, messageIDs(v.messages))
		missing, lastVisible = st.MissingMessageCount, st.LastVisibleMessageID
	}
	parts = append(parts, strconv.Itoa(known), strconv.Itoa(missing))

	first, last := "", ""
	if n := len(v.messages); n > 0 {
		first, last = v.messages[0].ID, v.messages[n-1].ID
	}
	parts = append(parts, first, last, lastVisible, tailHash(v.messages, 3))
	return strings.Join(parts, "|")
}

func tailHash(msgs []Message, n int) string {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.ID)
		b.WriteByte(0)
		b.WriteString(m.Role)
		b.WriteByte(0)
		b.WriteString(m.Text)
		b.WriteByte('\n')
	}
	return normalize.StableHashString(b.String())
}
