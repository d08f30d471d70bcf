package chatapp

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/page"
	"github.com/matheus3301/wppilot/internal/site"
	"go.uber.org/zap"
)

// Archive item statuses.
const (
	ArchiveMatched         = "matched"
	ArchiveDone            = "archived"
	ArchiveAlreadyArchived = "already_archived"
	ArchiveFailed          = "failed"
)

type archiveArgs struct {
	Scope     string `json:"scope"`
	Query     string `json:"query"`
	Phone     string `json:"phone"`
	DryRun    bool   `json:"dryRun"`
	Limit     int    `json:"limit"`
	ChatIndex *int   `json:"chatIndex"`
}

// ArchiveItem is the outcome for one chat.
type ArchiveItem struct {
	Chat   InboxEntry `json:"chat"`
	Status string     `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// ArchiveReport summarizes a bulk archive.
type ArchiveReport struct {
	Scope           string        `json:"scope"`
	DryRun          bool          `json:"dryRun"`
	Matched         int           `json:"matched"`
	Archived        int           `json:"archived"`
	AlreadyArchived int           `json:"alreadyArchived"`
	Failed          int           `json:"failed"`
	Items           []ArchiveItem `json:"items"`
}

func (h *Handler) archiveLocked(ctx context.Context, a archiveArgs, defaultScope string) (ArchiveReport, error) {
	scope := a.Scope
	if defaultScope == ScopeGroups || scope == "" {
		scope = defaultScope
	}
	if !validScope(scope) {
		return ArchiveReport{}, site.NewInvalidRequest("scope must be all, groups or contacts")
	}
	q := Query{Text: a.Query, Phone: a.Phone}
	if scope == ScopeAll && q.empty() && a.ChatIndex == nil && !a.DryRun {
		return ArchiveReport{}, site.NewInvalidRequest("archiving every chat requires a query, phone, chatIndex or dryRun")
	}

	v, err := h.read(ctx, h.cfg.MessageLimit)
	if err != nil {
		return ArchiveReport{}, err
	}
	var targets []InboxEntry
	if a.ChatIndex != nil {
		for _, e := range FilterInbox(v.inbox, scope, Query{}) {
			if e.Index == *a.ChatIndex {
				targets = append(targets, e)
			}
		}
		if len(targets) == 0 {
			return ArchiveReport{}, site.NewActionError(ErrChatNotFound, "no chat at that index",
				map[string]any{"chatIndex": *a.ChatIndex})
		}
	} else {
		targets = FilterInbox(v.inbox, scope, q)
	}
	if a.Limit > 0 && len(targets) > a.Limit {
		targets = targets[:a.Limit]
	}

	report := ArchiveReport{Scope: scope, DryRun: a.DryRun, Matched: len(targets), Items: make([]ArchiveItem, 0, len(targets))}
	for _, e := range targets {
		item := ArchiveItem{Chat: e, Status: ArchiveMatched}
		if !a.DryRun {
			item.Status, item.Reason = h.archiveEntryLocked(ctx, e)
		}
		switch item.Status {
		case ArchiveDone:
			report.Archived++
		case ArchiveAlreadyArchived:
			report.AlreadyArchived++
		case ArchiveFailed:
			report.Failed++
		}
		report.Items = append(report.Items, item)
	}
	h.logger.Info("archive finished",
		zap.String("scope", scope),
		zap.Bool("dry_run", a.DryRun),
		zap.Int("matched", report.Matched),
		zap.Int("archived", report.Archived),
		zap.Int("failed", report.Failed))
	return report, nil
}

// archiveEntryLocked relocates e in the current list, since archiving earlier
// rows shifts positions, and archives it.
func (h *Handler) archiveEntryLocked(ctx context.Context, e InboxEntry) (string, string) {
	doc, err := h.page.Snapshot(ctx)
	if err != nil {
		return ArchiveFailed, err.Error()
	}
	entries, sel := ScrapeInbox(doc)
	idx := -1
	for _, cur := range entries {
		if cur.ChannelID == e.ChannelID {
			idx = cur.Index
			break
		}
	}
	if idx < 0 {
		return ArchiveFailed, ErrChatNotFound
	}
	status, err := h.archiveOneLocked(ctx, page.Target{Selector: sel, Index: idx})
	if err != nil {
		h.logger.Warn("archive failed", zap.String("chat", e.Title), zap.Error(err))
		return ArchiveFailed, site.Failure(err).Error
	}
	return status, ""
}

// menuChoice locates the archive and unarchive entries of an open menu.
type menuChoice struct {
	archive   int
	unarchive int
}

func (c menuChoice) found() bool { return c.archive >= 0 || c.unarchive >= 0 }

func readMenu(doc *goquery.Document) menuChoice {
	c := menuChoice{archive: -1, unarchive: -1}
	doc.Find(selMenuItems).Each(func(i int, s *goquery.Selection) {
		label := s.Text()
		if v, ok := s.Attr("aria-label"); ok {
			label += " " + v
		}
		switch menuLabel(label) {
		case "archive":
			if c.archive < 0 {
				c.archive = i
			}
		case "unarchive":
			if c.unarchive < 0 {
				c.unarchive = i
			}
		}
	})
	return c
}

// menuLabel classifies a menu entry in English or Spanish.
func menuLabel(text string) string {
	tok := normalize.NormalizeLookupToken(text)
	switch {
	case strings.Contains(tok, "unarchive"), strings.Contains(tok, "desarchivar"):
		return "unarchive"
	case strings.Contains(tok, "archive"), strings.Contains(tok, "archivar"):
		return "archive"
	}
	return ""
}

func (h *Handler) archiveOneLocked(ctx context.Context, row page.Target) (string, error) {
	if err := h.page.Hover(ctx, row); err != nil {
		return "", site.NewActionError(ErrChatNotFound, err.Error(), nil)
	}
	doc, err := h.page.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	menuButton := row.Within(selRowMenuButton)
	if page.Resolve(doc, menuButton).Length() > 0 {
		err = h.page.Click(ctx, menuButton)
	} else {
		err = h.page.ContextClick(ctx, row)
	}
	if err != nil {
		return "", site.NewActionError(ErrArchiveNotFound, err.Error(), nil)
	}

	choice, ok := page.Poll(ctx, h.poll(h.cfg.MenuTimeout), func(ctx context.Context) (menuChoice, bool) {
		doc, err := h.page.Snapshot(ctx)
		if err != nil {
			return menuChoice{archive: -1, unarchive: -1}, false
		}
		c := readMenu(doc)
		return c, c.found()
	})
	if !ok {
		choice = menuChoice{archive: -1, unarchive: -1}
	}
	if choice.archive >= 0 {
		if err := h.page.Click(ctx, page.Target{Selector: selMenuItems, Index: choice.archive}); err != nil {
			return "", site.NewActionError(ErrArchiveNotFound, err.Error(), nil)
		}
		return ArchiveDone, nil
	}

	if err := h.page.PressPage(ctx, "Escape"); err != nil {
		h.logger.Debug("close menu failed", zap.Error(err))
	}
	if choice.unarchive >= 0 {
		return ArchiveAlreadyArchived, nil
	}
	return "", site.NewActionError(ErrArchiveNotFound, "archive action not found in chat menu", nil)
}
