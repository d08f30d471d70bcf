package site

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/page"
	"go.uber.org/zap"
)

// DefaultTextLimit bounds generic page excerpts.
const DefaultTextLimit = 4000

// GenericName is the registry name of the fallback handler.
const GenericName = "generic"

// PageDetails is what the generic handler reports for any page.
type PageDetails struct {
	Description string `json:"description,omitempty"`
	Text        string `json:"text,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Generic reads title, description and visible text of any page.
type Generic struct {
	page   page.Page
	cfg    ObserverConfig
	logger *zap.Logger
}

// NewGeneric creates the fallback handler.
func NewGeneric(p page.Page, cfg ObserverConfig, logger *zap.Logger) *Generic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generic{page: p, cfg: cfg, logger: logger}
}

func (g *Generic) Name() string { return GenericName }

func (g *Generic) CollectContext(ctx context.Context, opts Options) Context {
	c := Context{
		Site:        GenericName,
		URL:         g.page.URL(),
		CollectedAt: time.Now(),
		Status:      StatusReady,
	}
	doc, err := g.page.Snapshot(ctx)
	if err != nil {
		c.Status = StatusError
		c.Details = PageDetails{Error: err.Error()}
		return c
	}
	title, details := readPage(doc, opts.TextLimit)
	c.Title = title
	c.Details = details
	return c
}

func (g *Generic) ObserveContextChanges(onChange func(reason string)) func() {
	return Observe(g.page, g.cfg, g.signature, onChange, g.logger)
}

func (g *Generic) signature(ctx context.Context) string {
	doc, err := g.page.Snapshot(ctx)
	if err != nil {
		return "error"
	}
	title, details := readPage(doc, 0)
	return g.page.URL() + "|" + title + "|" + normalize.StableHashString(details.Text)
}

type readPageArgs struct {
	TextLimit int `json:"textLimit"`
}

func (g *Generic) RunAction(ctx context.Context, action string, args map[string]any) (res Result) {
	defer Recover(&res)

	switch action {
	case "getPageInfo":
		doc, err := g.page.Snapshot(ctx)
		if err != nil {
			return Failure(err)
		}
		title, details := readPage(doc, 0)
		return OK(map[string]any{
			"url":         g.page.URL(),
			"title":       title,
			"description": details.Description,
		})
	case "readPage":
		a, err := Decode[readPageArgs](args)
		if err != nil {
			return Failure(err)
		}
		doc, err := g.page.Snapshot(ctx)
		if err != nil {
			return Failure(err)
		}
		title, details := readPage(doc, a.TextLimit)
		return OK(map[string]any{
			"url":       g.page.URL(),
			"title":     title,
			"text":      details.Text,
			"truncated": details.Truncated,
		})
	default:
		return Failure(NewUnknownAction(GenericName, action))
	}
}

func readPage(doc *goquery.Document, limit int) (string, PageDetails) {
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	title := normalize.CollapseText(doc.Find("title").First().Text())

	var d PageDetails
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			d.Description = normalize.CollapseText(v)
			break
		}
	}

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template, svg").Remove()
	text := normalize.CollapseText(body.Text())
	if r := []rune(text); len(r) > limit {
		text = string(r[:limit])
		d.Truncated = true
	}
	d.Text = text
	return title, d
}
