package browser

import (
	"fmt"
	"io"
	"os"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Defaults for Options.
const (
	DefaultURL            = "https://web.whatsapp.com/"
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 900
	DefaultTimeoutMs      = 30000
)

// Options configures the persistent browser.
type Options struct {
	URL        string
	ProfileDir string
	Headless   bool
	Channel    string
	Width      int
	Height     int
	TimeoutMs  float64
	// Install downloads the browser driver before launching.
	Install bool
}

func (o *Options) setDefaults() {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Width <= 0 {
		o.Width = DefaultViewportWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultViewportHeight
	}
	if o.TimeoutMs <= 0 {
		o.TimeoutMs = DefaultTimeoutMs
	}
}

// Browser owns the Playwright driver, the persistent context and its tab.
type Browser struct {
	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    playwright.Page
	tab     *Tab
	logger  *zap.Logger
}

// Launch starts Chromium with a persistent profile so the chat web app keeps
// its login between runs, and opens opts.URL in the first tab.
func Launch(opts Options, logger *zap.Logger) (*Browser, error) {
	opts.setDefaults()
	if opts.ProfileDir == "" {
		return nil, fmt.Errorf("browser profile dir is required")
	}
	if err := os.MkdirAll(opts.ProfileDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	runOpts := &playwright.RunOptions{Verbose: false, Stdout: io.Discard, Stderr: io.Discard}
	if opts.Install {
		logger.Info("installing browser driver")
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	}
	if opts.Channel != "" {
		launch.Channel = playwright.String(opts.Channel)
	}
	bctx, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir, launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	var p playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		p = pages[0]
	} else if p, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p.SetDefaultTimeout(opts.TimeoutMs)

	if _, err := p.Goto(opts.URL, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded}); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("navigate to %s: %w", opts.URL, err)
	}
	logger.Info("browser ready",
		zap.String("url", opts.URL),
		zap.String("profile", opts.ProfileDir),
		zap.Bool("headless", opts.Headless))

	return &Browser{pw: pw, context: bctx, page: p, tab: NewTab(p, logger), logger: logger}, nil
}

// Tab returns the automated tab.
func (b *Browser) Tab() *Tab { return b.tab }

// Close shuts the tab, the context and the driver down.
func (b *Browser) Close() error {
	b.tab.Close()
	var firstErr error
	if err := b.context.Close(); err != nil {
		firstErr = fmt.Errorf("close browser context: %w", err)
	}
	if err := b.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stop playwright: %w", err)
	}
	b.logger.Info("browser closed")
	return firstErr
}
