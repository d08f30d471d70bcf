// Package tui is a terminal front end for a running session daemon. It mirrors
// what the browser tab shows and drives it through the daemon API.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/normalize"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/status"
	"github.com/matheus3301/wppilot/internal/tui/keys"
	"github.com/matheus3301/wppilot/internal/tui/model"
	"github.com/matheus3301/wppilot/internal/tui/ui"
	"github.com/matheus3301/wppilot/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageInbox   = "inbox"
	pageThread  = "thread"
	pageDetails = "details"
	pageSearch  = "search"
	pageAuth    = "auth"
	pageEvents  = "events"
	pageOutbox  = "outbox"
	pageHelp    = "help"
)

const (
	messageLimit  = 50
	outboxLimit   = 100
	refreshPeriod = 15 * time.Second
	reloadDelay   = 300 * time.Millisecond
	headerRows    = 9
	chatSuggest   = 8
)

// Client is the daemon API the TUI runs against. *api.Client satisfies it.
type Client interface {
	model.Backend
	WatchEvents(ctx context.Context, prefix string, fn func(api.EventEnvelope) error) error
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	client   Client
	vm       *model.ViewModel
	registry *keys.Registry
	session  string

	pages    *ui.Pages
	main     *tview.Flex
	prompt   *ui.Prompt
	crumbs   *ui.Crumbs
	menu     *ui.Menu
	logo     *ui.Logo
	info     *ui.SessionInfo
	flashBar *ui.FlashBar

	inbox   *views.Inbox
	thread  *views.Thread
	details *views.ChatInfo
	search  *views.SearchView
	auth    *views.AuthView
	events  *views.EventLog
	outbox  *views.Outbox
	help    *views.HelpView

	components map[string]ui.Component
	promptOpen bool
	reload     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		client:   c,
		vm:       model.NewViewModel(c),
		registry: keys.NewRegistry(),
		session:  sessionName,
		pages:    ui.NewPages(),
		prompt:   ui.NewPrompt(theme),
		crumbs:   ui.NewCrumbs(theme),
		menu:     ui.NewMenu(theme, headerRows-1),
		logo:     ui.NewLogo(theme),
		info:     ui.NewSessionInfo(theme),
		flashBar: ui.NewFlashBar(theme),
		inbox:    views.NewInbox(theme),
		thread:   views.NewThread(theme),
		details:  views.NewChatInfo(theme),
		search:   views.NewSearchView(theme),
		auth:     views.NewAuthView(theme),
		events:   views.NewEventLog(theme),
		outbox:   views.NewOutbox(theme),
		help:     views.NewHelpView(theme),
		reload:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.components = map[string]ui.Component{
		pageInbox:   a.inbox,
		pageThread:  a.thread,
		pageDetails: a.details,
		pageSearch:  a.search,
		pageAuth:    a.auth,
		pageEvents:  a.events,
		pageOutbox:  a.outbox,
		pageHelp:    a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func runeAction(r rune, desc string, fn func()) *keys.Action {
	return &keys.Action{Key: tcell.KeyRune, Rune: r, Description: desc, Handler: fn}
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", runeAction('q', "q:quit", a.Stop))
	a.registry.AddGlobal("help", runeAction('?', "?:help", func() { a.show(pageHelp) }))
	a.registry.AddGlobal("command", runeAction(':', ":command", func() { a.openPrompt(ui.PromptCommand) }))
	a.registry.AddGlobal("refresh", runeAction('r', "r:refresh", a.requestReload))
	a.registry.AddGlobal("events", runeAction('e', "e:events", func() { a.show(pageEvents) }))
	a.registry.AddGlobal("outbox", runeAction('o', "o:outbox", a.showOutbox))
	a.registry.AddGlobal("goto", runeAction('g', "g:go to chat", func() { a.openPrompt(ui.PromptOpen) }))

	a.registry.AddView(pageInbox, "filter", runeAction('/', "/:filter", func() { a.openPrompt(ui.PromptFilter) }))
	a.registry.AddView(pageInbox, "clear", runeAction('0', "0:all", func() { a.inbox.ClearFilter() }))
	a.registry.AddView(pageInbox, "archive", runeAction('a', "a:archive", a.archiveSelected))
	for n := '1'; n <= '9'; n++ {
		pos := int(n - '0')
		a.registry.AddView(pageInbox, "jump"+string(n), runeAction(n, "", func() {
			if e, ok := a.inbox.ByPosition(pos); ok {
				a.openIndex(e.Index)
			}
		}))
	}

	a.registry.AddView(pageThread, "compose", runeAction('i', "i:compose", func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(pageThread, "details", runeAction('d', "d:details", func() {
		a.details.Update(a.vm.GetDetails())
		a.show(pageDetails)
	}))
}

func (a *App) setupCallbacks() {
	a.inbox.SetSelectedFunc(func(row, _ int) {
		if e, ok := a.inbox.ByPosition(row); ok {
			a.openIndex(e.Index)
		}
	})

	a.thread.SetOnSend(func(text string) { a.queue(text) })

	a.search.SetOnQuery(func(query string) { a.runSearch(query) })
	a.search.Results().SetSelectedFunc(func(_, _ int) {
		hit, ok := a.search.SelectedResult()
		if !ok {
			return
		}
		a.async(func() (func(), error) {
			if _, err := a.vm.OpenChannel(a.ctx, hit.ChannelID); err != nil {
				return nil, err
			}
			return a.afterOpen, nil
		})
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.closePrompt()
		switch mode {
		case ui.PromptFilter:
			a.inbox.SetFilter(text)
		case ui.PromptCommand:
			a.runCommand(text)
		case ui.PromptOpen:
			a.openQuery(text)
		}
	})
	a.prompt.SetOnCancel(a.closePrompt)
	a.prompt.SetCompleter(ui.PromptCommand, CompleteCommand)
	a.prompt.SetCompleter(ui.PromptOpen, a.completeChat)

	a.pages.SetOnChange(func(stack []string) {
		a.updateCrumbs()
		if len(stack) > 0 {
			a.menu.Update(a.components[stack[len(stack)-1]].Hints())
		}
	})
}

// updateCrumbs redraws the trail; badges change with every reload.
func (a *App) updateCrumbs() {
	stack := a.pages.Stack()
	trail := make([]ui.Crumb, len(stack))
	for i, p := range stack {
		trail[i] = ui.CrumbFor(a.components[p])
	}
	a.crumbs.Update(trail)
}

// completeChat suggests inbox titles containing text, compared the way chat
// lookups are.
func (a *App) completeChat(text string) []string {
	needle := normalize.NormalizeLookupToken(text)
	if needle == "" {
		return nil
	}
	var out []string
	for _, e := range a.vm.GetInbox() {
		if strings.Contains(normalize.NormalizeLookupToken(e.Title), needle) {
			out = append(out, e.Title)
			if len(out) == chatSuggest {
				break
			}
		}
	}
	return out
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c.(tview.Primitive), true, false)
	}

	header := tview.NewFlex().
		AddItem(a.info, 36, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 22, 0, false)

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerRows, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.main, true)
	a.pages.Reset(pageInbox)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.promptOpen {
			return event
		}
		current := a.pages.Current()

		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			if event.Key() == tcell.KeyEscape && current == pageThread {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			if event.Key() != tcell.KeyEscape {
				return event
			}
		}

		if event.Key() == tcell.KeyEscape {
			a.back()
			return nil
		}
		if a.registry.HandleEvent(current, event) {
			return nil
		}
		return event
	})
}

func (a *App) show(name string) {
	a.pages.Push(name)
	switch name {
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	default:
		a.app.SetFocus(a.components[name].(tview.Primitive))
	}
	if name == pageEvents {
		a.events.Update(a.vm.GetEvents())
	}
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		return
	}
	a.pages.Pop()
	a.app.SetFocus(a.components[a.pages.Current()].(tview.Primitive))
}

func (a *App) openPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.promptOpen = true
	a.main.AddItem(a.prompt, 3, 0, true)
	a.app.SetFocus(a.prompt)
}

func (a *App) closePrompt() {
	a.promptOpen = false
	a.main.RemoveItem(a.prompt)
	a.app.SetFocus(a.components[a.pages.Current()].(tview.Primitive))
}

func (a *App) runCommand(input string) {
	cmd, err := ParseCommand(input).Resolve()
	if err != nil {
		a.flashErr(err)
		return
	}
	switch cmd.Name {
	case "open":
		a.openQuery(cmd.Args)
	case "search":
		a.show(pageSearch)
		a.search.Input().SetText(cmd.Args)
		a.runSearch(cmd.Args)
	case "send":
		a.queue(cmd.Args)
	case "inbox":
		if !a.pages.PopTo(pageInbox) {
			a.pages.Reset(pageInbox)
		}
		a.app.SetFocus(a.inbox)
	case "events":
		a.show(pageEvents)
	case "outbox":
		a.showOutbox()
	case "refresh":
		a.requestReload()
	case "help":
		a.show(pageHelp)
	case "quit":
		a.Stop()
	}
}

// async runs fn off the UI goroutine. A non-nil returned func is applied on
// the UI goroutine.
func (a *App) async(fn func() (func(), error)) {
	go func() {
		apply, err := fn()
		if err != nil {
			a.vm.Flash.Err(err)
		}
		a.app.QueueUpdateDraw(func() {
			if apply != nil {
				apply()
			}
			a.flashBar.Update(a.vm.Flash.GetMessage())
		})
	}()
}

func (a *App) flashErr(err error) {
	a.vm.Flash.Err(err)
	a.flashBar.Update(a.vm.Flash.GetMessage())
}

func (a *App) openQuery(query string) {
	a.async(func() (func(), error) {
		if _, err := a.vm.OpenChatByQuery(a.ctx, query); err != nil {
			return nil, err
		}
		return a.afterOpen, nil
	})
}

func (a *App) openIndex(index int) {
	a.async(func() (func(), error) {
		res, err := a.vm.OpenChat(a.ctx, index)
		if err != nil {
			return nil, err
		}
		if !res.Confirmed {
			a.vm.Flash.Warn("Opened " + res.Chat.Title + " but the header did not confirm it")
		}
		return a.afterOpen, nil
	})
}

// afterOpen shows the thread; the context reload fills it in.
func (a *App) afterOpen() {
	a.show(pageThread)
	a.requestReload()
}

func (a *App) archiveSelected() {
	e, ok := a.inbox.Selected()
	if !ok {
		return
	}
	a.async(func() (func(), error) {
		report, err := a.vm.ArchiveChat(a.ctx, e.Index)
		if err != nil {
			return nil, err
		}
		switch {
		case report.Archived > 0:
			a.vm.Flash.Info("Archived " + e.Title)
		case report.AlreadyArchived > 0:
			a.vm.Flash.Warn(e.Title + " was already archived")
		default:
			a.vm.Flash.Warn("Could not archive " + e.Title)
		}
		return a.requestReload, nil
	})
}

func (a *App) queue(text string) {
	a.async(func() (func(), error) {
		if _, err := a.vm.Queue(a.ctx, text); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func (a *App) runSearch(query string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	a.async(func() (func(), error) {
		hits, err := a.vm.Search(a.ctx, query)
		if err != nil {
			return nil, err
		}
		return func() {
			a.search.Update(hits)
			a.app.SetFocus(a.search.Results())
		}, nil
	})
}

func (a *App) showOutbox() {
	a.show(pageOutbox)
	a.async(func() (func(), error) {
		if err := a.vm.LoadOutbox(a.ctx, outboxLimit); err != nil {
			return nil, err
		}
		return func() { a.outbox.Update(a.vm.GetOutbox()) }, nil
	})
}

// requestReload schedules a status and context refresh. Requests made while
// one is pending coalesce.
func (a *App) requestReload() {
	select {
	case a.reload <- struct{}{}:
	default:
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go a.reloadLoop()
	go a.watchLoop()
	a.requestReload()
	return a.app.Run()
}

func (a *App) reloadLoop() {
	ticker := time.NewTicker(refreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-a.reload:
			// Let bursts of page events settle.
			select {
			case <-time.After(reloadDelay):
			case <-a.ctx.Done():
				return
			}
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.refresh()
	}
}

func (a *App) refresh() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.vm.Flash.Err(err)
	}
	if err := a.vm.LoadContext(a.ctx, messageLimit); err != nil {
		a.vm.Flash.Err(err)
	}
	a.app.QueueUpdateDraw(a.render)
}

// render pushes view model state into the views. Runs on the UI goroutine.
func (a *App) render() {
	st := a.vm.GetStatus()
	pc := a.vm.GetPage()
	d := a.vm.GetDetails()

	uptime := time.Duration(st.UptimeMs) * time.Millisecond
	a.info.Update(&ui.SessionData{
		Session:       a.session,
		Phone:         d.MyNumber,
		Status:        st.Status,
		Handler:       st.Handler,
		ChatCount:     st.ChatCount,
		MessageCount:  st.MessageCount,
		OutboxPending: st.OutboxPending,
		Uptime:        uptime,
	})
	a.logo.SetStatus(st.Status)

	loginRequired := st.Status == string(status.LoginRequired) || pc.Status == site.StatusLoginRequired
	switch {
	case loginRequired:
		if pc.LoginCode != "" {
			a.auth.ShowQR(pc.LoginCode)
		} else if a.auth.Code() == "" {
			a.auth.ShowMessage("Waiting for the page to show a login code...")
		}
		if a.pages.Current() != pageAuth {
			a.pages.Reset(pageAuth)
			a.app.SetFocus(a.auth)
		}
	case a.pages.Current() == pageAuth:
		a.auth.ShowMessage("Logged in.")
		a.pages.Reset(pageInbox)
		a.app.SetFocus(a.inbox)
	}

	a.inbox.Update(d.Inbox)
	a.thread.Update(d.CurrentChat, d.Messages)
	a.thread.SetSync(d.Sync)
	a.updateCrumbs()
	if a.pages.Current() == pageDetails {
		a.details.Update(d)
	}
	if a.pages.Current() == pageEvents {
		a.events.Update(a.vm.GetEvents())
	}
	a.flashBar.Update(a.vm.Flash.GetMessage())
}

// watchLoop follows the daemon's event stream, reconnecting until the app
// stops.
func (a *App) watchLoop() {
	backoff := time.Second
	for {
		err := a.client.WatchEvents(a.ctx, "", func(env api.EventEnvelope) error {
			backoff = time.Second
			a.handleEvent(env)
			return nil
		})
		if a.ctx.Err() != nil {
			return
		}
		if err != nil {
			a.vm.Flash.Warn("event stream lost: " + err.Error())
		}
		select {
		case <-time.After(backoff):
		case <-a.ctx.Done():
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (a *App) handleEvent(env api.EventEnvelope) {
	a.vm.AddEvent(env)

	switch {
	case env.Kind == bus.KindQRGenerated:
		code := payloadString(env.Payload, "code")
		a.app.QueueUpdateDraw(func() {
			a.auth.ShowQR(code)
			if a.pages.Current() != pageAuth {
				a.pages.Reset(pageAuth)
				a.app.SetFocus(a.auth)
			}
		})
	case env.Kind == bus.KindLoggedIn:
		a.vm.Flash.Info("Logged in")
		a.requestReload()
	case env.Kind == bus.KindSendAck:
		a.vm.Flash.Info("Sent to " + payloadString(env.Payload, "chatQuery"))
		a.requestReload()
	case env.Kind == bus.KindSendFailed:
		reason := payloadString(env.Payload, "reason")
		msg := "Send failed: " + reason
		if m, ok := env.Payload.(map[string]any); ok && m["maybeDelivered"] == true {
			msg += " (may have been delivered)"
		}
		a.vm.Flash.Failure(reason, msg)
		a.requestReload()
	case env.Kind == bus.KindStatusChanged,
		strings.HasPrefix(env.Kind, "context."),
		strings.HasPrefix(env.Kind, "chat."):
		a.requestReload()
	default:
		a.app.QueueUpdateDraw(func() {
			if a.pages.Current() == pageEvents {
				a.events.Update(a.vm.GetEvents())
			}
		})
	}
}

func payloadString(payload any, key string) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Stop shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
