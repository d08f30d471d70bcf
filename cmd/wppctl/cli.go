package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/config"
	"github.com/matheus3301/wppilot/internal/lock"
	"github.com/matheus3301/wppilot/internal/session"
	"github.com/matheus3301/wppilot/internal/site"
)

// backend is the daemon surface the commands use. *api.Client satisfies it.
type backend interface {
	Status(ctx context.Context) (api.StatusInfo, error)
	CollectContext(ctx context.Context, req api.CollectRequest) (site.Context, error)
	RunAction(ctx context.Context, action string, args map[string]any) (site.Result, error)
	QueueMessage(ctx context.Context, req api.QueueRequest) (api.QueueResponse, error)
	ListOutbox(ctx context.Context, limit int) ([]api.OutboxItem, error)
	SearchMessages(ctx context.Context, req api.SearchRequest) ([]api.SearchHit, error)
	ListLedger(ctx context.Context) (api.LedgerView, error)
	WatchEvents(ctx context.Context, prefix string, fn func(api.EventEnvelope) error) error
	Close() error
}

var dial = func(socketPath string) (backend, error) {
	return api.Dial(socketPath)
}

var errLoggedIn = errors.New("logged in")

// newCLIApp creates the CLI application with all commands.
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "wppctl",
		Usage:   "Control a running wppd session",
		Version: Version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "session name (overrides config default)"},
			&cli.BoolFlag{Name: "json", Usage: "output in JSON format"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "per-call deadline"},
		},
		Commands: []*cli.Command{
			statusCmd(),
			contextCmd(),
			actionCmd(),
			sendCmd(),
			queueCmd(),
			outboxCmd(),
			searchCmd(),
			ledgerCmd(),
			eventsCmd(),
			loginCmd(),
			lockCmd(),
			configCmd(),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func sessionName(c *cli.Context) (string, error) {
	return session.Select(c.String("session"))
}

// withClient dials the session daemon and runs fn under the call deadline.
func withClient(c *cli.Context, fn func(ctx context.Context, b backend) error) error {
	name, err := sessionName(c)
	if err != nil {
		return err
	}
	b, err := dial(session.SocketPath(name))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	return fn(ctx, b)
}

// withStream is withClient without a deadline; it ends on SIGINT or SIGTERM.
func withStream(c *cli.Context, fn func(ctx context.Context, b backend) error) error {
	name, err := sessionName(c)
	if err != nil {
		return err
	}
	b, err := dial(session.SocketPath(name))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	defer func() { _ = b.Close() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, b)
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show session status",
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, b backend) error {
				st, err := b.Status(ctx)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return outputJSON(c.App.Writer, st)
				}
				w := c.App.Writer
				fmt.Fprintf(w, "Session:  %s\n", st.Session)
				fmt.Fprintf(w, "Status:   %s\n", st.Status)
				fmt.Fprintf(w, "Handler:  %s\n", orDash(st.Handler))
				fmt.Fprintf(w, "URL:      %s\n", orDash(st.URL))
				fmt.Fprintf(w, "Uptime:   %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
				fmt.Fprintf(w, "Archive:  %d chats, %d messages\n", st.ChatCount, st.MessageCount)
				fmt.Fprintf(w, "Outbox:   %d pending\n", st.OutboxPending)
				fmt.Fprintf(w, "Ledger:   %d chats\n", st.KnownChats)
				if st.EventsDropped > 0 {
					fmt.Fprintf(w, "Events:   %d dropped by slow subscribers\n", st.EventsDropped)
				}
				return nil
			})
		},
	}
}

func contextCmd() *cli.Command {
	return &cli.Command{
		Name:  "context",
		Usage: "Collect and print the current page context",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "messages", Aliases: []string{"m"}, Usage: "max messages to return"},
			&cli.IntFlag{Name: "text", Usage: "max characters of page text"},
		},
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, b backend) error {
				pc, err := b.CollectContext(ctx, api.CollectRequest{
					MessageLimit: c.Int("messages"),
					TextLimit:    c.Int("text"),
				})
				if err != nil {
					return err
				}
				return outputJSON(c.App.Writer, pc)
			})
		},
	}
}

func actionCmd() *cli.Command {
	return &cli.Command{
		Name:      "action",
		Usage:     "Run a handler action with JSON arguments",
		ArgsUsage: "<name> [json-args]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("action name is required")
			}
			args, err := parseArgs(c.Args().Get(1))
			if err != nil {
				return err
			}
			return withClient(c, func(ctx context.Context, b backend) error {
				res, err := b.RunAction(ctx, c.Args().First(), args)
				if err != nil {
					return err
				}
				return printResult(c, res)
			})
		},
	}
}

func sendCmd() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a message now, to the open chat or to --chat",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Usage: "chat name or phone to open first"},
			&cli.StringFlag{Name: "expected-phone", Aliases: []string{"p"}, Usage: "refuse to send unless the chat has this phone"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("message text is required")
			}
			action, args := sendArgs(c.String("chat"), c.String("expected-phone"), text)
			return withClient(c, func(ctx context.Context, b backend) error {
				res, err := b.RunAction(ctx, action, args)
				if err != nil {
					return err
				}
				return printResult(c, res)
			})
		},
	}
}

// sendArgs picks the send action: with a chat it opens first, without one it
// types into whatever chat is open.
func sendArgs(chat, expectedPhone, text string) (string, map[string]any) {
	args := map[string]any{"text": text}
	if expectedPhone != "" {
		args["expectedPhone"] = expectedPhone
	}
	if strings.TrimSpace(chat) == "" {
		return "sendMessage", args
	}
	args["query"] = chat
	return "openChatAndSendMessage", args
}

func queueCmd() *cli.Command {
	return &cli.Command{
		Name:      "queue",
		Usage:     "Queue a message on the outbox",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "chat name or phone"},
			&cli.StringFlag{Name: "expected-phone", Aliases: []string{"p"}, Usage: "refuse to send unless the chat has this phone"},
			&cli.StringFlag{Name: "id", Usage: "client message id for idempotent retries"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("message text is required")
			}
			return withClient(c, func(ctx context.Context, b backend) error {
				resp, err := b.QueueMessage(ctx, api.QueueRequest{
					ClientMsgID:   c.String("id"),
					Chat:          c.String("chat"),
					ExpectedPhone: c.String("expected-phone"),
					Text:          text,
				})
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return outputJSON(c.App.Writer, resp)
				}
				fmt.Fprintf(c.App.Writer, "%s %s\n", resp.ClientMsgID, resp.Status)
				return nil
			})
		},
	}
}

func outboxCmd() *cli.Command {
	return &cli.Command{
		Name:  "outbox",
		Usage: "List recent outbox entries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "max entries"},
		},
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, b backend) error {
				items, err := b.ListOutbox(ctx, c.Int("limit"))
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return outputJSON(c.App.Writer, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(c.App.Writer, "Outbox is empty.")
					return nil
				}
				for _, it := range items {
					line := fmt.Sprintf("%-36s %-8s %-20s %s", it.ClientMsgID, it.Status, truncate(it.Chat, 20), truncate(it.Text, 40))
					if it.Error != "" {
						line += " (" + it.Error + ")"
					}
					fmt.Fprintln(c.App.Writer, line)
				}
				return nil
			})
		},
	}
}

func searchCmd() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search over archived messages",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Usage: "restrict to one channel id"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "max results"},
		},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("search query is required")
			}
			return withClient(c, func(ctx context.Context, b backend) error {
				hits, err := b.SearchMessages(ctx, api.SearchRequest{
					Query:     query,
					ChannelID: c.String("channel"),
					Limit:     c.Int("limit"),
				})
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return outputJSON(c.App.Writer, hits)
				}
				for _, h := range hits {
					fmt.Fprintf(c.App.Writer, "%-30s %-7s %s\n", truncate(h.ChannelID, 30), h.Role, h.Snippet)
				}
				return nil
			})
		},
	}
}

func ledgerCmd() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Show what the daemon has seen per chat",
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, b backend) error {
				view, err := b.ListLedger(ctx)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return outputJSON(c.App.Writer, view)
				}
				for _, e := range view.Chats {
					fmt.Fprintf(c.App.Writer, "%-30s %-24s %4d msgs  last %s\n",
						truncate(e.ChannelID, 30), truncate(e.Title, 24), len(e.MessageIDs), orDash(e.LastMessageID))
				}
				return nil
			})
		},
	}
}

func eventsCmd() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Stream daemon events as JSON lines",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prefix", Usage: "only kinds starting with this, e.g. message."},
		},
		Action: func(c *cli.Context) error {
			return withStream(c, func(ctx context.Context, b backend) error {
				enc := json.NewEncoder(c.App.Writer)
				return b.WatchEvents(ctx, c.String("prefix"), func(env api.EventEnvelope) error {
					return enc.Encode(env)
				})
			})
		},
	}
}

func loginCmd() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Print the login QR code and wait for the scan",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-wait", Usage: "print the current code and exit"},
		},
		Action: func(c *cli.Context) error {
			return withStream(c, func(ctx context.Context, b backend) error {
				pc, err := b.CollectContext(ctx, api.CollectRequest{})
				if err != nil {
					return err
				}
				if pc.Status == site.StatusReady {
					fmt.Fprintln(c.App.Writer, "Already logged in.")
					return nil
				}
				last := ""
				if pc.LoginCode != "" {
					if err := printQR(c.App.Writer, pc.LoginCode); err != nil {
						return err
					}
					last = pc.LoginCode
				}
				if c.Bool("no-wait") {
					if last == "" {
						fmt.Fprintln(c.App.Writer, "No login code on the page yet.")
					}
					return nil
				}

				err = b.WatchEvents(ctx, "session.", func(env api.EventEnvelope) error {
					switch env.Kind {
					case bus.KindQRGenerated:
						code := payloadString(env.Payload, "code")
						if code == "" || code == last {
							return nil
						}
						last = code
						return printQR(c.App.Writer, code)
					case bus.KindLoggedIn:
						return errLoggedIn
					}
					return nil
				})
				if errors.Is(err, errLoggedIn) {
					fmt.Fprintln(c.App.Writer, "Logged in.")
					return nil
				}
				return err
			})
		},
	}
}

func lockCmd() *cli.Command {
	return &cli.Command{
		Name:  "lock",
		Usage: "Show which process holds the session lock",
		Action: func(c *cli.Context) error {
			name, err := sessionName(c)
			if err != nil {
				return err
			}
			owner, held, err := lock.Inspect(session.Dir(name))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{"session": name, "held": held, "pid": owner.PID, "since": owner.Since})
			}
			if !held {
				fmt.Fprintf(c.App.Writer, "Session %q is not locked.\n", name)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "Session %q locked by PID %d since %s\n", name, owner.PID, owner.Since.Format(time.RFC3339))
			return nil
		},
	}
}

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the config file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the default config",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := session.ConfigPath()
					if _, err := os.Stat(path); err == nil && !c.Bool("force") {
						return fmt.Errorf("%s already exists (use --force)", path)
					}
					if err := config.Save(path, config.Default()); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
					return nil
				},
			},
			{
				Name:  "path",
				Usage: "Print the config file location",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, session.ConfigPath())
					return nil
				},
			},
		},
	}
}

func parseArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("action args must be a JSON object: %w", err)
	}
	return args, nil
}

// printResult prints an action outcome and turns a failure into an error so
// the exit code reflects it.
func printResult(c *cli.Context, res site.Result) error {
	if err := outputJSON(c.App.Writer, res); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("action failed: %s", res.Error)
	}
	return nil
}

func printQR(w io.Writer, code string) error {
	qr, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return fmt.Errorf("encode login code: %w", err)
	}
	fmt.Fprintln(w, qr.ToSmallString(false))
	fmt.Fprintln(w, "Scan with WhatsApp > Linked devices > Link a device")
	return nil
}

func payloadString(payload any, key string) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
