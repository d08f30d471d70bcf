package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wppilot/config.toml.
type Config struct {
	DefaultSession string     `toml:"default_session"`
	Browser        Browser    `toml:"browser"`
	Automation     Automation `toml:"automation"`
	Relay          Relay      `toml:"relay"`
	MCP            MCP        `toml:"mcp"`
	Log            Log        `toml:"log"`
	Sites          []Site     `toml:"sites"`
}

// Browser configures the automated tab.
type Browser struct {
	URL            string   `toml:"url"`
	Headless       bool     `toml:"headless"`
	Channel        string   `toml:"channel"`
	ViewportWidth  int      `toml:"viewport_width"`
	ViewportHeight int      `toml:"viewport_height"`
	Timeout        Duration `toml:"timeout"`
	Install        bool     `toml:"install"`
}

// Automation holds the timing knobs of collection and actions.
type Automation struct {
	TextLimit        int      `toml:"text_limit"`
	MessageLimit     int      `toml:"message_limit"`
	Debounce         Duration `toml:"debounce"`
	Heartbeat        Duration `toml:"heartbeat"`
	DedupeWindow     Duration `toml:"dedupe_window"`
	IdentityTimeout  Duration `toml:"identity_timeout"`
	ComposerTimeout  Duration `toml:"composer_timeout"`
	SendReadyTimeout Duration `toml:"send_ready_timeout"`
	ConfirmTimeout   Duration `toml:"confirm_timeout"`
	OpenTimeout      Duration `toml:"open_timeout"`
	MenuTimeout      Duration `toml:"menu_timeout"`
	PollInterval     Duration `toml:"poll_interval"`
}

// Relay configures the optional NATS bridge.
type Relay struct {
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// MCP configures the assistant tool server.
type MCP struct {
	Disabled      bool     `toml:"disabled"`
	DisabledTools []string `toml:"disabled_tools"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Site maps extra host patterns to a handler.
type Site struct {
	Name     string   `toml:"name"`
	Patterns []string `toml:"patterns"`
	Priority int      `toml:"priority"`
}

// Duration is a time.Duration written as a string such as "2.2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Browser: Browser{
			URL:            "https://web.whatsapp.com/",
			ViewportWidth:  1280,
			ViewportHeight: 900,
			Timeout:        Duration{30 * time.Second},
		},
		Automation: Automation{
			TextLimit:        4000,
			MessageLimit:     80,
			Debounce:         Duration{200 * time.Millisecond},
			Heartbeat:        Duration{2 * time.Second},
			DedupeWindow:     Duration{6 * time.Second},
			IdentityTimeout:  Duration{2200 * time.Millisecond},
			ComposerTimeout:  Duration{1500 * time.Millisecond},
			SendReadyTimeout: Duration{1200 * time.Millisecond},
			ConfirmTimeout:   Duration{2600 * time.Millisecond},
			OpenTimeout:      Duration{2500 * time.Millisecond},
			MenuTimeout:      Duration{1200 * time.Millisecond},
			PollInterval:     Duration{100 * time.Millisecond},
		},
		Relay: Relay{SubjectPrefix: "wppilot"},
		Log:   Log{Level: "info"},
	}
}

// Load reads config from the given path over the defaults. Returns an error
// if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that treats a missing file as the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ToolEnabled reports whether the MCP tool name is enabled.
func (m MCP) ToolEnabled(name string) bool {
	for _, d := range m.DisabledTools {
		if d == name {
			return false
		}
	}
	return true
}
