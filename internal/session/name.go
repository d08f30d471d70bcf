package session

import (
	"fmt"
	"os"
	"regexp"

	"github.com/matheus3301/wppilot/internal/config"
)

// DefaultName is the session used when nothing else names one.
const DefaultName = "main"

// NameEnv names the session when no flag is given.
const NameEnv = "WPPILOT_SESSION"

// maxSocketPath is the usable sun_path length on macOS, the shorter of the
// supported platforms.
const maxSocketPath = 103

// A leading letter or digit keeps names from being read as flags when the
// daemon is spawned with --session.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Resolve picks the session name: the flag, then $WPPILOT_SESSION, then the
// config's default_session, then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv(NameEnv); env != "" {
		return env
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultName
}

// ValidateName rejects names that are not safe as a directory name, and
// names whose daemon socket would not fit a Unix socket address under the
// current base directory.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 of a-z, 0-9, _ and -, starting with a letter or digit", name)
	}
	if p := SocketPath(name); len(p) > maxSocketPath {
		return fmt.Errorf("session %q: socket path %s is %d bytes, over the %d byte limit; shorten the name or set %s",
			name, p, len(p), maxSocketPath, HomeEnv)
	}
	return nil
}

// Select resolves and validates the session name in one step.
func Select(flagOverride string) (string, error) {
	name := Resolve(flagOverride)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
