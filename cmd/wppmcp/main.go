package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/wppilot/internal/api"
	"github.com/matheus3301/wppilot/internal/config"
	"github.com/matheus3301/wppilot/internal/logging"
	"github.com/matheus3301/wppilot/internal/mcp"
	"github.com/matheus3301/wppilot/internal/session"
)

// Version is set at build time.
var Version = "dev"

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName, err := session.Select(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.MCP.Disabled {
		fmt.Fprintln(os.Stderr, "error: the MCP server is disabled in config")
		os.Exit(1)
	}

	// stdout carries the protocol, so logs go to the file only.
	logger, err := logging.NewWithConsole(filepath.Join(session.LogDir(sessionName), "mcp.log"), sessionName, cfg.Log.Level, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.MCP.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.String("tools", strings.Join(unknown, ",")))
	}

	c, err := api.Dial(session.SocketPath(sessionName))
	if err != nil {
		logger.Error("connect to daemon", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	logger.Info("mcp server starting", zap.String("version", Version))
	if err := mcp.Run(c, cfg.MCP, Version); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}
