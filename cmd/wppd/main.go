package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wppilot/internal/config"
	"github.com/matheus3301/wppilot/internal/daemon"
	"github.com/matheus3301/wppilot/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default ~/.wppilot/config.toml)")
	headless := flag.Bool("headless", false, "run the browser without a window")
	flag.Parse()

	sessionName, err := session.Select(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	params := daemon.Params{SessionName: sessionName}
	if *configFlag != "" || *headless {
		path := *configFlag
		if path == "" {
			path = session.ConfigPath()
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
			os.Exit(1)
		}
		if *headless {
			cfg.Browser.Headless = true
		}
		params.Config = cfg
	}

	app := fx.New(
		daemon.Module(params),
		fx.NopLogger,
	)
	app.Run()
}
