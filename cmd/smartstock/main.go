// cmd/smartstock/main.go
//
// This is the entry point for the SmartStock dashboard.
//
// Flow:
// 1. Load .env files and resolve the state directory
// 2. Create config.yaml and logs/ on first run
// 3. Launch the TUI (login screen, or the dashboard with a stored session)

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/smartstock/internal/config"
	"github.com/kingrea/smartstock/internal/tui"
)

func main() {
	homeFlag := flag.String("home", "", "state directory (defaults to $SMARTSTOCK_HOME or ~/.smartstock)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading configuration")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		die("%v", err)
	}
	home := *homeFlag
	if home == "" {
		var err error
		home, err = config.ResolveHome()
		if err != nil {
			die("%v", err)
		}
	}
	home, err := filepath.Abs(home)
	if err != nil {
		die("resolve home: %v", err)
	}
	if err := config.Init(home); err != nil {
		die("init %s: %v", home, err)
	}
	cfg, err := config.Load(home)
	if err != nil {
		die("%v", err)
	}

	app, err := tui.NewApp(cfg)
	if err != nil {
		die("%v", err)
	}
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		app.Close()
		die("run dashboard: %v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "smartstock: "+format+"\n", args...)
	os.Exit(1)
}
