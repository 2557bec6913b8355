// cmd/smartstock-devserver/main.go
//
// A local SmartStock backend for development and demos. It serves the same
// /api routes as production from in-memory fixtures.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kingrea/smartstock/internal/config"
	"github.com/kingrea/smartstock/internal/devserver"
	"github.com/kingrea/smartstock/internal/logging"
)

func main() {
	homeFlag := flag.String("home", "", "state directory (defaults to $SMARTSTOCK_HOME or ~/.smartstock)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading configuration")
	fixtures := flag.String("fixtures", "", "fixture YAML file (overrides devserver.fixtures)")
	port := flag.Int("port", -1, "listen port (overrides devserver.port, 0 picks a free port)")
	hashPIN := flag.String("hash-pin", "", "print the pin_hash fixture value for a PIN and exit")
	flag.Parse()

	if *hashPIN != "" {
		hash, err := devserver.HashPIN(*hashPIN)
		if err != nil {
			die("%v", err)
		}
		fmt.Println(hash)
		return
	}

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

	settings := devserver.SettingsFromConfig(cfg)
	if *fixtures != "" {
		settings.Fixtures = *fixtures
	}
	if *port >= 0 {
		settings.Port = *port
	}
	fx, err := devserver.DefaultFixtures()
	if settings.Fixtures != "" {
		fx, err = devserver.LoadFixtures(settings.Fixtures)
	}
	if err != nil {
		die("%v", err)
	}

	logger, err := logging.New(cfg.LogsDir(), "devserver.log")
	if err != nil {
		die("open log: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devserver.NewServer(settings, devserver.NewShop(fx), devserver.WithLogger(logger))
	if err := srv.Start(ctx); err != nil {
		die("start: %v", err)
	}
	fmt.Printf("SmartStock dev server listening on %s (log: %s)\n", srv.BaseURL(), logger.Path())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		die("shutdown: %v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "smartstock-devserver: "+format+"\n", args...)
	os.Exit(1)
}
