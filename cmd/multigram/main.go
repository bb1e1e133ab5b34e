package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/config"
	"github.com/danhigham/multigram/internal/logging"
	"github.com/danhigham/multigram/internal/prefs"
	"github.com/danhigham/multigram/internal/sessions"
	"github.com/danhigham/multigram/internal/telegram"
	"github.com/danhigham/multigram/internal/ui"
)

var version = "dev"

const closeTimeout = 5 * time.Second

type options struct {
	version    bool
	logLevel   string
	testDC     bool
	configPath string
}

func parseFlags() options {
	var opts options
	flag.BoolVar(&opts.version, "version", false, "print the version and exit")
	flag.BoolVar(&opts.version, "v", false, "shorthand for --version")
	flag.StringVar(&opts.logLevel, "log-level", "", "error, warn, info, debug or trace (default warn)")
	flag.StringVar(&opts.logLevel, "l", "", "shorthand for --log-level")
	flag.BoolVar(&opts.testDC, "test-dc", false, "log new accounts in on the test data center")
	flag.BoolVar(&opts.testDC, "t", false, "shorthand for --test-dc")
	flag.StringVar(&opts.configPath, "config", filepath.Join(config.Dir(), "config.yaml"), "path of the config file")
	flag.StringVar(&opts.configPath, "c", filepath.Join(config.Dir(), "config.yaml"), "shorthand for --config")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()
	if opts.version {
		fmt.Println("multigram", version)
		return
	}

	// Load config
	cfgDir := filepath.Dir(opts.configPath)
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", opts.configPath, err)
		fmt.Fprintf(os.Stderr, "\nCreate the config file with:\n")
		fmt.Fprintf(os.Stderr, "  mkdir -p %s\n", cfgDir)
		fmt.Fprintf(os.Stderr, "  cat > %s << 'EOF'\n", opts.configPath)
		fmt.Fprintf(os.Stderr, "telegram:\n  api_id: YOUR_API_ID\n  api_hash: \"YOUR_API_HASH\"\nEOF\n")
		fmt.Fprintf(os.Stderr, "\nGet API credentials from https://my.telegram.org\n")
		os.Exit(1)
	}
	if opts.logLevel == "" {
		opts.logLevel = cfg.LogLevel
	}
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(2)
	}
	os.Setenv(logging.EnvVar, logging.LevelName(level))

	// Setup logging to file
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", cfgDir, err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{
		Path:  filepath.Join(cfgDir, "multigram.log"),
		Level: level,
	})
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	driver := telegram.NewGotdDriver(ctx, logger.Named("telegram"))
	clients := client.NewManager(ctx, driver, client.Options{
		DataDir:    cfg.DataDir,
		TestDC:     opts.testDC,
		APIID:      cfg.Telegram.APIID,
		APIHash:    cfg.Telegram.APIHash,
		AppVersion: version,
		LogLevel:   level,
	}, logger.Named("clients"))
	if err := clients.Start(); err != nil {
		logger.Fatal("Failed to start clients", zap.String("data_dir", cfg.DataDir), zap.Error(err))
	}

	store, err := prefs.Open(filepath.Join(cfgDir, prefs.FileName), cfg.AppID)
	if err != nil {
		logger.Fatal("Failed to open preferences", zap.Error(err))
	}
	defer store.Close()

	app := ui.NewApp(ctx, clients, logger.Named("ui"))
	sm := sessions.New(ctx, clients, store, app, logger.Named("sessions"))
	defer sm.Stop()
	app.SetSessions(sm)

	go func() {
		if err := clients.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Update loop stopped", zap.Error(err))
		}
	}()

	// Run TUI (blocks until quit)
	runErr := app.Run()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
	if err := sm.CloseClients(closeCtx); err != nil {
		logger.Warn("Failed to close all clients", zap.Error(err))
	}
	closeCancel()
	cancel()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
