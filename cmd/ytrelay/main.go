// Command ytrelay watches YouTube channels and relays new videos to
// WeChat and Telegram recipients.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ytrelay/internal/app"
	"ytrelay/internal/config"
	"ytrelay/internal/download"
	"ytrelay/internal/messenger"
	"ytrelay/internal/storage"
	"ytrelay/internal/transcode"
	"ytrelay/internal/youtube"
)

const ledgerFilename = "downloaded_titles.txt"

func main() {
	command := "run"
	args := os.Args[1:]
	if len(os.Args) >= 2 && !strings.HasPrefix(os.Args[1], "-") {
		command = os.Args[1]
		args = os.Args[2:]
	}

	switch command {
	case "run":
		cmdRun(args)
	case "add-channel":
		cmdAddChannel(args)
	case "add-recipient":
		cmdAddRecipient(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytrelay - watch YouTube channels and relay new videos to chat recipients

Usage:
  ytrelay [run] [flags]            Run a check cycle (or a daemon with -daemon)
  ytrelay add-channel [flags]      Add a channel to the configuration
  ytrelay add-recipient [flags]    Add a WeChat or Telegram recipient
  ytrelay help                     Show this help message

Examples:
  ytrelay                                              # One cycle, default config
  ytrelay run -daemon                                  # Keep checking on the configured interval
  ytrelay run -skip-wechat -skip-telegram              # Download only, no delivery
  ytrelay add-channel -name "Example" -url https://www.youtube.com/@example
  ytrelay add-recipient -backend telegram -chat-id 123456789 -name "Alice"
  ytrelay add-recipient -backend wechat -name "Friend Name" -group

For help on a specific command: ytrelay <command> -h
`)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file")
	daemon := fs.Bool("daemon", false, "Keep running, checking on the configured interval")
	workers := fs.Int("workers", download.DefaultWorkers, "Concurrent download workers")
	skipWeChat := fs.Bool("skip-wechat", false, "Do not deliver to WeChat")
	skipTelegram := fs.Bool("skip-telegram", false, "Do not deliver to Telegram")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytrelay run [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg.App)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *daemon, *workers, *skipWeChat, *skipTelegram); err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupted, shutting down")
			return
		}
		logger.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, daemon bool, workers int, skipWeChat, skipTelegram bool) error {
	if err := os.MkdirAll(cfg.YouTube.DownloadDir, 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	ledger, err := storage.OpenLedger(filepath.Join(cfg.YouTube.DownloadDir, ledgerFilename))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()
	logger.Info("ledger loaded", slog.Int("entries", ledger.Len()))

	source := youtube.NewSource(youtube.NewYtdlpLister(), logger)

	fetcher := download.NewYtdlpFetcher(
		cfg.YouTube.DownloadDir,
		cfg.YouTube.PreferredResolution,
		cfg.YouTube.ConvertToMP3,
		logger)

	var transcoder transcode.Transcoder
	if cfg.YouTube.ConvertToMP3 {
		transcoder = transcode.NewFFmpeg(logger)
	}
	pool := download.NewPool(fetcher, transcoder, cfg.YouTube.KeepVideoAfterConversion, workers, logger)

	routes, cleanup := buildRoutes(cfg, logger, skipWeChat, skipTelegram)
	defer cleanup()
	dispatcher := messenger.NewDispatcher(routes, logger)

	a := app.New(cfg.YouTube.Channels, source, pool, dispatcher, ledger, logger)

	if daemon {
		interval := time.Duration(cfg.App.CheckIntervalHours) * time.Hour
		return a.RunDaemon(ctx, interval)
	}
	_, err = a.RunOnce(ctx)
	return err
}

// buildRoutes logs in to the enabled backends. A backend that fails to
// initialize is skipped with a warning so the run degrades to the
// remaining backends, or to download-only when none are left.
func buildRoutes(cfg *config.Config, logger *slog.Logger, skipWeChat, skipTelegram bool) ([]messenger.Route, func()) {
	var routes []messenger.Route
	var closers []func()

	if !skipWeChat && len(cfg.WeChat.Recipients) > 0 {
		wc, err := messenger.NewWeChat(cfg.WeChat.CachePath, cfg.WeChat.Recipients, logger)
		if err != nil {
			logger.Warn("wechat unavailable, skipping", slog.Any("error", err))
		} else {
			routes = append(routes, messenger.Route{
				Backend:     wc,
				Template:    templateOrDefault(cfg.WeChat.MessageTemplate),
				SendMessage: cfg.WeChat.SendMessageWithVideo,
			})
			closers = append(closers, func() { wc.Close() })
		}
	}

	if !skipTelegram && cfg.Telegram.BotToken != "" && len(cfg.Telegram.Recipients) > 0 {
		tg, err := messenger.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.Recipients, logger)
		if err != nil {
			logger.Warn("telegram unavailable, skipping", slog.Any("error", err))
		} else {
			routes = append(routes, messenger.Route{
				Backend:     tg,
				Template:    templateOrDefault(cfg.Telegram.MessageTemplate),
				SendMessage: cfg.Telegram.SendMessageWithVideo,
			})
		}
	}

	if len(routes) == 0 {
		logger.Info("no messaging backends enabled, running download-only")
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return routes, cleanup
}

func templateOrDefault(template string) string {
	if template == "" {
		return config.DefaultMessageTemplate
	}
	return template
}

// newLogger builds the process logger, teeing to the configured log file
// when one is set.
func newLogger(cfg config.AppConfig) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closeLog := func() {}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})
	return slog.New(handler), closeLog, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func cmdAddChannel(args []string) {
	fs := flag.NewFlagSet("add-channel", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file")
	name := fs.String("name", "", "Channel display name")
	url := fs.String("url", "", "Channel URL (required)")
	days := fs.Uint("days", 7, "How many days back to check")
	max := fs.Uint("max", 3, "Maximum videos per cycle")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytrelay add-channel [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if *url == "" {
		fmt.Fprintf(os.Stderr, "Error: missing -url\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.AddChannel(*name, *url, *days, *max); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Save(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Added channel %s\n", *url)
}

func cmdAddRecipient(args []string) {
	fs := flag.NewFlagSet("add-recipient", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file")
	backend := fs.String("backend", "", "Backend: wechat or telegram (required)")
	name := fs.String("name", "", "Recipient display name")
	group := fs.Bool("group", false, "WeChat recipient is a group chat")
	chatID := fs.String("chat-id", "", "Telegram chat ID")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytrelay add-recipient [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	switch *backend {
	case "wechat":
		if *name == "" {
			fmt.Fprintf(os.Stderr, "Error: missing -name\n")
			os.Exit(1)
		}
		err = cfg.AddWeChatRecipient(*name, *group)
	case "telegram":
		if *chatID == "" {
			fmt.Fprintf(os.Stderr, "Error: missing -chat-id\n")
			os.Exit(1)
		}
		err = cfg.AddTelegramRecipient(*chatID, *name)
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid -backend value %q (use wechat or telegram)\n", *backend)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Save(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Added %s recipient\n", *backend)
}
