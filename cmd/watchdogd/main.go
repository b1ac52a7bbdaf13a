// Command watchdogd watches the paths listed in its YAML configuration,
// records every detected change in a journal (SQLite or PostgreSQL), and
// serves a read-only status API. It shuts down gracefully on SIGTERM or
// SIGINT, stopping every watch before closing the journal.
package main

import (
	"context"
	"crypto/rsa"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	watchdog "github.com/simongeilfus/Watchdog"
	"github.com/simongeilfus/Watchdog/internal/config"
	"github.com/simongeilfus/Watchdog/internal/journal"
	"github.com/simongeilfus/Watchdog/internal/server"
)

// journalRetention is how long change events are kept before the hourly
// prune pass removes them.
const journalRetention = 7 * 24 * time.Hour

func main() {
	configPath := flag.String("config", "/etc/watchdogd/config.yaml", "path to the watchdogd YAML configuration file")
	flag.Parse()

	// Load and validate configuration.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watchdogd: %v\n", err)
		os.Exit(1)
	}

	// Initialise structured slog logger from config log level.
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("config_path", *configPath),
		slog.String("log_level", cfg.LogLevel),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.Duration("poll_interval", cfg.PollInterval.Std()),
		slog.String("journal_driver", cfg.Journal.Driver),
		slog.Int("watches", len(cfg.Watches)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the change journal.
	jnl, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		logger.Error("failed to open journal", slog.Any("error", err))
		os.Exit(1)
	}

	// Create the watch registry.
	dog := watchdog.New(watchdog.Options{
		PollInterval: cfg.PollInterval.Std(),
		Logger:       logger,
		AssetRoot:    cfg.AssetRoot,
		OnError: func(path string, err error) {
			logger.Warn("watch poll error", slog.String("path", path), slog.Any("error", err))
		},
	})

	// Register every configured watch with a callback that journals the
	// change.
	for _, spec := range cfg.Watches {
		spec := spec
		cb := func(changed string) {
			recordCtx, recordCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer recordCancel()

			c := journal.Change{
				WatchName:  spec.Name,
				WatchPath:  spec.Path,
				Path:       changed,
				DetectedAt: time.Now().UTC(),
			}
			if err := jnl.Record(recordCtx, c); err != nil {
				logger.Error("failed to journal change",
					slog.String("watch", spec.Name),
					slog.Any("error", err),
				)
				return
			}
			logger.Info("change detected",
				slog.String("watch", spec.Name),
				slog.String("path", changed),
			)
		}

		if filepath.IsAbs(spec.Path) {
			err = dog.Watch(spec.Path, cb)
		} else {
			err = dog.WatchAsset(spec.Path, cb)
		}
		if err != nil {
			logger.Error("failed to register watch",
				slog.String("watch", spec.Name),
				slog.String("path", spec.Path),
				slog.Any("error", err),
			)
			dog.UnwatchAll()
			_ = jnl.Close(ctx)
			os.Exit(1)
		}
	}

	// Hourly journal retention pass.
	go pruneLoop(ctx, jnl, logger)

	// Status API.
	pubKey, err := loadPublicKey(cfg.Auth.PublicKeyPath)
	if err != nil {
		logger.Error("failed to load auth public key", slog.Any("error", err))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewRouter(server.NewServer(dog, jnl, logger), pubKey),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("status api listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("status api error", slog.Any("error", err))
		}
	}()

	// Block until SIGTERM or SIGINT.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	// Graceful shutdown: stop all watches first so no callback races the
	// closing journal, then the HTTP server, then the journal itself.
	dog.UnwatchAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status api shutdown error", slog.Any("error", err))
	}
	if err := jnl.Close(shutdownCtx); err != nil {
		logger.Warn("journal close error", slog.Any("error", err))
	}

	logger.Info("watchdogd exited cleanly")
}

// openJournal constructs the configured journal backend.
func openJournal(ctx context.Context, cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Driver {
	case "sqlite":
		return journal.OpenSQLite(cfg.DSN)
	case "postgres":
		return journal.OpenPostgres(ctx, cfg.DSN, 0, 0)
	default:
		// Unreachable: config validation rejects unknown drivers.
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

// pruneLoop removes journal entries older than journalRetention once an hour
// until ctx is cancelled.
func pruneLoop(ctx context.Context, jnl journal.Journal, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := jnl.Prune(ctx, time.Now().Add(-journalRetention))
			if err != nil {
				logger.Warn("journal prune error", slog.Any("error", err))
				continue
			}
			if n > 0 {
				logger.Info("journal pruned", slog.Int64("removed", n))
			}
		}
	}
}

// loadPublicKey reads and parses the PEM public key at path. An empty path
// disables authentication and returns (nil, nil).
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return server.ParseRSAPublicKey(data)
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
