package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tubegate/tubegate/bootstrap"
	"github.com/tubegate/tubegate/config"
	"github.com/tubegate/tubegate/domain/video"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the videos directory and upload new files as they appear",
	Long: `Run continuously: watch the videos directory for new video files and
upload each batch as it settles. The config file is watched too, so
quota and retry tunables apply without a restart.

When the status server is enabled it exposes:
  /healthz   - liveness
  /status    - current quota ledger
  /history   - recent upload outcomes
  /metrics   - Prometheus metrics

Examples:
  tubegate watch
  tubegate watch --debounce 30s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 10*time.Second, "settle time after the last file change before a batch starts")
}

func runWatch(cmd *cobra.Command, args []string) error {
	holder, err := config.NewHolder(cfgFile, bootstrap.SetupLogger(config.LoggingConfig{Level: "info", Format: "console"}))
	if err != nil {
		// Fall back to env-only config; hot reload needs a file.
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}
		return watchLoop(cfg, nil)
	}

	if err := holder.WatchFile(); err != nil {
		return err
	}
	holder.WatchSignals()
	defer holder.Stop()

	return watchLoop(holder.Get(), holder)
}

func watchLoop(cfg *config.Config, holder *config.Holder) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, cfg, bootstrap.Options{Progress: printProgress})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer a.Close(context.Background())

	// Push config edits and SIGHUP reloads into the running services.
	if holder != nil {
		holder.OnChange(a.Reconfigure)
	}

	if cfg.Server.Enabled {
		go func() {
			if err := a.ServeStatus(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Paths.VideosDir); err != nil {
		return fmt.Errorf("watch videos directory: %w", err)
	}
	a.Logger.Info().Str("dir", cfg.Paths.VideosDir).Msg("watching for new videos")

	// Process whatever is already there before waiting for events.
	if summary, err := runBatch(ctx, a, currentConfig(cfg, holder)); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		a.Logger.Error().Err(err).Msg("initial batch failed")
	} else if summary.Total > 0 {
		printSummary(summary)
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !video.SupportedExtension(filepath.Base(event.Name)) {
				continue
			}
			// Debounce: big files arrive over many write events.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			summary, err := runBatch(ctx, a, currentConfig(cfg, holder))
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.Logger.Error().Err(err).Msg("batch failed")
				continue
			}
			printSummary(summary)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.Logger.Error().Err(err).Msg("file watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

// currentConfig prefers the hot-reloaded config when a holder exists.
func currentConfig(cfg *config.Config, holder *config.Holder) *config.Config {
	if holder != nil {
		return holder.Get()
	}
	return cfg
}
