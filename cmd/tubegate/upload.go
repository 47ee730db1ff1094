package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tubegate/tubegate/adapters/clock"
	"github.com/tubegate/tubegate/adapters/ledgerfile"
	"github.com/tubegate/tubegate/adapters/sqlite"
	"github.com/tubegate/tubegate/app"
	"github.com/tubegate/tubegate/bootstrap"
	"github.com/tubegate/tubegate/config"
	"github.com/tubegate/tubegate/domain/quota"
	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
)

var (
	uploadShowProgress bool
	uploadDryRun       bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload all pending videos in the videos directory",
	Long: `Scan the configured videos directory and upload every video file
that has not already been uploaded.

Each file goes through the full pipeline: duplicate check, validation,
quota pre-flight, rate limiting, chunked resumable upload, and the
optional collection attach. The batch halts when the daily quota cannot
cover the next upload; remaining files are picked up after the quota
resets.

Environment variables (for containerized runs):
  TUBEGATE_VIDEOS_DIR        - Directory scanned for video files (required)
  TUBEGATE_DAILY_QUOTA       - Daily quota units (default: 10000)
  TUBEGATE_MAX_RPM           - Max requests per minute (default: 60)
  TUBEGATE_CREDENTIALS_FILE  - OAuth client secrets path
  TUBEGATE_TOKEN_FILE        - OAuth token cache path
  TUBEGATE_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  tubegate upload
  tubegate upload --dry-run
  tubegate upload --config /etc/tubegate/config.yaml
  TUBEGATE_VIDEOS_DIR=/videos tubegate upload`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().BoolVar(&uploadShowProgress, "progress", true, "print per-file transfer progress")
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "report what would be uploaded without transferring anything")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if uploadDryRun {
		return runDryRun(ctx, cfg)
	}

	opts := bootstrap.Options{}
	if uploadShowProgress {
		opts.Progress = printProgress
	}

	a, err := bootstrap.New(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	summary, runErr := runBatch(ctx, a, cfg)

	// Close before any exit path: the final ledger persist and the
	// history database close must not be skipped by os.Exit.
	a.Close(context.Background())

	if runErr != nil {
		return runErr
	}
	printSummary(summary)
	if code := summary.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}

// runBatch scans the videos directory, resolves metadata, and runs one
// batch over the result.
func runBatch(ctx context.Context, a *bootstrap.App, cfg *config.Config) (app.Summary, error) {
	files, err := app.ScanDir(cfg.Paths.VideosDir)
	if err != nil {
		return app.Summary{}, err
	}
	if len(files) == 0 {
		fmt.Println("No video files found.")
		return app.Summary{}, nil
	}

	catalog, err := app.LoadCatalog(cfg.Paths.MetadataFile)
	if err != nil {
		return app.Summary{}, err
	}

	return a.Batch.Run(ctx, files, catalog.For)
}

// runDryRun reports the plan for the next batch without opening an API
// session: which files would upload, which would be skipped, and whether
// the remaining quota covers them.
func runDryRun(ctx context.Context, cfg *config.Config) error {
	files, err := app.ScanDir(cfg.Paths.VideosDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No video files found.")
		return nil
	}

	catalog, err := app.LoadCatalog(cfg.Paths.MetadataFile)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return fmt.Errorf("error opening history: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("error migrating history: %w", err)
	}
	history := sqlite.NewHistoryStore(db)

	now := clock.Real{}.Now()
	state, found, err := ledgerfile.New(cfg.Paths.LedgerFile).Load(ctx)
	if err != nil || !found {
		state = quota.NewState(cfg.API.DailyQuota, now)
	} else {
		state, _ = quota.Rollover(state, now)
	}

	planned, cost := 0, 0
	for _, path := range files {
		filename := filepath.Base(path)

		uploaded, err := history.IsUploaded(ctx, filename)
		if err == nil && uploaded {
			fmt.Printf("  skip    %s (already uploaded)\n", filename)
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			fmt.Printf("  invalid %s (%v)\n", filename, err)
			continue
		}
		if err := video.CheckFile(info.Name(), info.Size(), info.Mode().IsRegular()); err != nil {
			fmt.Printf("  invalid %s (%v)\n", filename, err)
			continue
		}
		meta := catalog.For(filename)
		if err := meta.Validate(); err != nil {
			fmt.Printf("  invalid %s (%v)\n", filename, err)
			continue
		}

		fileCost := quota.Cost(quota.OpVideoUpload)
		if meta.Collection != "" {
			fileCost += quota.Cost(quota.OpCollectionList) + quota.Cost(quota.OpCollectionInsert)
		}
		planned++
		cost += fileCost
		fmt.Printf("  upload  %s (%d units)\n", filename, fileCost)
	}

	s := quota.Summarize(state)
	fmt.Println()
	fmt.Printf("Planned uploads: %d, estimated cost %d units, %d units remaining today.\n",
		planned, cost, s.Remaining)
	if cost > s.Remaining {
		fmt.Println("The batch would halt on quota before finishing.")
	}
	return nil
}

func printProgress(filename string, r transfer.Report) {
	fmt.Printf("\r%s: %5.1f%%  %d bytes  %.0f B/s", filename, r.Fraction*100, r.BytesSent, r.Throughput)
	if r.Fraction >= 1 {
		fmt.Println()
	}
}

func printSummary(s app.Summary) {
	fmt.Println()
	fmt.Printf("Batch finished in %s\n", s.Finished.Sub(s.Started).Round(time.Second))
	fmt.Printf("  total:     %d\n", s.Total)
	fmt.Printf("  succeeded: %d\n", s.Succeeded)
	fmt.Printf("  failed:    %d\n", s.Failed)
	fmt.Printf("  skipped:   %d\n", s.Skipped)
	if s.HaltedOnQuota {
		fmt.Println()
		fmt.Println("Halted: insufficient quota for the next upload. Remaining files")
		fmt.Println("will be picked up after the daily quota resets.")
	}
	for _, o := range s.Outcomes {
		if o.Status == video.OutcomeFailed {
			fmt.Printf("  failed: %s (%s)\n", o.Filename, o.Reason)
		}
	}
}
