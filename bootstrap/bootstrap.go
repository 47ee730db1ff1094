// Package bootstrap wires all dependencies into a runnable uploader.
package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tubegate/tubegate/adapters/clock"
	"github.com/tubegate/tubegate/adapters/idgen"
	"github.com/tubegate/tubegate/adapters/ledgerfile"
	"github.com/tubegate/tubegate/adapters/metrics"
	"github.com/tubegate/tubegate/adapters/sqlite"
	"github.com/tubegate/tubegate/adapters/youtube"
	"github.com/tubegate/tubegate/app"
	"github.com/tubegate/tubegate/config"
	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
	"github.com/tubegate/tubegate/ports"
	"github.com/tubegate/tubegate/web"
)

// App holds the wired application.
type App struct {
	Logger   zerolog.Logger
	Config   *config.Config
	DB       *sqlite.DB
	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	Limiter *app.RateLimiter
	Engine  *app.Engine
	Batch   *app.Batch
	History ports.HistoryStore
	Clock   ports.Clock
}

// Options tunes how the application is assembled.
type Options struct {
	// Transport overrides the upload transport (tests). When nil an
	// authenticated platform transport is built from the configured
	// credentials.
	Transport ports.ResumableTransport

	// Collections overrides the collection service (tests).
	Collections ports.CollectionService

	// Verifier overrides the post-upload status checker (tests).
	Verifier ports.VideoVerifier

	// Progress receives per-file transfer snapshots.
	Progress func(filename string, report transfer.Report)
}

// New wires the application from configuration.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := SetupLogger(cfg.Logging)

	a := &App{
		Logger: logger,
		Config: cfg,
		Clock:  clock.Real{},
	}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = metrics.NewWithRegistry(a.Registry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	db, err := sqlite.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	a.DB = db
	a.History = sqlite.NewHistoryStore(db)

	realClock := clock.Real{}
	limiter, err := app.NewRateLimiter(ctx,
		app.RateLimiterDeps{
			Store:   ledgerfile.New(cfg.Paths.LedgerFile),
			Clock:   realClock,
			Sleeper: realClock,
			Logger:  logger.With().Str("component", "limiter").Logger(),
			Metrics: a.Metrics,
		},
		app.RateLimiterConfig{
			DailyQuota:           cfg.API.DailyQuota,
			MaxRequestsPerMinute: cfg.API.MaxRequestsPerMinute,
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	a.Limiter = limiter

	transport := opts.Transport
	collections := opts.Collections
	verifier := opts.Verifier
	if transport == nil || collections == nil || verifier == nil {
		httpc, err := youtube.Client(ctx, cfg.Paths.CredentialsFile, cfg.Paths.TokenFile)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("build platform client: %w", err)
		}
		if transport == nil {
			transport = youtube.NewTransport(httpc, cfg.Upload.ChunkSize())
		}
		if collections == nil {
			collections = youtube.NewCollections(httpc)
		}
		if verifier == nil {
			verifier = youtube.NewVideos(httpc)
		}
	}

	a.Engine = app.NewEngine(
		app.EngineDeps{
			Transport: transport,
			Clock:     realClock,
			Sleeper:   realClock,
			Logger:    logger.With().Str("component", "engine").Logger(),
			Metrics:   a.Metrics,
		},
		app.EngineConfig{
			ChunkSize:  cfg.Upload.ChunkSize(),
			MaxRetries: cfg.Upload.MaxRetries,
			BaseDelay:  cfg.Upload.RetryBaseDelay,
		},
	)

	a.Batch = app.NewBatch(
		app.BatchDeps{
			Engine:      a.Engine,
			Limiter:     a.Limiter,
			History:     a.History,
			Collections: collections,
			Verifier:    verifier,
			IDs:         idgen.UUID{},
			Clock:       realClock,
			Logger:      logger.With().Str("component", "batch").Logger(),
			Metrics:     a.Metrics,
		},
		app.BatchConfig{
			CreateCollections: cfg.Collections.Create,
			CollectionPrivacy: video.Privacy(cfg.Collections.Privacy),
			VerifyUploads:     cfg.Upload.Verify,
			OnProgress:        opts.Progress,
		},
	)

	return a, nil
}

// Reconfigure pushes reloaded tunables into the running services.
// Fields listed in config.NonReloadableFields keep their startup
// values: the transport keeps its chunk size and the loggers their
// format and destinations.
func (a *App) Reconfigure(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	a.Limiter.Reconfigure(app.RateLimiterConfig{
		DailyQuota:           cfg.API.DailyQuota,
		MaxRequestsPerMinute: cfg.API.MaxRequestsPerMinute,
	})
	a.Engine.Reconfigure(app.EngineConfig{
		ChunkSize:  a.Config.Upload.ChunkSize(),
		MaxRetries: cfg.Upload.MaxRetries,
		BaseDelay:  cfg.Upload.RetryBaseDelay,
	})
	a.Batch.Reconfigure(app.BatchConfig{
		CreateCollections: cfg.Collections.Create,
		CollectionPrivacy: video.Privacy(cfg.Collections.Privacy),
		VerifyUploads:     cfg.Upload.Verify,
	})

	a.Logger.Info().Msg("runtime configuration applied")
}

// StatusHandler builds the status HTTP handler.
func (a *App) StatusHandler() http.Handler {
	h := web.NewHandler(web.Deps{
		Quota:       a.Limiter,
		History:     a.History,
		Clock:       a.Clock,
		Logger:      a.Logger.With().Str("component", "web").Logger(),
		Registry:    a.Registry,
		MetricsPath: a.Config.Metrics.Path,
	})
	return h.Routes()
}

// ServeStatus runs the status server until ctx is done.
func (a *App) ServeStatus(ctx context.Context) error {
	addr := net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port))
	return web.Serve(ctx, addr, a.StatusHandler(),
		a.Config.Server.ReadTimeout, a.Config.Server.WriteTimeout,
		a.Logger.With().Str("component", "web").Logger())
}

// Close persists the ledger and releases resources.
func (a *App) Close(ctx context.Context) error {
	if a.Limiter != nil {
		if err := a.Limiter.Close(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("ledger close error")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
			return err
		}
	}
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// SetupLogger builds the root logger from logging configuration.
func SetupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
