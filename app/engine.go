package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/tubegate/tubegate/adapters/metrics"
	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
	"github.com/tubegate/tubegate/ports"
)

// maxRetryDelay caps the exponential backoff between chunk retries.
const maxRetryDelay = 5 * time.Minute

// EngineConfig carries the transfer tunables.
type EngineConfig struct {
	ChunkSize  int64
	MaxRetries int
	BaseDelay  time.Duration
}

// EngineDeps carries the dependencies for an Engine.
type EngineDeps struct {
	Transport ports.ResumableTransport
	Clock     ports.Clock
	Sleeper   ports.Sleeper
	Logger    zerolog.Logger
	Metrics   *metrics.Collector // optional
}

// Engine drives one chunked resumable upload at a time: validation,
// the chunk loop, transient-failure retry with exponential backoff,
// and progress reporting.
type Engine struct {
	transport ports.ResumableTransport
	clock     ports.Clock
	sleeper   ports.Sleeper
	log       zerolog.Logger
	metrics   *metrics.Collector

	mu  sync.RWMutex
	cfg EngineConfig
}

// NewEngine creates a transfer engine.
func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	return &Engine{
		transport: deps.Transport,
		clock:     deps.Clock,
		sleeper:   deps.Sleeper,
		log:       deps.Logger,
		metrics:   deps.Metrics,
		cfg:       cfg,
	}
}

// Reconfigure applies new transfer tunables. Uploads already in flight
// keep the snapshot they started with.
func (e *Engine) Reconfigure(cfg EngineConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

func (e *Engine) config() EngineConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// ValidateFile checks that path points at an uploadable video file.
// Runs before any quota or throttle state is touched.
func (e *Engine) ValidateFile(path string) error {
	_, err := e.statFile(path)
	return err
}

func (e *Engine) statFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", video.ErrFileNotFound, path)
		}
		return 0, fmt.Errorf("stat video file: %w", err)
	}
	if err := video.CheckFile(info.Name(), info.Size(), info.Mode().IsRegular()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Upload transfers the file at path and returns the new video id.
// Transient failures are retried up to MaxRetries times with
// exponentially growing delays, resuming from the server-acknowledged
// offset rather than the beginning. Fatal failures and context
// cancellation abort immediately.
func (e *Engine) Upload(ctx context.Context, path string, meta video.Metadata, progress ports.ProgressFunc) (string, error) {
	size, err := e.statFile(path)
	if err != nil {
		return "", err
	}

	sess, err := e.transport.Begin(ctx, path, size, meta)
	if err != nil {
		return "", fmt.Errorf("begin upload session: %w", err)
	}
	defer sess.Close()

	cfg := e.config()
	log := e.log.With().Str("file", path).Int64("size", size).Logger()
	log.Info().Int64("chunk_size", cfg.ChunkSize).Msg("starting upload")

	state := transfer.Session{
		FilePath:   path,
		TotalBytes: size,
		ChunkSize:  cfg.ChunkSize,
		Status:     transfer.StatusInProgress,
	}
	start := e.clock.Now()
	bo := newBackoff(cfg.BaseDelay)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		att := sess.SendNextChunk(ctx)
		switch att.Kind {
		case transfer.AttemptProgress:
			state.Status = transfer.StatusInProgress
			state.BytesSent = sess.Offset()
			e.notify(progress, transfer.ProgressReport(state.BytesSent, size, start, e.clock.Now()))

		case transfer.AttemptCompleted:
			if att.ResourceID == "" {
				return "", errors.New("upload completed but no video id was returned")
			}
			state.Status = transfer.StatusCompleted
			state.BytesSent = size
			elapsed := e.clock.Now().Sub(start)
			e.notify(progress, transfer.ProgressReport(size, size, start, e.clock.Now()))
			if e.metrics != nil {
				e.metrics.UploadBytes.Add(float64(size))
				e.metrics.UploadDuration.Observe(elapsed.Seconds())
			}
			log.Info().
				Str("video_id", att.ResourceID).
				Dur("elapsed", elapsed).
				Msg("upload completed")
			return att.ResourceID, nil

		case transfer.AttemptRetryable:
			state.Attempts++
			if state.Attempts > cfg.MaxRetries {
				state.Status = transfer.StatusFailed
				return "", fmt.Errorf("upload failed after %d retries: %w", cfg.MaxRetries, att.Err)
			}
			state.Status = transfer.StatusRetrying
			delay := bo.NextBackOff()
			log.Warn().
				Err(att.Err).
				Int("attempt", state.Attempts).
				Int("max_retries", cfg.MaxRetries).
				Dur("backoff", delay).
				Msg("transient upload failure, retrying")
			if e.metrics != nil {
				e.metrics.ChunkRetries.WithLabelValues(retryReason(att.Err)).Inc()
			}
			if err := e.sleeper.Sleep(ctx, delay); err != nil {
				return "", err
			}

		case transfer.AttemptFatal:
			state.Status = transfer.StatusFailed
			log.Error().Err(att.Err).Msg("upload failed")
			return "", att.Err
		}
	}
}

// newBackoff builds the retry schedule: baseDelay doubled per failed
// attempt, capped at maxRetryDelay. Randomization is disabled so the
// Nth retry always waits baseDelay * 2^N.
func newBackoff(baseDelay time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * baseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = maxRetryDelay
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// notify invokes the progress callback, swallowing panics so a broken
// observer can never abort a transfer.
func (e *Engine) notify(progress ports.ProgressFunc, report transfer.Report) {
	if progress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Debug().Interface("panic", rec).Msg("progress callback panicked")
		}
	}()
	progress(report)
}

// retryReason labels a retryable failure for metrics.
func retryReason(err error) string {
	var se *transfer.StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.Code)
	}
	return "connection"
}
