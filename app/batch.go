package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tubegate/tubegate/adapters/metrics"
	"github.com/tubegate/tubegate/domain/quota"
	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
	"github.com/tubegate/tubegate/ports"
)

// BatchConfig carries the orchestration tunables.
type BatchConfig struct {
	// CreateCollections allows missing collections to be created on the
	// remote platform instead of failing the attach.
	CreateCollections bool

	// CollectionPrivacy is applied to newly created collections.
	CollectionPrivacy video.Privacy

	// VerifyUploads checks the remote processing status of each video
	// after a successful transfer.
	VerifyUploads bool

	// OnProgress, when set, receives per-file transfer snapshots.
	OnProgress func(filename string, report transfer.Report)
}

// BatchDeps carries the dependencies for a Batch.
type BatchDeps struct {
	Engine      *Engine
	Limiter     *RateLimiter
	History     ports.HistoryStore
	Collections ports.CollectionService
	Verifier    ports.VideoVerifier // optional
	IDs         ports.IDGenerator
	Clock       ports.Clock
	Logger      zerolog.Logger
	Metrics     *metrics.Collector // optional
}

// Batch runs the per-file upload policy over a queue of files:
// history skip, validation, quota pre-flight, throttle wait, transfer,
// quota consumption, and the optional collection attach.
type Batch struct {
	engine      *Engine
	limiter     *RateLimiter
	history     ports.HistoryStore
	collections ports.CollectionService
	verifier    ports.VideoVerifier
	ids         ports.IDGenerator
	clock       ports.Clock
	log         zerolog.Logger
	metrics     *metrics.Collector

	mu  sync.RWMutex
	cfg BatchConfig
}

// NewBatch creates a batch orchestrator.
func NewBatch(deps BatchDeps, cfg BatchConfig) *Batch {
	return &Batch{
		engine:      deps.Engine,
		limiter:     deps.Limiter,
		history:     deps.History,
		collections: deps.Collections,
		verifier:    deps.Verifier,
		ids:         deps.IDs,
		clock:       deps.Clock,
		log:         deps.Logger,
		metrics:     deps.Metrics,
		cfg:         cfg,
	}
}

// Reconfigure applies new orchestration tunables. The progress callback
// is kept unless the new config carries one.
func (b *Batch) Reconfigure(cfg BatchConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cfg.OnProgress == nil {
		cfg.OnProgress = b.cfg.OnProgress
	}
	b.cfg = cfg
}

func (b *Batch) config() BatchConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Summary is the terminal report of one batch run.
type Summary struct {
	Total         int
	Succeeded     int
	Failed        int
	Skipped       int
	HaltedOnQuota bool
	Started       time.Time
	Finished      time.Time
	Outcomes      []video.Outcome
}

// ExitCode maps a summary onto a process exit code.
func (s Summary) ExitCode() int {
	if s.Failed > 0 || s.HaltedOnQuota {
		return 1
	}
	return 0
}

// MetadataFunc resolves upload metadata for a filename.
type MetadataFunc func(filename string) video.Metadata

// Run processes files in order. Quota exhaustion halts the whole run:
// the remaining budget is left for the next daily window rather than
// burned on uploads that cannot all fit. Per-file failures do not stop
// the batch. Context cancellation aborts between steps and mid-transfer.
func (b *Batch) Run(ctx context.Context, files []string, lookup MetadataFunc) (Summary, error) {
	sum := Summary{Total: len(files), Started: b.clock.Now()}
	if b.metrics != nil {
		b.metrics.BatchRuns.Inc()
	}
	b.log.Info().Int("count", len(files)).Msg("starting batch")

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			sum.Finished = b.clock.Now()
			return sum, err
		}

		filename := filepath.Base(path)
		log := b.log.With().
			Str("file", filename).
			Int("index", i+1).
			Int("count", len(files)).
			Logger()

		uploaded, err := b.history.IsUploaded(ctx, filename)
		if err != nil {
			log.Warn().Err(err).Msg("history lookup failed, treating as new")
		}
		if uploaded {
			log.Info().Msg("already uploaded, skipping")
			sum.Skipped++
			sum.Outcomes = append(sum.Outcomes, video.Outcome{
				Filename:   filename,
				Status:     video.OutcomeSkipped,
				Reason:     "already uploaded",
				FinishedAt: b.clock.Now(),
			})
			if b.metrics != nil {
				b.metrics.UploadsTotal.WithLabelValues(string(video.OutcomeSkipped)).Inc()
			}
			continue
		}

		meta := lookup(filename)

		if err := b.engine.ValidateFile(path); err != nil {
			log.Error().Err(err).Msg("file validation failed")
			b.recordFailure(ctx, &sum, filename, meta, err.Error())
			continue
		}
		if err := meta.Validate(); err != nil {
			log.Error().Err(err).Msg("metadata validation failed")
			b.recordFailure(ctx, &sum, filename, meta, err.Error())
			continue
		}

		// Pre-flight: the upload and any collection attach must fit in
		// the remaining budget together before any bytes move.
		ops := map[quota.Operation]int{quota.OpVideoUpload: 1}
		if meta.Collection != "" {
			ops[quota.OpCollectionInsert] = 1
		}
		if !b.limiter.CanPerformOperations(ops) {
			status := b.limiter.Status()
			log.Warn().
				Int("remaining", status.Remaining).
				Time("reset_time", status.ResetTime).
				Msg("insufficient quota, halting batch")
			sum.HaltedOnQuota = true
			if b.metrics != nil {
				b.metrics.BatchHaltedQuota.Inc()
			}
			break
		}

		if err := b.limiter.WaitForToken(ctx); err != nil {
			sum.Finished = b.clock.Now()
			return sum, err
		}

		cfg := b.config()
		var progress ports.ProgressFunc
		if cfg.OnProgress != nil {
			progress = func(r transfer.Report) { cfg.OnProgress(filename, r) }
		}

		videoID, err := b.engine.Upload(ctx, path, meta, progress)
		if err != nil {
			if ctx.Err() != nil {
				sum.Finished = b.clock.Now()
				return sum, ctx.Err()
			}
			log.Error().Err(err).Msg("upload failed")
			b.recordFailure(ctx, &sum, filename, meta, err.Error())
			continue
		}

		// Quota is consumed only for uploads the platform accepted.
		b.limiter.ConsumeQuota(ctx, quota.OpVideoUpload, meta.Title)

		if cfg.VerifyUploads {
			b.verifyUpload(ctx, log, videoID)
		}

		collectionID := ""
		if meta.Collection != "" {
			collectionID = b.attachToCollection(ctx, log, cfg, meta, videoID)
		}

		sum.Succeeded++
		outcome := video.Outcome{
			Filename:     filename,
			Title:        meta.Title,
			VideoID:      videoID,
			CollectionID: collectionID,
			Status:       video.OutcomeSuccess,
			FinishedAt:   b.clock.Now(),
		}
		sum.Outcomes = append(sum.Outcomes, outcome)
		b.persistOutcome(ctx, log, outcome)
		if b.metrics != nil {
			b.metrics.UploadsTotal.WithLabelValues(string(video.OutcomeSuccess)).Inc()
		}
		log.Info().Str("video_id", videoID).Msg("file processed")
	}

	sum.Finished = b.clock.Now()
	b.log.Info().
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Bool("halted_on_quota", sum.HaltedOnQuota).
		Msg("batch finished")
	return sum, nil
}

// verifyUpload asks the platform for the processing status of a video
// that just finished transferring. Purely informational: a failed or
// unflattering check never demotes the upload.
func (b *Batch) verifyUpload(ctx context.Context, log zerolog.Logger, videoID string) {
	if b.verifier == nil {
		return
	}
	if err := b.limiter.WaitForToken(ctx); err != nil {
		log.Warn().Err(err).Msg("interrupted before upload verification")
		return
	}
	status, err := b.verifier.VideoStatus(ctx, videoID)
	if err != nil {
		log.Warn().Err(err).Str("video_id", videoID).Msg("upload verification failed")
		return
	}
	b.limiter.ConsumeQuota(ctx, quota.OpVideoList, videoID)
	log.Info().Str("video_id", videoID).Str("upload_status", status).Msg("upload verified")
}

// attachToCollection resolves the named collection and inserts the
// video. Attach failures are logged and reported through the empty
// return value; the upload itself stays successful.
func (b *Batch) attachToCollection(ctx context.Context, log zerolog.Logger, cfg BatchConfig, meta video.Metadata, videoID string) string {
	if err := b.limiter.WaitForToken(ctx); err != nil {
		log.Warn().Err(err).Msg("interrupted before collection lookup")
		return ""
	}
	id, created, err := b.collections.EnsureCollection(
		ctx, meta.Collection, "Videos in "+meta.Collection, cfg.CollectionPrivacy, cfg.CreateCollections,
	)
	if err != nil {
		log.Warn().Err(err).Str("collection", meta.Collection).Msg("failed to resolve collection")
		return ""
	}
	// The resolve always hits the list endpoint.
	b.limiter.ConsumeQuota(ctx, quota.OpCollectionList, meta.Collection)
	if created {
		log.Info().Str("collection", meta.Collection).Str("collection_id", id).Msg("collection created")
		b.limiter.ConsumeQuota(ctx, quota.OpCollectionCreate, meta.Collection)
	}

	if err := b.limiter.WaitForToken(ctx); err != nil {
		log.Warn().Err(err).Msg("interrupted before collection attach")
		return ""
	}
	if err := b.collections.AddVideo(ctx, id, videoID); err != nil {
		log.Warn().Err(err).Str("collection", meta.Collection).Msg("failed to add video to collection")
		return ""
	}

	b.limiter.ConsumeQuota(ctx, quota.OpCollectionInsert, meta.Collection)
	return id
}

func (b *Batch) recordFailure(ctx context.Context, sum *Summary, filename string, meta video.Metadata, reason string) {
	sum.Failed++
	outcome := video.Outcome{
		Filename:   filename,
		Title:      meta.Title,
		Status:     video.OutcomeFailed,
		Reason:     reason,
		FinishedAt: b.clock.Now(),
	}
	sum.Outcomes = append(sum.Outcomes, outcome)
	b.persistOutcome(ctx, b.log.With().Str("file", filename).Logger(), outcome)
	if b.metrics != nil {
		b.metrics.UploadsTotal.WithLabelValues(string(video.OutcomeFailed)).Inc()
	}
}

// persistOutcome writes the outcome to the history store. History
// failures never fail the batch.
func (b *Batch) persistOutcome(ctx context.Context, log zerolog.Logger, outcome video.Outcome) {
	rec := ports.HistoryRecord{
		ID:           b.ids.New(),
		Filename:     outcome.Filename,
		VideoID:      outcome.VideoID,
		Title:        outcome.Title,
		CollectionID: outcome.CollectionID,
		Status:       outcome.Status,
		Reason:       outcome.Reason,
		UploadedAt:   outcome.FinishedAt,
	}
	if err := b.history.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to record upload history")
	}
}
