// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/tubegate/tubegate/domain/quota"
	"github.com/tubegate/tubegate/domain/transfer"
	"github.com/tubegate/tubegate/domain/video"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Sleeper abstracts blocking waits so throttle pauses and retry backoff
// can be cancelled and observed in tests.
type Sleeper interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in
	// the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// LedgerStore persists the daily quota ledger between runs.
type LedgerStore interface {
	// Load retrieves the stored ledger. found is false when no ledger
	// has been persisted yet.
	Load(ctx context.Context) (state quota.State, found bool, err error)

	// Save writes the full ledger document.
	Save(ctx context.Context, state quota.State) error
}

// HistoryRecord is one completed processing attempt for a file.
type HistoryRecord struct {
	ID           string
	Filename     string
	VideoID      string
	Title        string
	CollectionID string
	Status       video.OutcomeStatus
	Reason       string
	UploadedAt   time.Time
}

// HistoryStore persists upload outcomes to suppress duplicate uploads.
type HistoryStore interface {
	// IsUploaded reports whether filename has a successful upload on record.
	IsUploaded(ctx context.Context, filename string) (bool, error)

	// Record appends an outcome.
	Record(ctx context.Context, rec HistoryRecord) error

	// Recent returns the most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]HistoryRecord, error)

	// CountByStatus returns record counts grouped by outcome status.
	CountByStatus(ctx context.Context) (map[video.OutcomeStatus]int, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// ResumableSession is one resumable upload in flight against the remote
// platform. The server tracks the acknowledged byte offset; SendNextChunk
// resumes from it after a transient failure.
type ResumableSession interface {
	// SendNextChunk uploads the next chunk from the current acknowledged
	// offset and classifies the result.
	SendNextChunk(ctx context.Context) transfer.Attempt

	// Offset returns the server-acknowledged byte offset.
	Offset() int64

	// Close releases resources held by the session.
	Close() error
}

// ResumableTransport opens resumable upload sessions.
type ResumableTransport interface {
	Begin(ctx context.Context, path string, size int64, meta video.Metadata) (ResumableSession, error)
}

// CollectionService manages remote collections (playlists). Invoked only
// after a successful upload.
type CollectionService interface {
	// EnsureCollection returns the id of the named collection, creating
	// it when create is set. created reports whether a create call was
	// issued against the remote API.
	EnsureCollection(ctx context.Context, name, description string, privacy video.Privacy, create bool) (id string, created bool, err error)

	// AddVideo inserts a video into a collection.
	AddVideo(ctx context.Context, collectionID, videoID string) error
}

// VideoVerifier checks the remote processing state of an uploaded video.
type VideoVerifier interface {
	// VideoStatus returns the platform's upload status string for the
	// video (for example "uploaded" or "processed").
	VideoStatus(ctx context.Context, videoID string) (string, error)
}

// ProgressFunc receives transfer progress snapshots. Implementations may
// panic or misbehave; callers must recover and continue the transfer.
type ProgressFunc func(transfer.Report)
