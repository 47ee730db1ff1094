package sqlite

import (
	"context"

	"github.com/tubegate/tubegate/domain/video"
	"github.com/tubegate/tubegate/ports"
)

// HistoryStore implements ports.HistoryStore using SQLite.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new SQLite history store.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// IsUploaded reports whether filename has a successful upload on record.
func (s *HistoryStore) IsUploaded(ctx context.Context, filename string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM upload_history
		WHERE filename = ? AND status = ?
	`, filename, string(video.OutcomeSuccess)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Record appends an outcome.
func (s *HistoryStore) Record(ctx context.Context, rec ports.HistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_history (
			id, filename, video_id, title, collection_id, status, reason, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Filename, rec.VideoID, rec.Title, rec.CollectionID,
		string(rec.Status), rec.Reason, rec.UploadedAt.UTC(),
	)
	return err
}

// Recent returns the most recent records, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]ports.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, video_id, title, collection_id, status, reason, uploaded_at
		FROM upload_history
		ORDER BY uploaded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ports.HistoryRecord
	for rows.Next() {
		var rec ports.HistoryRecord
		var status string
		if err := rows.Scan(
			&rec.ID, &rec.Filename, &rec.VideoID, &rec.Title,
			&rec.CollectionID, &status, &rec.Reason, &rec.UploadedAt,
		); err != nil {
			return nil, err
		}
		rec.Status = video.OutcomeStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByStatus returns record counts grouped by outcome status.
func (s *HistoryStore) CountByStatus(ctx context.Context) (map[video.OutcomeStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM upload_history GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[video.OutcomeStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[video.OutcomeStatus(status)] = n
	}
	return counts, rows.Err()
}

// Ensure interface compliance.
var _ ports.HistoryStore = (*HistoryStore)(nil)
