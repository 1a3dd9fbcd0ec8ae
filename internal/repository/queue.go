package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

// Enqueue adds item unless its record is already queued, in which case the
// existing attempt history is kept.
func (s *SQLiteDB) Enqueue(ctx context.Context, item *models.SyncQueueItem) error {
	if item.Report == nil || item.Report.ID == "" {
		return errors.New("queue item has no record")
	}

	payload, err := json.Marshal(item.Report)
	if err != nil {
		return fmt.Errorf("error encoding queued record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sync_queue (record_id, attempts, enqueued_at, last_attempt_at, last_error, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.Report.ID, item.Attempts, item.EnqueuedAt.UnixMilli(), unixMilliOrZero(item.LastAttemptAt),
		item.LastError, string(payload),
	)
	if err != nil {
		return fmt.Errorf("error enqueueing record %s: %w", item.Report.ID, err)
	}
	return nil
}

func (s *SQLiteDB) GetQueueItem(ctx context.Context, recordID string) (*models.SyncQueueItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT attempts, enqueued_at, last_attempt_at, last_error, payload
		FROM sync_queue WHERE record_id = ?`, recordID)

	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading queue item %s: %w", recordID, err)
	}
	return item, nil
}

func (s *SQLiteDB) DeleteQueueItem(ctx context.Context, recordID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("error deleting queue item %s: %w", recordID, err)
	}
	return nil
}

func (s *SQLiteDB) ListQueue(ctx context.Context) ([]models.SyncQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempts, enqueued_at, last_attempt_at, last_error, payload
		FROM sync_queue ORDER BY enqueued_at, record_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing queue: %w", err)
	}
	defer rows.Close()

	items := []models.SyncQueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning queue item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CountQueue counts items that still have attempts left.
func (s *SQLiteDB) CountQueue(ctx context.Context, maxAttempts int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE attempts < ?`, maxAttempts).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting queue: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) ApplyQueuePass(ctx context.Context, pass QueuePass) error {
	if pass.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting queue transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range pass.Synced {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE record_id = ?`, id); err != nil {
			return fmt.Errorf("error removing synced item %s: %w", id, err)
		}
		if err := updateSyncStatus(ctx, tx, id, models.SyncSynced); err != nil {
			return err
		}
	}

	for _, id := range pass.Exhausted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE record_id = ?`, id); err != nil {
			return fmt.Errorf("error removing exhausted item %s: %w", id, err)
		}
		if err := updateSyncStatus(ctx, tx, id, models.SyncFailed); err != nil {
			return err
		}
	}

	for _, item := range pass.Retry {
		_, err := tx.ExecContext(ctx, `
			UPDATE sync_queue SET attempts = ?, last_attempt_at = ?, last_error = ?
			WHERE record_id = ?`,
			item.Attempts, unixMilliOrZero(item.LastAttemptAt), item.LastError, item.RecordID(),
		)
		if err != nil {
			return fmt.Errorf("error updating queue item %s: %w", item.RecordID(), err)
		}
		if err := updateSyncStatus(ctx, tx, item.RecordID(), models.SyncOffline); err != nil {
			return err
		}
	}

	for _, id := range pass.Released {
		if err := updateSyncStatus(ctx, tx, id, models.SyncOffline); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing queue pass: %w", err)
	}
	return nil
}

func scanQueueItem(row scanner) (*models.SyncQueueItem, error) {
	var (
		item                    models.SyncQueueItem
		enqueuedAt, lastAttempt int64
		payload                 string
	)
	if err := row.Scan(&item.Attempts, &enqueuedAt, &lastAttempt, &item.LastError, &payload); err != nil {
		return nil, err
	}

	var r models.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("error decoding queued record: %w", err)
	}
	item.Report = &r
	item.EnqueuedAt = time.UnixMilli(enqueuedAt).UTC()
	if lastAttempt > 0 {
		item.LastAttemptAt = time.UnixMilli(lastAttempt).UTC()
	}
	return &item, nil
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
