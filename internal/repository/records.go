package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

func (s *SQLiteDB) PutRecord(ctx context.Context, r *models.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, kind, district, village, state, geotagged, lifecycle_status, sync_status, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			district = excluded.district,
			village = excluded.village,
			state = excluded.state,
			geotagged = excluded.geotagged,
			lifecycle_status = excluded.lifecycle_status,
			sync_status = excluded.sync_status,
			created_at = excluded.created_at,
			payload = excluded.payload`,
		r.ID, string(r.Kind), r.Location.District, r.Location.Village, r.Location.State,
		boolToInt(r.Location.Geotagged), string(r.LifecycleStatus), string(r.SyncStatus),
		r.CreatedAt.UnixMilli(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("error writing record %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteDB) GetRecord(ctx context.Context, id string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lifecycle_status, sync_status, payload FROM records WHERE id = ?`, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading record %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteDB) DeleteRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error deleting record %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteDB) ListRecords(ctx context.Context, opts Filter) ([]models.Report, error) {
	var (
		where []string
		args  []any
	)

	if opts.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*opts.Kind))
	}
	if opts.District != "" {
		where = append(where, "district = ?")
		args = append(args, opts.District)
	}
	if opts.Village != nil {
		where = append(where, "village = ?")
		args = append(args, *opts.Village)
	}
	if opts.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UnixMilli())
	}
	if opts.SyncStatus != nil {
		where = append(where, "sync_status = ?")
		args = append(args, string(*opts.SyncStatus))
	}
	if opts.GeotaggedOnly {
		where = append(where, "geotagged = 1")
	}

	query := `SELECT lifecycle_status, sync_status, payload FROM records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	defer rows.Close()

	records := []models.Report{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *SQLiteDB) UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus) error {
	return updateSyncStatus(ctx, s.db, id, status)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateSyncStatus(ctx context.Context, db execer, id string, status models.SyncStatus) error {
	query := `UPDATE records SET sync_status = ? WHERE id = ?`
	args := []any{string(status), id}
	if status == models.SyncSynced {
		query = `UPDATE records SET sync_status = ?, lifecycle_status = ? WHERE id = ?`
		args = []any{string(status), string(models.LifecycleSynced), id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error updating sync status of %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteDB) CountBySyncStatus(ctx context.Context, status models.SyncStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE sync_status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting records: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("error purging records: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord decodes the payload; the status columns are authoritative since
// status updates do not rewrite the payload.
func scanRecord(row scanner) (*models.Report, error) {
	var lifecycle, syncStatus, payload string
	if err := row.Scan(&lifecycle, &syncStatus, &payload); err != nil {
		return nil, err
	}

	var r models.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("error decoding record payload: %w", err)
	}
	r.LifecycleStatus = models.LifecycleStatus(lifecycle)
	r.SyncStatus = models.SyncStatus(syncStatus)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
