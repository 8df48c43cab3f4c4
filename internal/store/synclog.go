package store

import (
	"context"
	"database/sql"
	"time"
)

// CycleStats are the aggregate counts of one sync cycle.
type CycleStats struct {
	Fetched   int
	Inserted  int
	Updated   int
	Delivered int
	Failed    int
	Errors    int
}

// StartCycleLog opens a sync_log row in 'running' state and returns its id.
func StartCycleLog(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO sync_log (started_at, status) VALUES (?, 'running');`,
		fmtTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishCycleLog closes the row with the cycle's counts and outcome.
func FinishCycleLog(ctx context.Context, db *sql.DB, id int64, stats CycleStats, status, errMsg string, duration time.Duration) error {
	_, err := db.ExecContext(ctx, `
UPDATE sync_log SET
  completed_at = ?,
  fetched = ?, inserted = ?, updated = ?, delivered = ?, failed = ?, errors = ?,
  status = ?, error_message = ?, duration_seconds = ?
WHERE id = ?;`,
		fmtTime(time.Now()),
		stats.Fetched, stats.Inserted, stats.Updated, stats.Delivered, stats.Failed, stats.Errors,
		status, errMsg, int(duration.Seconds()), id,
	)
	return err
}
