package events

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends status-change rows inside the caller's transaction, so the
// audit log commits atomically with the status write it describes.
type Writer struct {
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, activityID, fromStatus, toStatus, label string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO activity_events(ts,activity_id,from_status,to_status,label) VALUES (?,?,?,?,?)`,
		ts, activityID, nullable(fromStatus), toStatus, label)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
