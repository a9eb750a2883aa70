package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const activityColumns = `id,title,COALESCE(description,''),COALESCE(ai_tool,''),COALESCE(project,''),status,position,time_spent,time_started,outcome,COALESCE(outcome_notes,''),COALESCE(failure_reason,''),iteration_count,COALESCE(dispatched_to,''),COALESCE(calendar_event_id,''),created_at,updated_at,completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (domain.Activity, error) {
	var a domain.Activity
	var timeStarted, outcome, completedAt sql.NullString
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.AITool, &a.Project, &a.Status, &a.Position,
		&a.TimeSpent, &timeStarted, &outcome, &a.OutcomeNotes, &a.FailureReason, &a.IterationCount,
		&a.DispatchedTo, &a.CalendarEventID, &a.CreatedAt, &a.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if timeStarted.Valid {
		a.TimeStarted = &timeStarted.String
	}
	if outcome.Valid {
		a.Outcome = &outcome.String
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.String
	}
	return a, nil
}

// GetAll returns activities in board order.
func (r Repo) GetAll(ctx context.Context) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY status, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) Get(ctx context.Context, id string) (domain.Activity, error) {
	return scanActivity(r.DB.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=?`, id))
}

func (r Repo) Insert(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,title,description,ai_tool,project,status,position,time_spent,time_started,outcome,outcome_notes,failure_reason,iteration_count,dispatched_to,calendar_event_id,created_at,updated_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Title, nullable(a.Description), nullable(a.AITool), nullable(a.Project), a.Status, a.Position,
		a.TimeSpent, nullableStringPtr(a.TimeStarted), nullableStringPtr(a.Outcome), nullable(a.OutcomeNotes),
		nullable(a.FailureReason), a.IterationCount, nullable(a.DispatchedTo), nullable(a.CalendarEventID),
		a.CreatedAt, a.UpdatedAt, nullableStringPtr(a.CompletedAt))
	return err
}

// Update writes the full row. Callers mutate a loaded Activity and pass it back.
func (r Repo) Update(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET title=?,description=?,ai_tool=?,project=?,status=?,position=?,time_spent=?,time_started=?,outcome=?,outcome_notes=?,failure_reason=?,iteration_count=?,dispatched_to=?,calendar_event_id=?,updated_at=?,completed_at=? WHERE id=?`,
		a.Title, nullable(a.Description), nullable(a.AITool), nullable(a.Project), a.Status, a.Position,
		a.TimeSpent, nullableStringPtr(a.TimeStarted), nullableStringPtr(a.Outcome), nullable(a.OutcomeNotes),
		nullable(a.FailureReason), a.IterationCount, nullable(a.DispatchedTo), nullable(a.CalendarEventID),
		a.UpdatedAt, nullableStringPtr(a.CompletedAt), a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns activity counts per board column.
func (r Repo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM activities GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListEvents returns the status-change log for an activity, newest first.
func (r Repo) ListEvents(ctx context.Context, activityID string, limit int) ([]domain.ActivityEvent, error) {
	query := `SELECT id,ts,activity_id,COALESCE(from_status,''),to_status,label FROM activity_events WHERE activity_id=? ORDER BY id DESC`
	args := []any{activityID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		if err := rows.Scan(&e.ID, &e.TS, &e.ActivityID, &e.FromStatus, &e.ToStatus, &e.Label); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
