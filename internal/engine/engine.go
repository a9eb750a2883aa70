// Package engine owns the activity lifecycle: every mutation passes through
// it so status, timer and outcome invariants hold and side effects fire
// consistently.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/capability"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/config"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/dispatch"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/events"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/notify"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/repo"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Config     *config.Config
	Notifier   *notify.Notifier
	Dispatcher *dispatch.Dispatcher
	Pool       *dispatch.Pool
	Now        func() time.Time
	// Detach runs a fire-and-forget task. Defaults to a goroutine; tests
	// replace it to run side effects inline.
	Detach func(func())
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) detach(fn func()) {
	if e.Detach != nil {
		e.Detach(fn)
		return
	}
	go fn()
}

// CreateOptions are parameters for creating an activity.
type CreateOptions struct {
	Title       string
	Description string
	AITool      string
	Project     string
	Status      string
	Position    int
}

func (e Engine) CreateActivity(ctx context.Context, opts CreateOptions) (domain.Activity, error) {
	if opts.Title == "" {
		return domain.Activity{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusTodo
	}
	if !domain.ValidStatus(opts.Status) {
		return domain.Activity{}, fmt.Errorf("invalid status %s", opts.Status)
	}
	now := e.now().UTC().Format(time.RFC3339)
	a := domain.Activity{
		ID:             uuid.New().String(),
		Title:          opts.Title,
		Description:    opts.Description,
		AITool:         opts.AITool,
		Project:        opts.Project,
		Status:         opts.Status,
		Position:       opts.Position,
		IterationCount: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if a.Status == domain.StatusDone {
		a.CompletedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.Insert(ctx, tx, a); err != nil {
		return domain.Activity{}, err
	}
	if err := e.eventsWriter().Append(ctx, tx, a.ID, "", a.Status, "New Activity"); err != nil {
		return domain.Activity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	e.notifyAsync("New Activity", a)
	if a.Status == domain.StatusTodo {
		e.triggerDispatch(a)
	}
	return a, nil
}

// UpdateOptions carries caller-editable fields; nil means leave unchanged.
type UpdateOptions struct {
	Title           *string
	Description     *string
	AITool          *string
	Project         *string
	Status          *string
	Position        *int
	CalendarEventID *string
}

func (e Engine) UpdateActivity(ctx context.Context, id string, opts UpdateOptions) (domain.Activity, error) {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return a, err
	}
	from := a.Status
	if opts.Title != nil {
		if *opts.Title == "" {
			return a, errors.New("title is required")
		}
		a.Title = *opts.Title
	}
	if opts.Description != nil {
		a.Description = *opts.Description
	}
	if opts.AITool != nil {
		a.AITool = *opts.AITool
	}
	if opts.Project != nil {
		a.Project = *opts.Project
	}
	if opts.Position != nil {
		a.Position = *opts.Position
	}
	if opts.CalendarEventID != nil {
		a.CalendarEventID = *opts.CalendarEventID
	}
	changed := false
	if opts.Status != nil {
		if !domain.ValidStatus(*opts.Status) {
			return a, fmt.Errorf("invalid status %s", *opts.Status)
		}
		changed = e.applyStatus(&a, *opts.Status)
	}
	if err := e.persist(ctx, &a, changed, from); err != nil {
		return a, err
	}
	return a, nil
}

// ReorderItem is one drag-and-drop placement.
type ReorderItem struct {
	ID       string `json:"id"`
	Status   string `json:"status" enum:"todo,in-progress,done"`
	Position int    `json:"position"`
}

// Reorder applies each placement atomically per item. Items whose status
// differs from the stored value are status-change events; position-only moves
// are silent.
func (e Engine) Reorder(ctx context.Context, items []ReorderItem) error {
	for _, item := range items {
		if !domain.ValidStatus(item.Status) {
			return fmt.Errorf("invalid status %s", item.Status)
		}
		a, err := e.Repo.Get(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("reorder %s: %w", item.ID, err)
		}
		from := a.Status
		a.Position = item.Position
		changed := e.applyStatus(&a, item.Status)
		if err := e.persist(ctx, &a, changed, from); err != nil {
			return fmt.Errorf("reorder %s: %w", item.ID, err)
		}
	}
	return nil
}

// StartTimer begins tracking time and moves the activity to in-progress.
func (e Engine) StartTimer(ctx context.Context, id string) (domain.Activity, error) {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return a, err
	}
	if a.TimeStarted != nil {
		return a, errors.New("timer already running")
	}
	from := a.Status
	started := e.now().UTC().Format(time.RFC3339)
	a.TimeStarted = &started
	changed := e.applyStatus(&a, domain.StatusInProgress)
	if err := e.persist(ctx, &a, changed, from); err != nil {
		return a, err
	}
	return a, nil
}

// StopTimer accrues elapsed whole seconds and clears the running timer.
// Stopping with no running timer is a no-op.
func (e Engine) StopTimer(ctx context.Context, id string) (domain.Activity, error) {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return a, err
	}
	if a.TimeStarted == nil {
		return a, nil
	}
	started, err := time.Parse(time.RFC3339, *a.TimeStarted)
	if err != nil {
		return a, fmt.Errorf("parse time_started: %w", err)
	}
	elapsed := int(e.now().UTC().Sub(started).Round(time.Second) / time.Second)
	if elapsed > 0 {
		a.TimeSpent += elapsed
	}
	a.TimeStarted = nil
	if err := e.persist(ctx, &a, false, a.Status); err != nil {
		return a, err
	}
	return a, nil
}

// IncrementIteration bumps the iteration counter without touching status.
func (e Engine) IncrementIteration(ctx context.Context, id string) (domain.Activity, error) {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return a, err
	}
	a.IterationCount++
	if err := e.persist(ctx, &a, false, a.Status); err != nil {
		return a, err
	}
	return a, nil
}

// Execute re-triggers dispatch for an activity regardless of its status.
func (e Engine) Execute(ctx context.Context, id string) (domain.Activity, error) {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return a, err
	}
	e.triggerDispatch(a)
	return a, nil
}

// Retry resets an activity to todo, clears its outcome, bumps the iteration
// counter and hands it back to the agent.
func (e Engine) Retry(ctx context.Context, id string) (domain.Activity, error) {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return a, err
	}
	from := a.Status
	changed := e.applyStatus(&a, domain.StatusTodo)
	a.Outcome = nil
	a.OutcomeNotes = ""
	a.FailureReason = ""
	a.IterationCount++
	if err := e.persist(ctx, &a, changed, from); err != nil {
		return a, err
	}
	e.triggerDispatch(a)
	return a, nil
}

// Complete applies the agent's completion callback. Last write wins: a second
// callback with a different outcome overwrites the first.
func (e Engine) Complete(ctx context.Context, id, outcome, notes string) (domain.Activity, error) {
	if outcome == "" {
		outcome = domain.OutcomeSuccess
	}
	if !domain.ValidOutcome(outcome) {
		return domain.Activity{}, fmt.Errorf("invalid outcome %s", outcome)
	}
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return a, err
	}
	from := a.Status
	changed := e.applyStatus(&a, domain.StatusDone)
	a.Outcome = &outcome
	a.OutcomeNotes = notes
	if err := e.persist(ctx, &a, changed, from); err != nil {
		return a, err
	}
	return a, nil
}

func (e Engine) DeleteActivity(ctx context.Context, id string) error {
	return e.Repo.Delete(ctx, id)
}

// applyStatus moves a to newStatus and reports whether the stored status
// actually changes. completed_at is set on the first entry into done and is
// never reset afterwards.
func (e Engine) applyStatus(a *domain.Activity, newStatus string) bool {
	if newStatus == a.Status {
		return false
	}
	if newStatus == domain.StatusDone && a.CompletedAt == nil {
		now := e.now().UTC().Format(time.RFC3339)
		a.CompletedAt = &now
	}
	a.Status = newStatus
	return true
}

// persist writes the activity; when the status changed it appends the audit
// row in the same transaction and, after commit, fires exactly one
// notification for the transition.
func (e Engine) persist(ctx context.Context, a *domain.Activity, changed bool, fromStatus string) error {
	a.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	label := transitionLabel(fromStatus, a.Status)
	if changed {
		if err := e.eventsWriter().Append(ctx, tx, a.ID, fromStatus, a.Status, label); err != nil {
			return err
		}
	}
	if err := e.Repo.Update(ctx, tx, *a); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if changed {
		e.notifyAsync(label, *a)
	}
	return nil
}

func transitionLabel(from, to string) string {
	return domain.HumanStatus(from) + " → " + domain.HumanStatus(to)
}

func (e Engine) eventsWriter() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}

func (e Engine) notifyAsync(label string, a domain.Activity) {
	if e.Notifier == nil {
		return
	}
	act := a
	e.detach(func() { e.Notifier.Notify(label, &act) })
}

// triggerDispatch hands the activity to the dispatch pool without waiting on
// the agent. Only submission is awaited; the store write that triggered the
// dispatch is already durable.
func (e Engine) triggerDispatch(a domain.Activity) {
	if e.Dispatcher == nil {
		return
	}
	run := func() { e.runDispatch(a) }
	if e.Pool != nil {
		if err := e.Pool.Submit(run); err != nil {
			log.Printf("dispatch: submit %s: %v", a.ID, err)
		}
		return
	}
	e.detach(run)
}

func (e Engine) runDispatch(a domain.Activity) {
	ctx := context.Background()
	profile := capability.Infer(a.Description)
	res := e.Dispatcher.Dispatch(ctx, a, profile)
	if res.Err != nil {
		if err := e.markDispatchFailed(ctx, a.ID, res.Err); err != nil {
			log.Printf("dispatch: record failure for %s: %v", a.ID, err)
		}
		return
	}
	if err := e.markDispatched(ctx, a.ID, res.Label); err != nil {
		log.Printf("dispatch: record accept for %s: %v", a.ID, err)
	}
}

// markDispatched records an accepted hand-off: in-progress, labelled, no
// outcome while the agent works.
func (e Engine) markDispatched(ctx context.Context, id, label string) error {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	from := a.Status
	a.DispatchedTo = label
	a.Outcome = nil
	a.FailureReason = ""
	changed := e.applyStatus(&a, domain.StatusInProgress)
	return e.persist(ctx, &a, changed, from)
}

// markDispatchFailed records an immediate rejection: back to todo with a
// failed outcome so the caller can retry.
func (e Engine) markDispatchFailed(ctx context.Context, id string, dispatchErr error) error {
	a, err := e.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	from := a.Status
	failed := domain.OutcomeFailed
	a.Outcome = &failed
	a.FailureReason = dispatchErr.Error()
	changed := e.applyStatus(&a, domain.StatusTodo)
	return e.persist(ctx, &a, changed, from)
}
