package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"famplan/internal/model"
)

// taskRow mirrors the tasks table, including legacy columns.
type taskRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Date             string         `db:"date"`
	Clock            string         `db:"clock"`
	Recipients       string         `db:"recipients"`
	Child            sql.NullString `db:"child"`
	Category         string         `db:"category"`
	Recurring        bool           `db:"recurring"`
	TemplateID       sql.NullString `db:"template_id"`
	Completed        bool           `db:"completed"`
	Notified         bool           `db:"notified"`
	SendNotification bool           `db:"send_notification"`
	NeedsAck         bool           `db:"needs_ack"`
	CreatedAt        string         `db:"created_at"`
	UpdatedAt        string         `db:"updated_at"`
}

// toModel normalizes a raw row into the canonical record. The legacy
// single-recipient column feeds recipients when the new column is empty.
func (r taskRow) toModel() model.Task {
	recipients := strings.TrimSpace(r.Recipients)
	if recipients == "" && r.Child.Valid {
		recipients = strings.TrimSpace(r.Child.String)
	}
	t := model.Task{
		ID:               r.ID,
		Title:            r.Title,
		Date:             r.Date,
		Clock:            r.Clock,
		Recipients:       recipients,
		Category:         r.Category,
		Recurring:        r.Recurring,
		Completed:        r.Completed,
		Notified:         r.Notified,
		SendNotification: r.SendNotification,
		NeedsAck:         r.NeedsAck,
		CreatedAt:        decodeTime(r.CreatedAt),
		UpdatedAt:        decodeTime(r.UpdatedAt),
	}
	if r.TemplateID.Valid && r.TemplateID.String != "" {
		id := r.TemplateID.String
		t.TemplateID = &id
	}
	return t
}

const taskColumns = `id, title, date, clock, recipients, child, category, recurring,
	template_id, completed, notified, send_notification, needs_ack, created_at, updated_at`

// CreateTask inserts a new task. Generates a UUID if ID is empty.
func (s *Store) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return model.Task{}, errors.New("task title must not be empty")
	}
	if _, err := model.ParseDate(t.Date); err != nil {
		return model.Task{}, err
	}
	if _, _, err := model.ParseClock(t.Clock); err != nil {
		return model.Task{}, err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, date, clock, recipients, category, recurring,
			template_id, completed, notified, send_notification, needs_ack,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Date, t.Clock, strings.TrimSpace(t.Recipients), t.Category, t.Recurring,
		t.TemplateID, t.Completed, t.Notified, t.SendNotification, t.NeedsAck,
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt),
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return t, nil
}

// UpdateTask rewrites a task's user-editable fields by ID.
func (s *Store) UpdateTask(ctx context.Context, t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("task title must not be empty")
	}
	if _, err := model.ParseDate(t.Date); err != nil {
		return err
	}
	if _, _, err := model.ParseClock(t.Clock); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, date = ?, clock = ?, recipients = ?, child = NULL,
			category = ?, recurring = ?, template_id = ?, completed = ?,
			send_notification = ?, needs_ack = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Date, t.Clock, strings.TrimSpace(t.Recipients),
		t.Category, t.Recurring, t.TemplateID, t.Completed,
		t.SendNotification, t.NeedsAck, encodeTime(time.Now()),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task by ID.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTask retrieves a single task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("getting task %s: %w", id, err)
	}
	return row.toModel(), nil
}

// ListTasks returns tasks, optionally bounded to a [from, to] date range
// (inclusive, YYYY-MM-DD). Empty bounds are open.
func (s *Store) ListTasks(ctx context.Context, from, to string) ([]model.Task, error) {
	q := "SELECT " + taskColumns + " FROM tasks"
	var (
		conds []string
		args  []any
	)
	if strings.TrimSpace(from) != "" {
		conds = append(conds, "date >= ?")
		args = append(args, from)
	}
	if strings.TrimSpace(to) != "" {
		conds = append(conds, "date <= ?")
		args = append(args, to)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY date, clock, id"

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ListRemindableTasks bulk-loads the tasks a sweep should consider. The
// filter is an optimization only: the orchestrator re-applies every
// eligibility rule in-process.
func (s *Store) ListRemindableTasks(ctx context.Context) ([]model.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+taskColumns+" FROM tasks WHERE completed = 0 AND send_notification = 1")
	if err != nil {
		return nil, fmt.Errorf("listing remindable tasks: %w", err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// MarkNotified flips the task-level notified flag after the first
// successful delivery. Idempotent.
func (s *Store) MarkNotified(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET notified = 1, updated_at = ? WHERE id = ?",
		encodeTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("marking task %s notified: %w", id, err)
	}
	return nil
}

// MarkCompleted sets the completed flag (the acknowledgement endpoint).
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET completed = 1, updated_at = ? WHERE id = ?",
		encodeTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("marking task %s completed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
