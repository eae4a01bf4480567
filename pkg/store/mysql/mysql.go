// Package mysql stores tasks in a MySQL-compatible server.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

const schema = `CREATE TABLE IF NOT EXISTS tasks (
	id              VARCHAR(64)  NOT NULL PRIMARY KEY,
	parent_id       VARCHAR(64)  NULL,
	project_id      VARCHAR(64)  NOT NULL DEFAULT '',
	title           TEXT         NOT NULL,
	description     TEXT         NOT NULL,
	status          VARCHAR(16)  NOT NULL DEFAULT 'todo',
	priority        VARCHAR(16)  NOT NULL DEFAULT 'medium',
	tags            TEXT         NULL,
	start_date      DATE         NULL,
	due_date        DATE         NULL,
	estimated_hours DOUBLE       NOT NULL DEFAULT 0,
	actual_hours    DOUBLE       NOT NULL DEFAULT 0,
	progress        INT          NOT NULL DEFAULT 0,
	repeat_rule     VARCHAR(16)  NOT NULL DEFAULT 'none',
	archived        BOOLEAN      NOT NULL DEFAULT FALSE,
	order_index     INT          NOT NULL DEFAULT 0,
	created_at      DATETIME(6)  NOT NULL,
	updated_at      DATETIME(6)  NOT NULL,
	INDEX idx_tasks_parent (parent_id),
	CONSTRAINT fk_tasks_parent FOREIGN KEY (parent_id) REFERENCES tasks (id) ON DELETE CASCADE
)`

const columns = `id, parent_id, project_id, title, description, status, priority, tags,
	start_date, due_date, estimated_hours, actual_hours, progress, repeat_rule,
	archived, order_index, created_at, updated_at`

const connectMaxElapsed = 30 * time.Second

type Store struct {
	db *sql.DB
}

// Open connects using a go-sql-driver DSN and creates the table if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	s := &Store{db: sql.OpenDB(connector)}
	if err := s.withRetry(ctx, func() error { return s.db.PingContext(ctx) }); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create tasks table: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := s.withRetry(ctx, func() error {
		tasks = tasks[:0]
		rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM tasks ORDER BY order_index, created_at")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return backoff.Permanent(err)
			}
			tasks = append(tasks, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return model.Task{}, err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO tasks ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, nullString(t.ParentID), t.ProjectID, t.Title, t.Description,
		string(t.Status), string(t.Priority), tags,
		t.StartDate, t.DueDate, t.EstimatedHours, t.ActualHours, t.Progress,
		string(t.RepeatRule), t.Archived, t.OrderIndex, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to insert task %s: %w", t.ID, err)
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, id string, p model.Patch) error {
	query, args, err := buildUpdate(id, p)
	if err != nil {
		return err
	}
	if query == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

// Delete relies on the parent_id foreign key to remove the subtree.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// buildUpdate turns a patch into an UPDATE statement. Columns appear in a
// fixed order. An empty patch yields an empty query.
func buildUpdate(id string, p model.Patch) (string, []any, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Priority != nil {
		add("priority", string(*p.Priority))
	}
	if p.Progress != nil {
		add("progress", *p.Progress)
	}
	if p.ParentID != nil {
		add("parent_id", nullString(*p.ParentID))
	}
	if p.ProjectID != nil {
		add("project_id", *p.ProjectID)
	}
	if p.Tags != nil {
		tags, err := encodeTags(*p.Tags)
		if err != nil {
			return "", nil, err
		}
		add("tags", tags)
	}
	if p.StartDate != nil {
		add("start_date", *p.StartDate)
	}
	if p.DueDate != nil {
		add("due_date", *p.DueDate)
	}
	if p.EstimatedHours != nil {
		add("estimated_hours", *p.EstimatedHours)
	}
	if p.ActualHours != nil {
		add("actual_hours", *p.ActualHours)
	}
	if p.RepeatRule != nil {
		add("repeat_rule", string(*p.RepeatRule))
	}
	if p.Archived != nil {
		add("archived", *p.Archived)
	}
	if p.OrderIndex != nil {
		add("order_index", *p.OrderIndex)
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	if p.UpdatedAt != nil {
		add("updated_at", *p.UpdatedAt)
	} else {
		add("updated_at", time.Now())
	}

	args = append(args, id)
	return "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?", args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.Task, error) {
	var (
		t        model.Task
		parentID sql.NullString
		tags     sql.NullString
		status   string
		priority string
		repeat   string
	)
	err := row.Scan(&t.ID, &parentID, &t.ProjectID, &t.Title, &t.Description,
		&status, &priority, &tags, &t.StartDate, &t.DueDate,
		&t.EstimatedHours, &t.ActualHours, &t.Progress, &repeat,
		&t.Archived, &t.OrderIndex, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to scan task: %w", err)
	}
	t.ParentID = parentID.String
	t.Status = model.Status(status)
	t.Priority = model.Priority(priority)
	t.RepeatRule = model.RepeatRule(repeat)
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
			return model.Task{}, fmt.Errorf("failed to decode tags of task %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func encodeTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// IsRetryableError reports whether err looks like a transient connection
// problem worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection", // 2013
		"gone away",       // 2006
		"i/o timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// Deadlock and lock wait timeout.
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}
