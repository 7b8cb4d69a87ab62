package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

const taskColumns = `id, title, description, status, priority, assignee_id, creator_id,
	created_at_unixms, updated_at_unixms, version, locked, holder_id, locked_at_unixms`

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at_unixms, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) InsertTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullString(t.AssigneeID), t.CreatorID,
		t.CreatedAt.UTC().UnixMilli(), t.UpdatedAt.UTC().UnixMilli(), t.Version,
		boolToInt(t.Locked), nullString(t.HolderID), nullTimeMs(t.LockedAt),
	)
	return mapTitleConflict(err)
}

func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET
		title = ?, description = ?, status = ?, priority = ?, assignee_id = ?,
		updated_at_unixms = ?, version = ?, locked = ?, holder_id = ?, locked_at_unixms = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), nullString(t.AssigneeID),
		t.UpdatedAt.UTC().UnixMilli(), t.Version,
		boolToInt(t.Locked), nullString(t.HolderID), nullTimeMs(t.LockedAt),
		t.ID,
	)
	if err != nil {
		return mapTitleConflict(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return board.NotFoundError{Kind: "task", ID: t.ID}
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) TaskTitleExists(ctx context.Context, title, excludeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tasks WHERE title = ? AND id != ?`, title, excludeID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) OpenTaskCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT assignee_id, COUNT(1) FROM tasks
		WHERE assignee_id IS NOT NULL AND status != ?
		GROUP BY assignee_id`, string(model.StatusDone))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*model.Task, error) {
	var (
		t         model.Task
		status    string
		priority  string
		assignee  sql.NullString
		createdMs int64
		updatedMs int64
		locked    int
		holder    sql.NullString
		lockedMs  sql.NullInt64
	)
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &assignee, &t.CreatorID,
		&createdMs, &updatedMs, &t.Version, &locked, &holder, &lockedMs); err != nil {
		return nil, err
	}
	t.Status = model.Status(status)
	t.Priority = model.Priority(priority)
	if assignee.Valid && strings.TrimSpace(assignee.String) != "" {
		v := assignee.String
		t.AssigneeID = &v
	}
	t.CreatedAt = time.UnixMilli(createdMs).UTC()
	t.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	t.Locked = locked != 0
	if holder.Valid && strings.TrimSpace(holder.String) != "" {
		v := holder.String
		t.HolderID = &v
	}
	if lockedMs.Valid {
		v := time.UnixMilli(lockedMs.Int64).UTC()
		t.LockedAt = &v
	}
	return &t, nil
}

func nullString(p *string) any {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return *p
}

func nullTimeMs(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC().UnixMilli()
}

// mapTitleConflict translates the unique-index violation on tasks.title into
// the board's sentinel. The driver doesn't export a stable typed error for
// constraint failures, so we match the canonical SQLite message.
func mapTitleConflict(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.title") {
		return board.ErrTitleExists
	}
	return err
}
