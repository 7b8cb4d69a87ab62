package store

import (
	"context"
	"time"

	"taskboard/internal/model"
)

func (s *Store) AppendAction(ctx context.Context, rec model.ActionRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO actions(id, action_type, actor_id, task_id, ts_unixms, details)
		VALUES(?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.ActionType), rec.ActorID, rec.TaskID, rec.Timestamp.UTC().UnixMilli(), rec.Details)
	return err
}

// RecentActions returns the newest records first.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]model.ActionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, action_type, actor_id, task_id, ts_unixms, details
		FROM actions ORDER BY ts_unixms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ActionRecord{}
	for rows.Next() {
		var (
			rec model.ActionRecord
			typ string
			ms  int64
		)
		if err := rows.Scan(&rec.ID, &typ, &rec.ActorID, &rec.TaskID, &ms, &rec.Details); err != nil {
			return nil, err
		}
		rec.ActionType = model.ActionType(typ)
		rec.Timestamp = time.UnixMilli(ms).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
