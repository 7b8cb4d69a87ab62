package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskboard/internal/model"
)

func (s *Store) InsertUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id, name, email, created_at_unixms) VALUES(?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.CreatedAt.UTC().UnixMilli())
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, bool, error) {
	var (
		u  model.User
		ms int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, created_at_unixms FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	u.CreatedAt = time.UnixMilli(ms).UTC()
	return &u, true, nil
}

// ListUsers enumerates in ascending id: the order smart-assign tie-breaks on.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, created_at_unixms FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		var (
			u  model.User
			ms int64
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &ms); err != nil {
			return nil, err
		}
		u.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}
