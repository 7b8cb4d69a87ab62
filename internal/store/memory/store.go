// Package memory is an in-memory board.Store used by tests and local
// experiments. It mirrors the SQLite store's semantics, including the title
// uniqueness constraint.
package memory

import (
	"context"
	"sort"
	"sync"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

type Store struct {
	mu      sync.RWMutex
	tasks   map[string]model.Task
	users   map[string]model.User
	actions []model.ActionRecord
}

func New() *Store {
	return &Store{
		tasks: map[string]model.Task{},
		users: map[string]model.User{},
	}
}

func (s *Store) GetTask(_ context.Context, id string) (*model.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false, nil
	}
	cp := t.Clone()
	return &cp, true, nil
}

func (s *Store) ListTasks(_ context.Context) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertTask(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.tasks {
		if other.Title == t.Title {
			return board.ErrTitleExists
		}
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *Store) UpdateTask(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return board.NotFoundError{Kind: "task", ID: t.ID}
	}
	for id, other := range s.tasks {
		if id != t.ID && other.Title == t.Title {
			return board.ErrTitleExists
		}
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

func (s *Store) TaskTitleExists(_ context.Context, title, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, t := range s.tasks {
		if id != excludeID && t.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) OpenTaskCounts(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]int{}
	for _, t := range s.tasks {
		if t.AssigneeID == nil || t.Status == model.StatusDone {
			continue
		}
		out[*t.AssigneeID]++
	}
	return out, nil
}

func (s *Store) InsertUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false, nil
	}
	return &u, true, nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AppendAction(_ context.Context, rec model.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, rec)
	return nil
}

func (s *Store) RecentActions(_ context.Context, limit int) ([]model.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	n := len(s.actions)
	out := make([]model.ActionRecord, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.actions[i])
	}
	return out, nil
}
