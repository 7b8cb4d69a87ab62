package board

import (
	"context"
	"sort"
	"strings"

	"taskboard/internal/model"
)

// SmartAssign assigns the task to the least-loaded user: the one with the
// fewest non-Done tasks. Ties break to the lowest user id, so the outcome
// does not depend on store enumeration order.
func (b *Board) SmartAssign(ctx context.Context, requesterID, taskID string) (*model.Task, error) {
	taskID = strings.TrimSpace(taskID)

	var snap *model.Task
	err := b.keys.do(taskID, func() error {
		t, ok, err := b.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFoundError{Kind: "task", ID: taskID}
		}

		users, err := b.store.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return ErrNoUsersAvailable
		}
		sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

		counts, err := b.store.OpenTaskCounts(ctx)
		if err != nil {
			return err
		}

		chosen := users[0]
		best := counts[chosen.ID]
		for _, u := range users[1:] {
			if c := counts[u.ID]; c < best {
				chosen, best = u, c
			}
		}

		id := chosen.ID
		t.AssigneeID = &id
		t.UpdatedAt = b.cfg.Now().UTC()
		t.Version++
		if err := b.store.UpdateTask(ctx, t); err != nil {
			return err
		}

		if err := b.logAction(ctx, model.ActionSmartAssign, requesterID, taskID, "Smart-assigned task to "+chosen.Name); err != nil {
			return err
		}
		s := t.Clone()
		b.bus.Publish(EventTaskUpdated, s)
		snap = &s
		return nil
	})
	return snap, err
}
