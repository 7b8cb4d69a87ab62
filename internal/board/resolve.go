package board

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/model"
)

// Patch carries the proposed field changes of an update request. Nil fields
// are left unchanged. Assignee uses an explicit Set flag so callers can
// distinguish "clear the assignee" from "don't touch it".
type Patch struct {
	Title       *string
	Description *string
	Status      *model.Status
	Priority    *model.Priority
	Assignee    *string
	AssigneeSet bool

	// BaseVersion, when non-zero, must match the task's current version or
	// the update is answered with a Conflict even if the task is unlocked.
	// Zero preserves plain last-write-wins for clients that don't track it.
	BaseVersion int64
}

// Conflict is a defined alternate outcome of an update, not a failure: the
// client is expected to merge against CurrentVersion and resubmit. The field
// names are a fixed wire contract.
type Conflict struct {
	CurrentVersion model.Task `json:"currentVersion"`
	EditedBy       string     `json:"editedBy"`
}

// UpdateResult holds either the applied snapshot or a conflict.
type UpdateResult struct {
	Task     *model.Task
	Conflict *Conflict
}

// CreateTask validates and inserts a new task, then logs and broadcasts it.
func (b *Board) CreateTask(ctx context.Context, creatorID string, t model.Task) (*model.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, ValidationError{Reason: ReasonMissingField, Field: "title"}
	}
	if model.IsReservedTitle(t.Title) {
		return nil, ValidationError{Reason: ReasonReservedWord, Field: "title"}
	}
	if exists, err := b.store.TaskTitleExists(ctx, t.Title, ""); err != nil {
		return nil, err
	} else if exists {
		return nil, ValidationError{Reason: ReasonDuplicateTitle, Field: "title"}
	}

	now := b.cfg.Now().UTC()
	t.ID = b.cfg.NewID()
	t.CreatorID = creatorID
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1
	if t.Status == "" {
		t.Status = model.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	clearLock(&t)

	if err := b.store.InsertTask(ctx, &t); err != nil {
		// Two concurrent creates proposing the same title race past the
		// pre-check; the store's uniqueness constraint decides the winner.
		if errors.Is(err, ErrTitleExists) {
			return nil, ValidationError{Reason: ReasonDuplicateTitle, Field: "title"}
		}
		return nil, err
	}

	if err := b.logAction(ctx, model.ActionCreate, creatorID, t.ID, "Created task: "+t.Title); err != nil {
		return nil, err
	}
	b.bus.Publish(EventTaskCreated, t.Clone())
	return &t, nil
}

// ApplyUpdate runs the conflict-detection protocol for a proposed update.
// The whole check-then-write sequence runs inside the task's critical
// section. A committed update always leaves the task unlocked.
func (b *Board) ApplyUpdate(ctx context.Context, taskID, requesterID string, patch Patch) (UpdateResult, error) {
	taskID = strings.TrimSpace(taskID)

	var res UpdateResult
	err := b.keys.do(taskID, func() error {
		t, ok, err := b.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFoundError{Kind: "task", ID: taskID}
		}

		now := b.cfg.Now().UTC()
		if b.lockHeld(t, now) && *t.HolderID != requesterID {
			res.Conflict = &Conflict{CurrentVersion: t.Clone(), EditedBy: b.displayName(ctx, *t.HolderID)}
			return nil
		}
		if patch.BaseVersion != 0 && patch.BaseVersion != t.Version {
			editedBy := ""
			if t.HolderID != nil {
				editedBy = b.displayName(ctx, *t.HolderID)
			}
			res.Conflict = &Conflict{CurrentVersion: t.Clone(), EditedBy: editedBy}
			return nil
		}

		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return ValidationError{Reason: ReasonMissingField, Field: "title"}
			}
			if title != t.Title {
				if model.IsReservedTitle(title) {
					return ValidationError{Reason: ReasonReservedWord, Field: "title"}
				}
				exists, err := b.store.TaskTitleExists(ctx, title, t.ID)
				if err != nil {
					return err
				}
				if exists {
					return ValidationError{Reason: ReasonDuplicateTitle, Field: "title"}
				}
			}
			t.Title = title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.AssigneeSet {
			if patch.Assignee == nil || strings.TrimSpace(*patch.Assignee) == "" {
				t.AssigneeID = nil
			} else {
				id := strings.TrimSpace(*patch.Assignee)
				if _, ok, err := b.store.GetUser(ctx, id); err != nil {
					return err
				} else if !ok {
					return NotFoundError{Kind: "user", ID: id}
				}
				t.AssigneeID = &id
			}
		}

		t.UpdatedAt = now
		t.Version++
		// A successful edit always releases the lock, whoever held it.
		clearLock(t)

		if err := b.store.UpdateTask(ctx, t); err != nil {
			if errors.Is(err, ErrTitleExists) {
				return ValidationError{Reason: ReasonDuplicateTitle, Field: "title"}
			}
			return err
		}

		if err := b.logAction(ctx, model.ActionEdit, requesterID, t.ID, "Updated task: "+t.Title); err != nil {
			return err
		}
		snap := t.Clone()
		b.bus.Publish(EventTaskUpdated, snap)
		res.Task = &snap
		return nil
	})
	return res, err
}

// DeleteTask removes the task. The advisory lock is not consulted; deletion
// wins over an in-flight edit, which then conflicts with NotFound.
func (b *Board) DeleteTask(ctx context.Context, requesterID, taskID string) error {
	taskID = strings.TrimSpace(taskID)

	return b.keys.do(taskID, func() error {
		t, ok, err := b.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFoundError{Kind: "task", ID: taskID}
		}

		deleted, err := b.store.DeleteTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !deleted {
			return NotFoundError{Kind: "task", ID: taskID}
		}

		if err := b.logAction(ctx, model.ActionDelete, requesterID, taskID, fmt.Sprintf("Deleted task: %s", t.Title)); err != nil {
			return err
		}
		b.bus.Publish(EventTaskDeleted, taskID)
		return nil
	})
}
