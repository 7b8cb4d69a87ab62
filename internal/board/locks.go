package board

import (
	"context"
	"strings"
)

// LockOutcome is the result of an acquire attempt. Acquisition is advisory:
// when the lock is held by someone else the call still succeeds, but the
// caller is told who holds it so local editing can be blocked.
type LockOutcome struct {
	Acquired   bool
	TaskID     string
	HolderID   string
	HolderName string
}

type lockEvent struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId,omitempty"`
}

// AcquireLock marks the task as being edited by userID. Re-acquiring a lock
// you already hold is an idempotent success (the lease timestamp is
// refreshed). A lock held by another user leaves state untouched.
func (b *Board) AcquireLock(ctx context.Context, taskID, userID string) (LockOutcome, error) {
	taskID = strings.TrimSpace(taskID)
	userID = strings.TrimSpace(userID)

	var out LockOutcome
	err := b.keys.do(taskID, func() error {
		t, ok, err := b.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFoundError{Kind: "task", ID: taskID}
		}

		now := b.cfg.Now().UTC()
		if b.lockHeld(t, now) && *t.HolderID != userID {
			out = LockOutcome{TaskID: taskID, HolderID: *t.HolderID, HolderName: b.displayName(ctx, *t.HolderID)}
			return nil
		}

		holder := userID
		t.Locked = true
		t.HolderID = &holder
		t.LockedAt = &now
		if err := b.store.UpdateTask(ctx, t); err != nil {
			return err
		}

		out = LockOutcome{Acquired: true, TaskID: taskID, HolderID: userID}
		b.bus.Publish(EventLockAcquired, lockEvent{TaskID: taskID, UserID: userID})
		return nil
	})
	return out, err
}

// ReleaseLock clears the advisory lock if userID is the current holder.
// A release from anyone else is a no-op: letting arbitrary users clear
// locks would defeat the conflict protocol.
func (b *Board) ReleaseLock(ctx context.Context, taskID, userID string) error {
	taskID = strings.TrimSpace(taskID)
	userID = strings.TrimSpace(userID)

	return b.keys.do(taskID, func() error {
		t, ok, err := b.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFoundError{Kind: "task", ID: taskID}
		}

		if !t.Locked || t.HolderID == nil || *t.HolderID != userID {
			return nil
		}

		clearLock(t)
		if err := b.store.UpdateTask(ctx, t); err != nil {
			return err
		}
		b.bus.Publish(EventLockEditCancelled, lockEvent{TaskID: taskID})
		return nil
	})
}

func (b *Board) displayName(ctx context.Context, userID string) string {
	u, ok, err := b.store.GetUser(ctx, userID)
	if err != nil || !ok {
		return userID
	}
	return u.Name
}
