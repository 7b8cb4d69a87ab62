package board

import (
	"context"
	"time"

	"taskboard/internal/model"
)

// Store is the durable record store the board coordinates over. It must
// provide per-key atomic read-modify-write (the board serializes its own
// check-then-write sequences per task id, so single-statement atomicity is
// enough) and title uniqueness on insert/update via ErrTitleExists.
type Store interface {
	GetTask(ctx context.Context, id string) (*model.Task, bool, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	InsertTask(ctx context.Context, t *model.Task) error
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, id string) (bool, error)
	TaskTitleExists(ctx context.Context, title, excludeID string) (bool, error)

	GetUser(ctx context.Context, id string) (*model.User, bool, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// OpenTaskCounts returns, per assignee id, the number of tasks whose
	// status is not Done. Users with no open tasks are simply absent.
	OpenTaskCounts(ctx context.Context) (map[string]int, error)

	AppendAction(ctx context.Context, rec model.ActionRecord) error
	RecentActions(ctx context.Context, limit int) ([]model.ActionRecord, error)
}

// Broadcaster fans committed state transitions out to connected sessions.
// Publish must never block; delivery is best-effort.
type Broadcaster interface {
	Publish(event string, payload any)
}

// Broadcast event names. The shapes are part of the client contract.
const (
	EventTaskCreated       = "taskCreated"       // Task
	EventTaskUpdated       = "taskUpdated"       // Task
	EventTaskDeleted       = "taskDeleted"       // task id
	EventLockAcquired      = "lockAcquired"      // {taskId, userId}
	EventLockEditCancelled = "lockEditCancelled" // {taskId}
	EventActionLogged      = "actionLogged"      // ActionRecord
)

type Config struct {
	// LockTTL bounds how long an advisory lock stays live without a release.
	// Zero means locks never expire.
	LockTTL time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time

	// NewID is overridable for tests; defaults to uuid generation.
	NewID func() string
}

// Board owns the concurrent-edit coordination: the advisory lock state
// machine, conflict detection on update, smart assignment, and the audit +
// broadcast side effects of every committed mutation.
type Board struct {
	store Store
	bus   Broadcaster
	cfg   Config
	keys  keyMutex
}

func New(store Store, bus Broadcaster, cfg Config) *Board {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = newID
	}
	return &Board{store: store, bus: bus, cfg: cfg}
}

// lockHeld reports whether the task's advisory lock is currently live,
// honoring the optional lease duration.
func (b *Board) lockHeld(t *model.Task, now time.Time) bool {
	if !t.Locked || t.HolderID == nil {
		return false
	}
	if b.cfg.LockTTL <= 0 {
		return true
	}
	if t.LockedAt == nil {
		return true
	}
	return now.Sub(*t.LockedAt) < b.cfg.LockTTL
}

func clearLock(t *model.Task) {
	t.Locked = false
	t.HolderID = nil
	t.LockedAt = nil
}

// logAction appends the audit record and broadcasts it. Called after the
// store mutation has committed.
func (b *Board) logAction(ctx context.Context, typ model.ActionType, actorID, taskID, details string) error {
	rec := model.ActionRecord{
		ID:         b.cfg.NewID(),
		ActionType: typ,
		ActorID:    actorID,
		TaskID:     taskID,
		Timestamp:  b.cfg.Now().UTC(),
		Details:    details,
	}
	if err := b.store.AppendAction(ctx, rec); err != nil {
		return err
	}
	b.bus.Publish(EventActionLogged, rec)
	return nil
}
