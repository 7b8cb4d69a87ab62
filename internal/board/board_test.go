package board_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/store/memory"
)

type recordedEvent struct {
	Name    string
	Payload any
}

type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBus) Publish(event string, payload any) {
	b.mu.Lock()
	b.events = append(b.events, recordedEvent{Name: event, Payload: payload})
	b.mu.Unlock()
}

func (b *recordingBus) named(name string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func newTestBoard(t *testing.T, cfg Config) (*Board, *memory.Store, *recordingBus) {
	t.Helper()
	st := memory.New()
	bus := &recordingBus{}
	ctx := context.Background()
	for _, u := range []model.User{
		{ID: "u1", Name: "Alice", Email: "alice@example.com"},
		{ID: "u2", Name: "Bob", Email: "bob@example.com"},
		{ID: "u3", Name: "Carol", Email: "carol@example.com"},
	} {
		u := u
		if err := st.InsertUser(ctx, &u); err != nil {
			t.Fatalf("InsertUser: %v", err)
		}
	}
	return New(st, bus, cfg), st, bus
}

func mustCreate(t *testing.T, b *Board, creator, title string) *model.Task {
	t.Helper()
	task, err := b.CreateTask(context.Background(), creator, model.Task{Title: title})
	if err != nil {
		t.Fatalf("CreateTask(%q): %v", title, err)
	}
	return task
}

func TestCreateTask_ReservedTitleRejected(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})

	for _, title := range []string{"Todo", "In Progress", "Done"} {
		_, err := b.CreateTask(context.Background(), "u1", model.Task{Title: title})
		var ve ValidationError
		if !errors.As(err, &ve) || ve.Reason != ReasonReservedWord {
			t.Fatalf("title %q: expected ReservedWord validation error; got %v", title, err)
		}
	}

	// Reserved matching is exact and case-sensitive.
	if _, err := b.CreateTask(context.Background(), "u1", model.Task{Title: "done"}); err != nil {
		t.Fatalf("lowercase title should be allowed: %v", err)
	}
}

func TestCreateTask_DuplicateTitleRejected(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})
	mustCreate(t, b, "u1", "Ship it")

	_, err := b.CreateTask(context.Background(), "u2", model.Task{Title: "Ship it"})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Reason != ReasonDuplicateTitle {
		t.Fatalf("expected DuplicateTitle; got %v", err)
	}
}

func TestCreateTask_ConcurrentSameTitle_OneWinner(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.CreateTask(context.Background(), "u1", model.Task{Title: "contested"})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var ve ValidationError
		if !errors.As(err, &ve) || ve.Reason != ReasonDuplicateTitle {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner; got %d", wins)
	}
}

func TestCreateTask_Defaults(t *testing.T) {
	b, _, bus := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "First")

	if task.Status != model.StatusTodo {
		t.Fatalf("expected default status Todo; got %q", task.Status)
	}
	if task.Priority != model.PriorityMedium {
		t.Fatalf("expected default priority Medium; got %q", task.Priority)
	}
	if task.Version != 1 {
		t.Fatalf("expected version 1; got %d", task.Version)
	}
	if task.CreatorID != "u1" {
		t.Fatalf("expected creator u1; got %q", task.CreatorID)
	}
	if got := len(bus.named(EventTaskCreated)); got != 1 {
		t.Fatalf("expected one taskCreated broadcast; got %d", got)
	}
	if got := len(bus.named(EventActionLogged)); got != 1 {
		t.Fatalf("expected one actionLogged broadcast; got %d", got)
	}
}

func TestAcquireLock_IdempotentReacquire(t *testing.T) {
	b, st, _ := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Locked task")

	for i := 0; i < 2; i++ {
		out, err := b.AcquireLock(context.Background(), task.ID, "u1")
		if err != nil {
			t.Fatalf("AcquireLock #%d: %v", i+1, err)
		}
		if !out.Acquired {
			t.Fatalf("AcquireLock #%d: expected acquired", i+1)
		}
	}

	cur, ok, _ := st.GetTask(context.Background(), task.ID)
	if !ok || !cur.Locked || cur.HolderID == nil || *cur.HolderID != "u1" {
		t.Fatalf("expected LockedBy(u1); got %+v", cur)
	}
}

func TestAcquireLock_HeldByOtherIsAdvisory(t *testing.T) {
	b, st, _ := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Contended")

	if _, err := b.AcquireLock(context.Background(), task.ID, "u1"); err != nil {
		t.Fatalf("AcquireLock u1: %v", err)
	}

	out, err := b.AcquireLock(context.Background(), task.ID, "u2")
	if err != nil {
		t.Fatalf("AcquireLock u2: %v", err)
	}
	if out.Acquired {
		t.Fatalf("expected advisory refusal")
	}
	if out.HolderID != "u1" || out.HolderName != "Alice" {
		t.Fatalf("expected holder u1/Alice; got %q/%q", out.HolderID, out.HolderName)
	}

	// State untouched.
	cur, _, _ := st.GetTask(context.Background(), task.ID)
	if *cur.HolderID != "u1" {
		t.Fatalf("holder changed to %q", *cur.HolderID)
	}
}

func TestAcquireLock_NotFound(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})
	_, err := b.AcquireLock(context.Background(), "nope", "u1")
	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError; got %v", err)
	}
}

func TestReleaseLock_OnlyHolderClears(t *testing.T) {
	b, st, bus := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Held")

	if _, err := b.AcquireLock(context.Background(), task.ID, "u1"); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	// A stranger's release is a silent no-op.
	if err := b.ReleaseLock(context.Background(), task.ID, "u2"); err != nil {
		t.Fatalf("ReleaseLock u2: %v", err)
	}
	cur, _, _ := st.GetTask(context.Background(), task.ID)
	if !cur.Locked {
		t.Fatalf("non-holder release cleared the lock")
	}
	if got := len(bus.named(EventLockEditCancelled)); got != 0 {
		t.Fatalf("expected no lockEditCancelled broadcast; got %d", got)
	}

	if err := b.ReleaseLock(context.Background(), task.ID, "u1"); err != nil {
		t.Fatalf("ReleaseLock u1: %v", err)
	}
	cur, _, _ = st.GetTask(context.Background(), task.ID)
	if cur.Locked || cur.HolderID != nil {
		t.Fatalf("expected unlocked; got %+v", cur)
	}
	if got := len(bus.named(EventLockEditCancelled)); got != 1 {
		t.Fatalf("expected one lockEditCancelled broadcast; got %d", got)
	}
}

func TestApplyUpdate_ConflictWhileLockedByOther(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Shared")

	if _, err := b.AcquireLock(context.Background(), task.ID, "u1"); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	title := "Bob's title"
	res, err := b.ApplyUpdate(context.Background(), task.ID, "u2", Patch{Title: &title})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if res.Conflict == nil {
		t.Fatalf("expected conflict")
	}
	if res.Conflict.EditedBy != "Alice" {
		t.Fatalf("expected editedBy Alice; got %q", res.Conflict.EditedBy)
	}
	if res.Conflict.CurrentVersion.Title != "Shared" {
		t.Fatalf("conflict snapshot is stale: %+v", res.Conflict.CurrentVersion)
	}

	// The holder's own update goes through and releases the lock.
	res, err = b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Title: &title})
	if err != nil {
		t.Fatalf("ApplyUpdate holder: %v", err)
	}
	if res.Conflict != nil {
		t.Fatalf("holder update conflicted: %+v", res.Conflict)
	}
	if res.Task.Locked || res.Task.HolderID != nil {
		t.Fatalf("successful edit must release the lock: %+v", res.Task)
	}

	// Bob is unblocked now.
	desc := "after release"
	res, err = b.ApplyUpdate(context.Background(), task.ID, "u2", Patch{Description: &desc})
	if err != nil || res.Conflict != nil {
		t.Fatalf("expected clean update after release; res=%+v err=%v", res, err)
	}
}

func TestApplyUpdate_ReleasesForeignLockOnCommit(t *testing.T) {
	// A stale-lease edit path: once an update commits, the lock clears no
	// matter who held it before.
	b, st, _ := newTestBoard(t, Config{LockTTL: time.Millisecond})
	task := mustCreate(t, b, "u1", "Leased")

	if _, err := b.AcquireLock(context.Background(), task.ID, "u1"); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	desc := "taken over"
	res, err := b.ApplyUpdate(context.Background(), task.ID, "u2", Patch{Description: &desc})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if res.Conflict != nil {
		t.Fatalf("expired lease should not conflict: %+v", res.Conflict)
	}

	cur, _, _ := st.GetTask(context.Background(), task.ID)
	if cur.Locked || cur.HolderID != nil {
		t.Fatalf("expected unlocked after commit; got %+v", cur)
	}
}

func TestApplyUpdate_BaseVersionMismatchConflicts(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Versioned")

	desc := "first edit"
	res, err := b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Description: &desc})
	if err != nil || res.Conflict != nil {
		t.Fatalf("seed update failed: res=%+v err=%v", res, err)
	}

	// A retry carrying the pre-edit version must conflict even though the
	// task is unlocked.
	stale := "stale retry"
	res, err = b.ApplyUpdate(context.Background(), task.ID, "u2", Patch{Description: &stale, BaseVersion: task.Version})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if res.Conflict == nil {
		t.Fatalf("expected version conflict")
	}
	if res.Conflict.CurrentVersion.Description != "first edit" {
		t.Fatalf("conflict snapshot missing committed edit: %+v", res.Conflict.CurrentVersion)
	}

	// Matching version succeeds.
	res, err = b.ApplyUpdate(context.Background(), task.ID, "u2", Patch{Description: &stale, BaseVersion: res.Conflict.CurrentVersion.Version})
	if err != nil || res.Conflict != nil {
		t.Fatalf("expected success with fresh baseVersion; res=%+v err=%v", res, err)
	}
}

func TestApplyUpdate_DuplicateAndReservedTitle(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})
	mustCreate(t, b, "u1", "Taken")
	task := mustCreate(t, b, "u1", "Mine")

	dup := "Taken"
	_, err := b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Title: &dup})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Reason != ReasonDuplicateTitle {
		t.Fatalf("expected DuplicateTitle; got %v", err)
	}

	reserved := "Done"
	_, err = b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Title: &reserved})
	if !errors.As(err, &ve) || ve.Reason != ReasonReservedWord {
		t.Fatalf("expected ReservedWord; got %v", err)
	}

	// Keeping your own title is not a duplicate.
	same := "Mine"
	res, err := b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Title: &same})
	if err != nil || res.Conflict != nil {
		t.Fatalf("same-title update should succeed; res=%+v err=%v", res, err)
	}
}

func TestApplyUpdate_AssigneeSetAndClear(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Assignable")

	bob := "u2"
	res, err := b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Assignee: &bob, AssigneeSet: true})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.Task.AssigneeID == nil || *res.Task.AssigneeID != "u2" {
		t.Fatalf("expected assignee u2; got %+v", res.Task.AssigneeID)
	}

	res, err = b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Assignee: nil, AssigneeSet: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if res.Task.AssigneeID != nil {
		t.Fatalf("expected assignee cleared; got %q", *res.Task.AssigneeID)
	}

	ghost := "nobody"
	_, err = b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Assignee: &ghost, AssigneeSet: true})
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "user" {
		t.Fatalf("expected user NotFound; got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	b, _, bus := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Doomed")

	if err := b.DeleteTask(context.Background(), "u1", task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if evs := bus.named(EventTaskDeleted); len(evs) != 1 || evs[0].Payload != task.ID {
		t.Fatalf("expected taskDeleted broadcast with id; got %+v", evs)
	}

	err := b.DeleteTask(context.Background(), "u1", task.ID)
	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFound on second delete; got %v", err)
	}
}

func TestSmartAssign_PicksFirstMinimumInIDOrder(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})

	// Load: u1 has 2 open tasks, u2 and u3 have 1 each. Done tasks don't count.
	assign := func(title, user string, status model.Status) {
		task := mustCreate(t, b, "u1", title)
		st := status
		res, err := b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Assignee: &user, AssigneeSet: true, Status: &st})
		if err != nil || res.Conflict != nil {
			t.Fatalf("seed %q: res=%+v err=%v", title, res, err)
		}
	}
	assign("a1", "u1", model.StatusTodo)
	assign("a2", "u1", model.StatusInProgress)
	assign("b1", "u2", model.StatusTodo)
	assign("b2", "u2", model.StatusDone) // terminal, excluded from load
	assign("c1", "u3", model.StatusTodo)

	target := mustCreate(t, b, "u1", "needs an owner")
	got, err := b.SmartAssign(context.Background(), "u1", target.ID)
	if err != nil {
		t.Fatalf("SmartAssign: %v", err)
	}
	if got.AssigneeID == nil || *got.AssigneeID != "u2" {
		t.Fatalf("expected u2 (first minimum in id order); got %+v", got.AssigneeID)
	}
}

func TestSmartAssign_NoUsers(t *testing.T) {
	st := memory.New()
	bus := &recordingBus{}
	b := New(st, bus, Config{})

	task := model.Task{ID: "t1", Title: "orphan", Status: model.StatusTodo, Priority: model.PriorityLow, CreatorID: "gone", Version: 1}
	if err := st.InsertTask(context.Background(), &task); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}

	if _, err := b.SmartAssign(context.Background(), "gone", "t1"); !errors.Is(err, ErrNoUsersAvailable) {
		t.Fatalf("expected ErrNoUsersAvailable; got %v", err)
	}
}

func TestSmartAssign_NotFound(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{})
	_, err := b.SmartAssign(context.Background(), "u1", "missing")
	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFound; got %v", err)
	}
}

func TestLockTTL_ExpiredLockIsUnlocked(t *testing.T) {
	b, _, _ := newTestBoard(t, Config{LockTTL: time.Millisecond})
	task := mustCreate(t, b, "u1", "Expiring")

	if _, err := b.AcquireLock(context.Background(), task.ID, "u1"); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	out, err := b.AcquireLock(context.Background(), task.ID, "u2")
	if err != nil {
		t.Fatalf("AcquireLock after expiry: %v", err)
	}
	if !out.Acquired {
		t.Fatalf("expected takeover of expired lock; holder=%q", out.HolderID)
	}
}

func TestConcurrentUpdates_SameTaskSerialized(t *testing.T) {
	b, st, _ := newTestBoard(t, Config{})
	task := mustCreate(t, b, "u1", "Hot")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			desc := "edit"
			res, err := b.ApplyUpdate(context.Background(), task.ID, "u1", Patch{Description: &desc})
			if err != nil || res.Conflict != nil {
				t.Errorf("update failed: res=%+v err=%v", res, err)
			}
		}()
	}
	wg.Wait()

	cur, _, _ := st.GetTask(context.Background(), task.ID)
	if cur.Version != int64(1+n) {
		t.Fatalf("lost updates: version=%d want %d", cur.Version, 1+n)
	}
}
