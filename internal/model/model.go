package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses returns the board columns in display order. The labels double as
// reserved words for task titles.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(s) {
	case string(StatusTodo):
		return StatusTodo, nil
	case string(StatusInProgress):
		return StatusInProgress, nil
	case string(StatusDone):
		return StatusDone, nil
	default:
		return "", fmt.Errorf("invalid status: %q (expected Todo|In Progress|Done)", s)
	}
}

// IsReservedTitle reports whether a title collides with a column label.
// Exact, case-sensitive match.
func IsReservedTitle(title string) bool {
	for _, st := range Statuses() {
		if title == string(st) {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func ParsePriority(s string) (Priority, error) {
	switch strings.TrimSpace(s) {
	case string(PriorityLow):
		return PriorityLow, nil
	case string(PriorityMedium):
		return PriorityMedium, nil
	case string(PriorityHigh):
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("invalid priority: %q (expected Low|Medium|High)", s)
	}
}

type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	AssigneeID  *string  `json:"assignedUser,omitempty"`
	CreatorID   string   `json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version increases by one on every committed edit. Clients may echo it
	// back as baseVersion so a retry after a conflict cannot silently clobber
	// a third party's commit.
	Version int64 `json:"version"`

	// Advisory edit lock. HolderID is set iff Locked is true.
	Locked   bool       `json:"isBeingEdited"`
	HolderID *string    `json:"editedBy,omitempty"`
	LockedAt *time.Time `json:"editedAt,omitempty"`
}

// Clone returns a snapshot safe to hand to callers and broadcast payloads.
func (t *Task) Clone() Task {
	cp := *t
	if t.AssigneeID != nil {
		v := *t.AssigneeID
		cp.AssigneeID = &v
	}
	if t.HolderID != nil {
		v := *t.HolderID
		cp.HolderID = &v
	}
	if t.LockedAt != nil {
		v := *t.LockedAt
		cp.LockedAt = &v
	}
	return cp
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type ActionType string

const (
	ActionCreate      ActionType = "create"
	ActionEdit        ActionType = "edit"
	ActionDelete      ActionType = "delete"
	ActionSmartAssign ActionType = "smart-assign"
)

// ActionRecord is an append-only audit entry, written exactly once per
// successful mutating operation.
type ActionRecord struct {
	ID         string     `json:"id"`
	ActionType ActionType `json:"actionType"`
	ActorID    string     `json:"userId"`
	TaskID     string     `json:"taskId"`
	Timestamp  time.Time  `json:"timestamp"`
	Details    string     `json:"details"`
}
