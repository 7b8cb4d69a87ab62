package board

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

type ValidationReason string

const (
	ReasonDuplicateTitle ValidationReason = "duplicate-title"
	ReasonReservedWord   ValidationReason = "reserved-word"
	ReasonMissingField   ValidationReason = "missing-field"
)

type ValidationError struct {
	Reason ValidationReason
	Field  string
}

func (e ValidationError) Error() string {
	switch e.Reason {
	case ReasonDuplicateTitle:
		return "task title must be unique"
	case ReasonReservedWord:
		return "task title cannot match column names"
	case ReasonMissingField:
		return fmt.Sprintf("missing required field: %s", e.Field)
	default:
		return string(e.Reason)
	}
}

// ErrTitleExists is returned by Store implementations when an insert or
// update violates title uniqueness. The resolver maps it to a
// ValidationError so races lost at the store surface the same way as ones
// caught by the pre-check.
var ErrTitleExists = errors.New("task title already exists")

var ErrNoUsersAvailable = errors.New("no users available for assignment")
