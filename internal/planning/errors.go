package planning

import (
	"context"
	"errors"
	"fmt"

	"planboard/internal/reorder"
	"planboard/internal/service"
)

type Code string

const (
	CodeBusy                   Code = "Busy"
	CodeNotFound               Code = "NotFound"
	CodeInvalidStateTransition Code = "InvalidStateTransition"
	CodeConflict               Code = "Conflict"
	CodeStaleState             Code = "StaleState"
	CodeInvalidInput           Code = "InvalidInput"
	CodeUnknown                Code = "UnknownError"
)

var (
	ErrBusy             = errors.New("another change to this task is still being saved")
	ErrDoingLocked      = reorder.ErrDoingLocked
	ErrDueDateRequired  = errors.New("due date required: set a due date (YYYY-MM-DD) to start this task")
	ErrEstimateRequired = reorder.ErrEstimateRequired
	ErrConflictDeclined = errors.New("scheduling cancelled: the slot overlaps other tasks")
	ErrNoTarget         = reorder.ErrNoTarget
)

// Error is returned by every failed store operation.
type Error struct {
	Op      string
	TaskID  string
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.TaskID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf classifies err. Errors that are not from the store or the service are UnknownError.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	switch {
	case errors.Is(err, ErrBusy):
		return CodeBusy
	case errors.Is(err, ErrDoingLocked), errors.Is(err, ErrDueDateRequired):
		return CodeInvalidStateTransition
	case errors.Is(err, ErrEstimateRequired), errors.Is(err, ErrNoTarget), errors.Is(err, reorder.ErrTimelineTarget):
		return CodeInvalidInput
	case errors.Is(err, ErrConflictDeclined):
		return CodeConflict
	case errors.Is(err, reorder.ErrTaskNotFound), errors.Is(err, reorder.ErrTargetNotFound):
		return CodeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeUnknown
	}
	switch service.CodeOf(err) {
	case service.CodeNotFound:
		return CodeNotFound
	case service.CodeInvalidStateTransition:
		return CodeInvalidStateTransition
	case service.CodeConflict:
		return CodeConflict
	case service.CodeStaleState:
		return CodeStaleState
	}
	return CodeUnknown
}

func newError(op, taskID string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		out := *pe
		if out.Op == "" {
			out.Op = op
		}
		if out.TaskID == "" {
			out.TaskID = taskID
		}
		return &out
	}
	msg := err.Error()
	var se *service.Error
	if errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}
	return &Error{Op: op, TaskID: taskID, Code: CodeOf(err), Message: msg, Err: err}
}

func invalidInput(err error) *Error {
	return &Error{Code: CodeInvalidInput, Message: err.Error(), Err: err}
}
