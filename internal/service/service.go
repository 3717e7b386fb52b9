// Package service defines the task service contract the planning store talks to.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"planboard/internal/model"
)

type Code string

const (
	CodeNotFound               Code = "NotFound"
	CodeInvalidStateTransition Code = "InvalidStateTransition"
	CodeConflict               Code = "Conflict"
	CodeStaleState             Code = "StaleState"
	CodeUnknown                Code = "UnknownError"
)

// Error is the error shape returned by a task service.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NotFound(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

func InvalidTransition(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidStateTransition, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the service code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	return CodeUnknown
}

// TaskService is the remote task backend. UI state is an opaque JSON object per vault;
// GetUIState returns nil when nothing was stored yet.
type TaskService interface {
	ListToday(ctx context.Context, date string) (*model.TodayDTO, error)
	CreateTask(ctx context.Context, in model.CreateTaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, in model.UpdateTaskInput) error
	ReorderTasks(ctx context.Context, items []model.ReorderInput) error
	MarkDone(ctx context.Context, id string) error
	ReopenTask(ctx context.Context, id string) error
	StartTask(ctx context.Context, id string) error
	StopTask(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error
	GetUIState(ctx context.Context, vaultID string) (json.RawMessage, error)
	SetUIState(ctx context.Context, vaultID string, partial json.RawMessage) error
}
