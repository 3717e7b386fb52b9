package statusutil

import (
	"fmt"
	"strings"

	"planboard/internal/model"
)

// NormalizeStatus parses a status id. The legacy "backlog" column maps to todo.
func NormalizeStatus(s string) (model.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "backlog":
		return model.StatusTodo, nil
	case "doing":
		return model.StatusDoing, nil
	case "verify":
		return model.StatusVerify, nil
	case "done":
		return model.StatusDone, nil
	case "":
		return "", fmt.Errorf("invalid status: empty")
	default:
		return "", fmt.Errorf("invalid status: %q (expected todo|doing|verify|done)", strings.TrimSpace(s))
	}
}

func NormalizePriority(s string) (model.Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return model.PriorityNone, nil
	case "p0", "urgent":
		return model.PriorityP0, nil
	case "p1", "high":
		return model.PriorityP1, nil
	case "p2", "medium":
		return model.PriorityP2, nil
	case "p3", "low":
		return model.PriorityP3, nil
	default:
		return "", fmt.Errorf("invalid priority: %q (expected p0|p1|p2|p3)", strings.TrimSpace(s))
	}
}

func IsValid(s model.Status) bool {
	for _, st := range model.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

func IsEndState(s model.Status) bool {
	return s == model.StatusDone
}

// RequiresDueDate reports whether tasks in this status must carry a due date.
func RequiresDueDate(s model.Status) bool {
	return s == model.StatusTodo || s == model.StatusDoing
}

// ColumnIndex returns the display position of a status column, or -1.
func ColumnIndex(s model.Status) int {
	for i, st := range model.Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

func Label(s model.Status) string {
	switch s {
	case model.StatusTodo:
		return "To do"
	case model.StatusDoing:
		return "Doing"
	case model.StatusVerify:
		return "Verify"
	case model.StatusDone:
		return "Done"
	}
	return string(s)
}
