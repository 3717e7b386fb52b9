// Package reorder turns a resolved drag gesture into board changes: where the dragged task
// lands, which columns are renumbered, and the batch of positional updates to persist.
package reorder

import (
	"errors"
	"fmt"

	"planboard/internal/model"
	"planboard/internal/statusutil"
)

// OrderStep is the spacing between renumbered order indexes.
const OrderStep = 1000

var (
	ErrDoingLocked    = errors.New("tasks enter and leave doing only through start/stop")
	ErrTaskNotFound   = errors.New("dragged task not found on the board")
	ErrNoTarget       = errors.New("drop target could not be resolved")
	ErrTargetNotFound = errors.New("drop target task not found on the board")
	ErrTimelineTarget = errors.New("timeline drops are planned with PlanTimelineDrop")
)

// Move is the planned result of a column or sibling drop. Kanban is the board after the
// move; Updates carries the new order index of every task in each affected column.
type Move struct {
	Kanban   model.Kanban         `json:"kanban"`
	Updates  []model.ReorderInput `json:"updates"`
	Affected []model.Status       `json:"affected"`
	Noop     bool                 `json:"noop"`
}

// PlanMove plans dropping draggedID on target. The input board is not modified.
func PlanMove(k model.Kanban, draggedID string, target Target) (Move, error) {
	from, fromIdx, ok := k.Find(draggedID)
	if !ok {
		return Move{}, ErrTaskNotFound
	}

	var to model.Status
	toIdx := -1
	switch target.Kind {
	case KindColumn:
		to = target.Column
	case KindTask:
		if target.TaskID == draggedID {
			return Move{Kanban: k.Clone(), Noop: true}, nil
		}
		s, i, ok := k.Find(target.TaskID)
		if !ok {
			return Move{}, ErrTargetNotFound
		}
		to, toIdx = s, i
	case KindTimelineSlot:
		return Move{}, ErrTimelineTarget
	default:
		return Move{}, ErrNoTarget
	}

	if from == model.StatusDoing || to == model.StatusDoing {
		return Move{}, ErrDoingLocked
	}
	if !statusutil.IsValid(to) {
		return Move{}, fmt.Errorf("unknown column %q", to)
	}

	out := k.Clone()
	if from == to {
		tasks := out.Column(from)
		if toIdx < 0 {
			toIdx = len(tasks) - 1
		}
		if toIdx == fromIdx {
			return Move{Kanban: out, Noop: true}, nil
		}
		tasks = arrayMove(tasks, fromIdx, toIdx)
		Renumber(tasks)
		out.SetColumn(from, tasks)
		return Move{
			Kanban:   out,
			Updates:  updatesFor(tasks, "", ""),
			Affected: []model.Status{from},
		}, nil
	}

	src := out.Column(from)
	moved := src[fromIdx]
	src = append(src[:fromIdx:fromIdx], src[fromIdx+1:]...)
	moved.Status = to

	dst := out.Column(to)
	if toIdx < 0 || toIdx > len(dst) {
		toIdx = len(dst)
	}
	next := make([]model.Task, 0, len(dst)+1)
	next = append(next, dst[:toIdx]...)
	next = append(next, moved)
	next = append(next, dst[toIdx:]...)

	Renumber(src)
	Renumber(next)
	out.SetColumn(from, src)
	out.SetColumn(to, next)

	updates := updatesFor(src, "", "")
	updates = append(updates, updatesFor(next, moved.ID, to)...)
	return Move{
		Kanban:   out,
		Updates:  updates,
		Affected: []model.Status{from, to},
	}, nil
}

// Renumber assigns order_index = (position+1)*OrderStep in place.
func Renumber(tasks []model.Task) {
	for i := range tasks {
		tasks[i].OrderIndex = int64(i+1) * OrderStep
	}
}

// arrayMove removes the element at from and reinserts it at to, shifting the elements in
// between. The input slice is reused.
func arrayMove(tasks []model.Task, from, to int) []model.Task {
	if from == to || from < 0 || from >= len(tasks) {
		return tasks
	}
	if to < 0 {
		to = 0
	}
	if to >= len(tasks) {
		to = len(tasks) - 1
	}
	moved := tasks[from]
	if from < to {
		copy(tasks[from:to], tasks[from+1:to+1])
	} else {
		copy(tasks[to+1:from+1], tasks[to:from])
	}
	tasks[to] = moved
	return tasks
}

func updatesFor(tasks []model.Task, movedID string, status model.Status) []model.ReorderInput {
	out := make([]model.ReorderInput, 0, len(tasks))
	for _, t := range tasks {
		in := model.ReorderInput{ID: t.ID, OrderIndex: t.OrderIndex}
		if movedID != "" && t.ID == movedID {
			s := status
			in.Status = &s
		}
		out = append(out, in)
	}
	return out
}
