package reorder

import (
	"planboard/internal/model"
)

type TargetKind string

const (
	KindColumn       TargetKind = "column"
	KindTask         TargetKind = "task"
	KindTimelineSlot TargetKind = "timeline-slot"
)

// Slot locates a drop on the timeline: Fraction is the position along the time axis in
// [0,1]; DayColumn selects the day in week mode.
type Slot struct {
	Fraction  float64 `json:"fraction"`
	DayColumn int     `json:"dayColumn"`
}

// Target is a resolved drop target.
type Target struct {
	Kind   TargetKind   `json:"kind"`
	Column model.Status `json:"column,omitempty"`
	TaskID string       `json:"taskId,omitempty"`
	Slot   Slot         `json:"slot"`
}

func ColumnTarget(s model.Status) Target { return Target{Kind: KindColumn, Column: s} }
func TaskTarget(id string) Target       { return Target{Kind: KindTask, TaskID: id} }
func SlotTarget(s Slot) Target          { return Target{Kind: KindTimelineSlot, Slot: s} }

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Gesture is what the presentation layer knows about a finished drag. Any of the target
// signals may be missing after a fast release or a drop on a prohibited zone.
type Gesture struct {
	DraggedTaskID  string       `json:"draggedTaskId"`
	SourceColumn   model.Status `json:"sourceColumn"`
	DropTarget     *Target      `json:"dropTarget,omitempty"`
	LastOverTarget *Target      `json:"lastOverTarget,omitempty"`
	LastPointer    *Point       `json:"lastPointer,omitempty"`
	LastRect       *Rect        `json:"lastRect,omitempty"`
}

type Resolver interface {
	Resolve(g Gesture) (Target, bool)
}

type ResolverFunc func(g Gesture) (Target, bool)

func (f ResolverFunc) Resolve(g Gesture) (Target, bool) { return f(g) }

// HitTester maps a screen coordinate to whatever target is under it.
type HitTester interface {
	HitTest(p Point) (Target, bool)
}

// Chain tries resolvers in order and stops at the first one that yields a target.
type Chain []Resolver

func (c Chain) Resolve(g Gesture) (Target, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if t, ok := r.Resolve(g); ok {
			return t, true
		}
	}
	return Target{}, false
}

// DefaultChain resolves, most to least precise: the reported drop target, the last target
// seen during the drag, a hit-test at the last pointer position, and a hit-test at the
// center of the dragged element's last bounding rect. ht may be nil, in which case only
// the first two steps apply.
func DefaultChain(ht HitTester) Chain {
	c := Chain{
		ResolverFunc(fromDropTarget),
		ResolverFunc(fromLastOver),
	}
	if ht != nil {
		c = append(c, PointerHit{HitTester: ht}, RectCenterHit{HitTester: ht})
	}
	return c
}

func fromDropTarget(g Gesture) (Target, bool) {
	if g.DropTarget == nil || !valid(*g.DropTarget) {
		return Target{}, false
	}
	return *g.DropTarget, true
}

func fromLastOver(g Gesture) (Target, bool) {
	if g.LastOverTarget == nil || !valid(*g.LastOverTarget) {
		return Target{}, false
	}
	return *g.LastOverTarget, true
}

type PointerHit struct{ HitTester HitTester }

func (r PointerHit) Resolve(g Gesture) (Target, bool) {
	if g.LastPointer == nil {
		return Target{}, false
	}
	t, ok := r.HitTester.HitTest(*g.LastPointer)
	return t, ok && valid(t)
}

type RectCenterHit struct{ HitTester HitTester }

func (r RectCenterHit) Resolve(g Gesture) (Target, bool) {
	if g.LastRect == nil {
		return Target{}, false
	}
	t, ok := r.HitTester.HitTest(g.LastRect.Center())
	return t, ok && valid(t)
}

func valid(t Target) bool {
	switch t.Kind {
	case KindColumn:
		return t.Column != ""
	case KindTask:
		return t.TaskID != ""
	case KindTimelineSlot:
		return true
	}
	return false
}
