// Package planning holds the board state and applies task mutations optimistically.
//
// Every mutation claims its task ids, snapshots the current day, applies the change
// locally and notifies subscribers before the task service is called. On success a short
// delayed reload reconciles server-computed fields. On failure the snapshot is restored and
// a Notice describes what went wrong.
//
// Snapshots form a stack, one entry per in-flight operation. A failing operation whose entry
// is on top restores it exactly. A failing operation with newer entries above it restores its
// own entry, drops the newer ones and schedules a reload; those newer operations then only
// reload when they fail.
package planning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"planboard/internal/model"
	"planboard/internal/service"
	"planboard/internal/timeline"
	"planboard/internal/timemath"
)

const (
	DefaultReloadDelay        = 150 * time.Millisecond
	DefaultConflictRetryDelay = 500 * time.Millisecond
	DefaultUIStateDebounce    = 300 * time.Millisecond
	DefaultVaultID            = "default"

	reloadTimeout = 30 * time.Second
)

// Notice is the one user-facing message describing the latest failure.
type Notice struct {
	Code    Code   `json:"code"`
	Op      string `json:"op"`
	TaskID  string `json:"taskId,omitempty"`
	Message string `json:"message"`
}

// State is a deep copy of the store's observable state.
type State struct {
	TodayData *model.TodayDTO `json:"todayData"`
	UIState   model.UIState   `json:"uiState"`
	InFlight  map[string]bool `json:"inFlight"`
	Notice    *Notice         `json:"notice,omitempty"`
}

func (s State) IsInFlight(id string) bool { return s.InFlight[id] }

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithScheduler(sc Scheduler) Option {
	return func(s *Store) {
		if sc != nil {
			s.sched = sc
		}
	}
}

func WithReloadDelay(d time.Duration) Option {
	return func(s *Store) { s.reloadDelay = d }
}

func WithConflictRetryDelay(d time.Duration) Option {
	return func(s *Store) { s.retryDelay = d }
}

func WithUIStateDebounce(d time.Duration) Option {
	return func(s *Store) { s.uiDelay = d }
}

func WithVaultID(id string) Option {
	return func(s *Store) {
		if id != "" {
			s.vaultID = id
		}
	}
}

func WithTimelineConfig(cfg timeline.Config) Option {
	return func(s *Store) { s.timeline = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type snapshot struct {
	id     uint64
	today  *model.TodayDTO
	resume map[string]model.Status
}

// Store is the optimistic planning state. Construct it with New; the zero value is not usable.
type Store struct {
	svc         service.TaskService
	log         *slog.Logger
	sched       Scheduler
	now         func() time.Time
	vaultID     string
	timeline    timeline.Config
	reloadDelay time.Duration
	retryDelay  time.Duration
	uiDelay     time.Duration

	mu       sync.Mutex
	today    *model.TodayDTO // never mutated in place once stored
	date     string
	loadSeq  map[string]uint64
	inFlight map[string]bool
	snaps    []snapshot
	nextSnap uint64
	// resume remembers the status a task had before it was started.
	resume        map[string]model.Status
	notice        *Notice
	reloadPending bool
	ui            model.UIState
	uiPending     model.UIState

	reloader   *Debouncer
	uiDebounce *Debouncer

	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[int]func(State)
	nextSub  int
}

func New(svc service.TaskService, opts ...Option) *Store {
	s := &Store{
		svc:         svc,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		sched:       SystemScheduler(),
		now:         time.Now,
		vaultID:     DefaultVaultID,
		timeline:    timeline.DefaultConfig(),
		reloadDelay: DefaultReloadDelay,
		retryDelay:  DefaultConflictRetryDelay,
		uiDelay:     DefaultUIStateDebounce,
		loadSeq:     map[string]uint64{},
		inFlight:    map[string]bool{},
		resume:      map[string]model.Status{},
		ui:          model.UIState{},
		subs:        map[int]func(State){},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reloader = NewDebouncer(s.sched, s.reloadDelay, s.runReload)
	s.uiDebounce = NewDebouncer(s.sched, s.uiDelay, func() {
		_ = s.flushUI(context.Background())
	})
	return s
}

func (s *Store) VaultID() string { return s.vaultID }

func (s *Store) TimelineConfig() timeline.Config { return s.timeline }

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	st := State{
		TodayData: s.today.Clone(),
		UIState:   s.ui.Clone(),
		InFlight:  make(map[string]bool, len(s.inFlight)),
	}
	for id := range s.inFlight {
		st.InFlight[id] = true
	}
	if s.notice != nil {
		n := *s.notice
		st.Notice = &n
	}
	return st
}

// ActiveDate is the date of the last LoadToday request.
func (s *Store) ActiveDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeDateLocked()
}

func (s *Store) activeDateLocked() string {
	if s.date != "" {
		return s.date
	}
	return timemath.FormatDate(s.now())
}

// Subscribe registers fn to receive the state after every change. fn runs synchronously on
// the goroutine that made the change and must not call mutating store operations.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	st := s.State()
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// ClearNotice dismisses the current notice.
func (s *Store) ClearNotice() {
	s.mu.Lock()
	had := s.notice != nil
	s.notice = nil
	s.mu.Unlock()
	if had {
		s.notify()
	}
}

// Close cancels pending reloads and writes any pending UI state.
func (s *Store) Close(ctx context.Context) error {
	s.reloader.Stop()
	s.uiDebounce.Cancel()
	err := s.flushUI(ctx)
	s.uiDebounce.Stop()
	return err
}

// LoadToday fetches the day's snapshot. A response that is no longer the latest request for
// its date, or for a date the store has since moved away from, is discarded and LoadToday
// returns nil.
func (s *Store) LoadToday(ctx context.Context, date string) error {
	s.mu.Lock()
	if date == "" {
		date = timemath.FormatDate(s.now())
	}
	s.loadSeq[date]++
	seq := s.loadSeq[date]
	s.date = date
	s.mu.Unlock()

	started := time.Now()
	d, err := s.svc.ListToday(ctx, date)

	s.mu.Lock()
	if s.loadSeq[date] != seq || s.date != date {
		s.mu.Unlock()
		s.log.Debug("discarding stale day snapshot", "op", "load_today", "date", date, "request", seq)
		return nil
	}
	if err != nil {
		e := newError("load_today", "", err)
		s.notice = noticeFrom(e)
		s.mu.Unlock()
		s.log.Warn("load today failed", "op", "load_today", "date", date, "code", e.Code, "error", err, "elapsed_ms", time.Since(started).Milliseconds())
		s.notify()
		return e
	}
	if d == nil {
		d = &model.TodayDTO{Today: date}
	}
	s.today = d.Clone()
	// Entries of operations still in flight now roll back to the fresh server state.
	for i := range s.snaps {
		s.snaps[i].today = d.Clone()
	}
	s.mu.Unlock()

	s.log.Debug("day loaded", "op", "load_today", "date", date, "tasks", d.Kanban.Len(), "elapsed_ms", time.Since(started).Milliseconds())
	s.notify()
	return nil
}

// Reload re-fetches the active date.
func (s *Store) Reload(ctx context.Context) error {
	return s.LoadToday(ctx, s.ActiveDate())
}

func (s *Store) runReload() {
	s.mu.Lock()
	if len(s.inFlight) > 0 {
		s.reloadPending = true
		s.mu.Unlock()
		return
	}
	s.reloadPending = false
	date := s.activeDateLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	if err := s.LoadToday(ctx, date); err != nil {
		s.log.Warn("background reload failed", "date", date, "error", err)
	}
}

// txn is the view a mutation gets while the store lock is held.
type txn struct {
	s   *Store
	op  string
	d   *model.TodayDTO
	ids []string
}

func (tx *txn) claim(id string) error {
	if id == "" {
		return nil
	}
	for _, have := range tx.ids {
		if have == id {
			return nil
		}
	}
	if tx.s.inFlight[id] {
		return &Error{Op: tx.op, TaskID: id, Code: CodeBusy, Message: ErrBusy.Error(), Err: ErrBusy}
	}
	tx.s.inFlight[id] = true
	tx.ids = append(tx.ids, id)
	return nil
}

func (tx *txn) release() {
	for _, id := range tx.ids {
		delete(tx.s.inFlight, id)
	}
	tx.ids = nil
}

// pending is an operation between its optimistic apply and its remote result.
type pending struct {
	op              string
	taskID          string
	ids             []string
	snap            uint64
	started         time.Time
	reloadOnFailure bool
}

// errNothingToDo lets a mutation report that the gesture changes nothing.
var errNothingToDo = errors.New("nothing to do")

// begin claims taskID, snapshots the day and applies mutate to a copy that replaces the
// current day. mutate may claim more ids. If mutate fails nothing is changed and the
// failure is reported as a Notice.
func (s *Store) begin(op, taskID string, mutate func(tx *txn) error) (*pending, error) {
	s.mu.Lock()
	tx := &txn{s: s, op: op, d: s.today.Clone()}
	if err := tx.claim(taskID); err != nil {
		s.mu.Unlock()
		return nil, s.reject(op, taskID, err)
	}
	resume := cloneResume(s.resume)
	if mutate != nil {
		if err := mutate(tx); err != nil {
			tx.release()
			s.resume = resume
			s.mu.Unlock()
			if err == errNothingToDo {
				return nil, err
			}
			return nil, s.reject(op, taskID, err)
		}
	}
	s.nextSnap++
	snap := snapshot{id: s.nextSnap, today: s.today, resume: resume}
	s.snaps = append(s.snaps, snap)
	s.today = tx.d
	s.mu.Unlock()

	s.notify()
	return &pending{op: op, taskID: taskID, ids: tx.ids, snap: snap.id, started: time.Now()}, nil
}

// reject reports a failure that never reached the service.
func (s *Store) reject(op, taskID string, err error) error {
	e := newError(op, taskID, err)
	s.mu.Lock()
	s.notice = noticeFrom(e)
	s.mu.Unlock()
	s.log.Info("operation rejected", "op", op, "task_id", taskID, "code", e.Code, "error", e.Message)
	s.notify()
	return e
}

// finish settles p with the service result. onSuccess adjusts the current day and every
// snapshot once the server confirmed the change (for example to swap a temporary id).
func (s *Store) finish(p *pending, err error, onSuccess func(d *model.TodayDTO)) error {
	elapsed := time.Since(p.started).Milliseconds()

	s.mu.Lock()
	for _, id := range p.ids {
		delete(s.inFlight, id)
	}
	idx := -1
	for i := range s.snaps {
		if s.snaps[i].id == p.snap {
			idx = i
			break
		}
	}

	if err == nil {
		if onSuccess != nil {
			s.today = edit(s.today, onSuccess)
			for i := range s.snaps {
				s.snaps[i].today = edit(s.snaps[i].today, onSuccess)
			}
		}
		if idx >= 0 {
			s.snaps = append(s.snaps[:idx:idx], s.snaps[idx+1:]...)
		}
		s.reloadPending = false
		s.reloader.TriggerIn(s.reloadDelay)
		s.mu.Unlock()

		s.log.Info("operation succeeded", "op", p.op, "task_id", p.taskID, "elapsed_ms", elapsed)
		s.notify()
		return nil
	}

	e := newError(p.op, p.taskID, err)
	reload := p.reloadOnFailure
	delay := s.reloadDelay
	switch {
	case idx < 0:
		// An older failure already rolled back past this operation.
		reload = true
	case idx == len(s.snaps)-1:
		s.today = s.snaps[idx].today
		s.resume = s.snaps[idx].resume
		s.snaps = s.snaps[:idx]
	default:
		s.today = s.snaps[idx].today
		s.resume = s.snaps[idx].resume
		s.snaps = s.snaps[:idx]
		reload = true
	}

	switch e.Code {
	case CodeNotFound:
		if p.taskID != "" {
			s.today = edit(s.today, func(d *model.TodayDTO) { removeTask(d, p.taskID) })
			delete(s.resume, p.taskID)
		}
		reload = true
	case CodeConflict, CodeStaleState:
		reload = true
		delay = s.retryDelay
	}
	if !reload && s.reloadPending && len(s.inFlight) == 0 {
		reload = true
	}
	if reload {
		s.reloadPending = false
		s.reloader.TriggerIn(delay)
	}
	s.notice = noticeFrom(e)
	s.mu.Unlock()

	s.log.Warn("operation failed", "op", p.op, "task_id", p.taskID, "code", e.Code, "error", e.Message, "elapsed_ms", elapsed)
	s.notify()
	return e
}

func noticeFrom(e *Error) *Notice {
	return &Notice{Code: e.Code, Op: e.Op, TaskID: e.TaskID, Message: e.Message}
}

func edit(d *model.TodayDTO, fn func(d *model.TodayDTO)) *model.TodayDTO {
	if d == nil {
		return nil
	}
	out := d.Clone()
	fn(out)
	return out
}

func cloneResume(m map[string]model.Status) map[string]model.Status {
	out := make(map[string]model.Status, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
