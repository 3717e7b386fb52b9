package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"planboard/internal/model"
)

// fakeService records calls. A call whose key ("Method:id") has a hold channel announces
// itself on entered and blocks until the test sends its result.
type fakeService struct {
	mu      sync.Mutex
	today   *model.TodayDTO
	calls   []string
	errs    map[string]error
	holds   map[string]chan error
	entered chan string
	onList  func(n int) (*model.TodayDTO, error)
	lists   int

	uiWrites []json.RawMessage
	uiState  json.RawMessage
	nextID   int
}

func newFakeService(today *model.TodayDTO) *fakeService {
	return &fakeService{
		today:   today,
		errs:    map[string]error{},
		holds:   map[string]chan error{},
		entered: make(chan string, 32),
	}
}

func (f *fakeService) failWith(key string, err error) {
	f.mu.Lock()
	f.errs[key] = err
	f.mu.Unlock()
}

// hold makes the next call with key block; send its result on the returned channel.
func (f *fakeService) hold(key string) chan error {
	ch := make(chan error, 1)
	f.mu.Lock()
	f.holds[key] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeService) called(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeService) record(key string) error {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	ch := f.holds[key]
	delete(f.holds, key)
	err := f.errs[key]
	f.mu.Unlock()
	if ch != nil {
		f.entered <- key
		return <-ch
	}
	return err
}

func (f *fakeService) ListToday(ctx context.Context, date string) (*model.TodayDTO, error) {
	f.mu.Lock()
	f.lists++
	n := f.lists
	fn := f.onList
	today := f.today.Clone()
	f.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	if err := f.record("ListToday:" + date); err != nil {
		return nil, err
	}
	return today, nil
}

func (f *fakeService) CreateTask(ctx context.Context, in model.CreateTaskInput) (model.Task, error) {
	if err := f.record("CreateTask:" + in.Title); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("srv-%d", f.nextID)
	f.mu.Unlock()
	return model.Task{
		ID:          id,
		Title:       in.Title,
		Status:      in.Status,
		DueDate:     in.DueDate,
		EstimateMin: in.EstimateMin,
		OrderIndex:  9000,
		CreatedAt:   time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeService) UpdateTask(ctx context.Context, in model.UpdateTaskInput) error {
	return f.record("UpdateTask:" + in.ID)
}

func (f *fakeService) ReorderTasks(ctx context.Context, items []model.ReorderInput) error {
	return f.record(fmt.Sprintf("ReorderTasks:%d", len(items)))
}

func (f *fakeService) MarkDone(ctx context.Context, id string) error {
	return f.record("MarkDone:" + id)
}

func (f *fakeService) ReopenTask(ctx context.Context, id string) error {
	return f.record("ReopenTask:" + id)
}

func (f *fakeService) StartTask(ctx context.Context, id string) error {
	return f.record("StartTask:" + id)
}

func (f *fakeService) StopTask(ctx context.Context, id string) error {
	return f.record("StopTask:" + id)
}

func (f *fakeService) DeleteTask(ctx context.Context, id string) error {
	return f.record("DeleteTask:" + id)
}

func (f *fakeService) GetUIState(ctx context.Context, vaultID string) (json.RawMessage, error) {
	if err := f.record("GetUIState:" + vaultID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uiState, nil
}

func (f *fakeService) SetUIState(ctx context.Context, vaultID string, partial json.RawMessage) error {
	if err := f.record("SetUIState:" + vaultID); err != nil {
		return err
	}
	f.mu.Lock()
	f.uiWrites = append(f.uiWrites, partial)
	f.mu.Unlock()
	return nil
}
