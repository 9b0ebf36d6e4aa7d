package event

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/klokku/eventboard/internal/utils"
)

// MemoryRepository keeps events in process memory. Nothing survives a restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []Event
	clock  utils.Clock
}

func NewMemoryRepository(clock utils.Clock) *MemoryRepository {
	return &MemoryRepository{
		events: make([]Event, 0, 16),
		clock:  clock,
	}
}

func (r *MemoryRepository) List(ctx context.Context) ([]Event, error) {
	r.mu.RLock()
	result := make([]Event, len(r.events))
	copy(result, r.events)
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return before(result[i], result[j])
	})
	return result, nil
}

func (r *MemoryRepository) GetById(ctx context.Context, id string) (Event, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(id)
	if idx == -1 {
		return Event{}, false, nil
	}
	return r.events[idx], true, nil
}

func (r *MemoryRepository) Create(ctx context.Context, data EventData) (Event, error) {
	event := Event{
		Id:        uuid.NewString(),
		Title:     data.Title,
		Date:      data.Date,
		Time:      data.Time,
		Notes:     data.Notes,
		Recurring: data.Recurring,
		CreatedAt: r.clock.Now(),
	}

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	return event, nil
}

// Update merges the patch under the write lock, so concurrent updates of the same event are
// applied one after the other.
func (r *MemoryRepository) Update(ctx context.Context, id string, patch EventPatch) (Event, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx == -1 {
		return Event{}, false, nil
	}
	r.events[idx] = patch.apply(r.events[idx])
	return r.events[idx], true, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx == -1 {
		return false, nil
	}
	r.events = append(r.events[:idx], r.events[idx+1:]...)
	return true, nil
}

// indexOf scans linearly; callers must hold the lock.
func (r *MemoryRepository) indexOf(id string) int {
	for idx, event := range r.events {
		if event.Id == id {
			return idx
		}
	}
	return -1
}
