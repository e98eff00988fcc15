package contentstore

import (
	"context"
	"sync"
	"time"

	"github.com/arclight-oj/judge/internal/ids"
)

// ResourceRefTable tracks how many registered procedures currently
// reference each ResourceId, plus a last-update timestamp used to gate
// the sweeper's grace window. registerer.Register calls IncrRef once per
// distinct ResourceId it binds — a ResourceId shared by several DepIds
// (deduped identical text) is still one row here. Nothing in this
// module calls DecrRef; it is left to the caller that removes a problem.
type ResourceRefTable interface {
	IncrRef(ctx context.Context, id ids.ResourceId) error
	DecrRef(ctx context.Context, id ids.ResourceId) error
	// ListIdle returns ResourceIds at refcount 0 whose last update is
	// older than olderThan, oldest first, capped at limit.
	ListIdle(ctx context.Context, olderThan time.Time, limit int) ([]ids.ResourceId, error)
	// Touch refreshes id's timestamp without changing its refcount,
	// used to defer a ResourceId whose removal failed transiently.
	Touch(ctx context.Context, id ids.ResourceId) error
	// Delete removes id's row entirely, called once its blob has been
	// removed from the backing store.
	Delete(ctx context.Context, id ids.ResourceId) error
}

type refEntry struct {
	count     int
	updatedAt time.Time
}

// InMemoryResourceRefTable is a mutex-guarded map implementation, the
// default for tests and single-process deployments.
type InMemoryResourceRefTable struct {
	mu      sync.Mutex
	entries map[ids.ResourceId]*refEntry
	now     func() time.Time
}

// NewInMemoryResourceRefTable returns an empty InMemoryResourceRefTable.
func NewInMemoryResourceRefTable() *InMemoryResourceRefTable {
	return &InMemoryResourceRefTable{
		entries: make(map[ids.ResourceId]*refEntry),
		now:     time.Now,
	}
}

func (t *InMemoryResourceRefTable) IncrRef(_ context.Context, id ids.ResourceId) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		e = &refEntry{}
		t.entries[id] = e
	}
	e.count++
	e.updatedAt = t.now()
	return nil
}

func (t *InMemoryResourceRefTable) DecrRef(_ context.Context, id ids.ResourceId) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		e = &refEntry{}
		t.entries[id] = e
	}
	if e.count > 0 {
		e.count--
	}
	e.updatedAt = t.now()
	return nil
}

func (t *InMemoryResourceRefTable) ListIdle(_ context.Context, olderThan time.Time, limit int) ([]ids.ResourceId, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idle []ids.ResourceId
	for id, e := range t.entries {
		if e.count == 0 && e.updatedAt.Before(olderThan) {
			idle = append(idle, id)
		}
	}
	sortResourceIdsByUpdatedAt(idle, t.entries)
	if limit > 0 && len(idle) > limit {
		idle = idle[:limit]
	}
	return idle, nil
}

func sortResourceIdsByUpdatedAt(idle []ids.ResourceId, entries map[ids.ResourceId]*refEntry) {
	for i := 1; i < len(idle); i++ {
		for j := i; j > 0 && entries[idle[j]].updatedAt.Before(entries[idle[j-1]].updatedAt); j-- {
			idle[j], idle[j-1] = idle[j-1], idle[j]
		}
	}
}

func (t *InMemoryResourceRefTable) Touch(_ context.Context, id ids.ResourceId) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return &NotFound{ResourceID: id.String()}
	}
	e.updatedAt = t.now()
	return nil
}

func (t *InMemoryResourceRefTable) Delete(_ context.Context, id ids.ResourceId) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
	return nil
}
