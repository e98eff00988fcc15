package contentstore

import (
	"context"
	"sync"

	"github.com/arclight-oj/judge/internal/ids"
)

// NameTable is the per-problem DepId→name side table.
// Names let the submission-flow glue re-attach a per-testcase verdict to the human-readable
// testcase name it was authored under.
type NameTable interface {
	InsertMany(ctx context.Context, problemID string, entries map[ids.DepId]string) error
	GetMany(ctx context.Context, depIDs []ids.DepId) (map[ids.DepId]string, error)
	RemoveMany(ctx context.Context, problemID string) error
	GetManyByProblemID(ctx context.Context, problemID string) (map[ids.DepId]string, error)
}

// InMemoryNameTable is a mutex-guarded double-indexed map, the default
// for tests and for single-process deployments.
type InMemoryNameTable struct {
	mu        sync.RWMutex
	names     map[ids.DepId]string
	byProblem map[string]map[ids.DepId]struct{}
}

// NewInMemoryNameTable returns an empty InMemoryNameTable.
func NewInMemoryNameTable() *InMemoryNameTable {
	return &InMemoryNameTable{
		names:     make(map[ids.DepId]string),
		byProblem: make(map[string]map[ids.DepId]struct{}),
	}
}

func (t *InMemoryNameTable) InsertMany(_ context.Context, problemID string, entries map[ids.DepId]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byProblem[problemID] == nil {
		t.byProblem[problemID] = make(map[ids.DepId]struct{})
	}
	for id, name := range entries {
		t.names[id] = name
		t.byProblem[problemID][id] = struct{}{}
	}
	return nil
}

func (t *InMemoryNameTable) GetMany(_ context.Context, depIDs []ids.DepId) (map[ids.DepId]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ids.DepId]string, len(depIDs))
	for _, id := range depIDs {
		if name, ok := t.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (t *InMemoryNameTable) RemoveMany(_ context.Context, problemID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.byProblem[problemID] {
		delete(t.names, id)
	}
	delete(t.byProblem, problemID)
	return nil
}

func (t *InMemoryNameTable) GetManyByProblemID(_ context.Context, problemID string) (map[ids.DepId]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ids.DepId]string, len(t.byProblem[problemID]))
	for id := range t.byProblem[problemID] {
		out[id] = t.names[id]
	}
	return out, nil
}
