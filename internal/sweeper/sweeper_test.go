package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arclight-oj/judge/internal/contentstore"
	"github.com/arclight-oj/judge/internal/ids"
)

type fakeBlobStore struct {
	removed   map[ids.ResourceId]bool
	failForID ids.ResourceId
	hasFail   bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{removed: make(map[ids.ResourceId]bool)}
}

func (b *fakeBlobStore) Remove(_ context.Context, id ids.ResourceId) error {
	if b.hasFail && id == b.failForID {
		return errors.New("transient remove failure")
	}
	b.removed[id] = true
	return nil
}

// ttl is kept small so tests don't need a fake clock: real time.Sleep
// crosses it in a few milliseconds.
const ttl = 20 * time.Millisecond

func TestSweepDeletesIdleResourcesAndLeavesReferencedOnes(t *testing.T) {
	refs := contentstore.NewInMemoryResourceRefTable()
	blobs := newFakeBlobStore()
	ctx := context.Background()

	idle := ids.NewResourceId()
	referenced := ids.NewResourceId()

	if err := refs.IncrRef(ctx, idle); err != nil {
		t.Fatalf("IncrRef: %v", err)
	}
	if err := refs.DecrRef(ctx, idle); err != nil {
		t.Fatalf("DecrRef: %v", err)
	}
	if err := refs.IncrRef(ctx, referenced); err != nil {
		t.Fatalf("IncrRef: %v", err)
	}

	time.Sleep(2 * ttl)

	s := New(refs, blobs, Config{TTL: ttl})
	s.Sweep(ctx)

	if !blobs.removed[idle] {
		t.Error("expected the idle resource to be removed")
	}
	if blobs.removed[referenced] {
		t.Error("expected the still-referenced resource to survive")
	}

	remaining, err := refs.ListIdle(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	for _, id := range remaining {
		if id == idle {
			t.Error("expected the idle resource's refcount row to be deleted after removal")
		}
	}
}

func TestSweepDefersOnTransientRemoveFailure(t *testing.T) {
	refs := contentstore.NewInMemoryResourceRefTable()
	blobs := newFakeBlobStore()
	ctx := context.Background()

	stale := ids.NewResourceId()
	if err := refs.IncrRef(ctx, stale); err != nil {
		t.Fatalf("IncrRef: %v", err)
	}
	if err := refs.DecrRef(ctx, stale); err != nil {
		t.Fatalf("DecrRef: %v", err)
	}
	blobs.hasFail = true
	blobs.failForID = stale

	time.Sleep(2 * ttl)

	s := New(refs, blobs, Config{TTL: ttl})
	s.Sweep(ctx)

	if blobs.removed[stale] {
		t.Fatal("expected the failing remove to not mark the resource removed")
	}

	// Immediately after the deferred sweep, stale's timestamp has just
	// been refreshed, so it is not idle relative to the same TTL window.
	idleNow, err := refs.ListIdle(ctx, time.Now().Add(-ttl), 10)
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	for _, id := range idleNow {
		if id == stale {
			t.Fatal("expected the deferred resource's timestamp to be refreshed, not idle right after deferral")
		}
	}

	time.Sleep(2 * ttl)

	idleLater, err := refs.ListIdle(ctx, time.Now().Add(-ttl), 10)
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	found := false
	for _, id := range idleLater {
		if id == stale {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the deferred resource to become idle again once the TTL elapses from its refreshed timestamp")
	}
}

func TestSweepRespectsBatchSize(t *testing.T) {
	refs := contentstore.NewInMemoryResourceRefTable()
	blobs := newFakeBlobStore()
	ctx := context.Background()

	var all []ids.ResourceId
	for i := 0; i < 5; i++ {
		id := ids.NewResourceId()
		if err := refs.IncrRef(ctx, id); err != nil {
			t.Fatalf("IncrRef: %v", err)
		}
		if err := refs.DecrRef(ctx, id); err != nil {
			t.Fatalf("DecrRef: %v", err)
		}
		all = append(all, id)
	}

	time.Sleep(2 * ttl)

	s := New(refs, blobs, Config{TTL: ttl, BatchSize: 2})
	s.Sweep(ctx)

	removedCount := 0
	for _, id := range all {
		if blobs.removed[id] {
			removedCount++
		}
	}
	if removedCount != 2 {
		t.Fatalf("expected exactly 2 resources removed in one sweep, got %d", removedCount)
	}
}
