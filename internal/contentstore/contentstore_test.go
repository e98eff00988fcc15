package contentstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/arclight-oj/judge/internal/ids"
)

func TestInMemoryBlobStoreRoundTrip(t *testing.T) {
	store := NewInMemoryBlobStore()
	id := ids.NewResourceId()

	if err := store.Register(context.Background(), id, "hello"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	content, err := store.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if content != "hello" {
		t.Fatalf("expected %q, got %q", "hello", content)
	}

	if err := store.Remove(context.Background(), id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Fetch(context.Background(), id); err == nil {
		t.Fatal("expected NotFound after remove")
	}
}

func TestInMemoryBlobStoreFetchMissing(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, err := store.Fetch(context.Background(), ids.NewResourceId())
	if _, ok := err.(*NotFound); !ok {
		t.Fatalf("expected *NotFound, got %T (%v)", err, err)
	}
}

func TestInMemoryNameTableScopesByProblem(t *testing.T) {
	table := NewInMemoryNameTable()
	depA, depB := ids.NewDepId(), ids.NewDepId()

	if err := table.InsertMany(context.Background(), "p1", map[ids.DepId]string{depA: "a", depB: "b"}); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	got, err := table.GetManyByProblemID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetManyByProblemID: %v", err)
	}
	if len(got) != 2 || got[depA] != "a" || got[depB] != "b" {
		t.Fatalf("unexpected result: %+v", got)
	}

	got2, err := table.GetMany(context.Background(), []ids.DepId{depA})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got2) != 1 || got2[depA] != "a" {
		t.Fatalf("unexpected GetMany result: %+v", got2)
	}

	if err := table.RemoveMany(context.Background(), "p1"); err != nil {
		t.Fatalf("RemoveMany: %v", err)
	}
	got3, err := table.GetManyByProblemID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetManyByProblemID after remove: %v", err)
	}
	if len(got3) != 0 {
		t.Fatalf("expected empty result after RemoveMany, got %+v", got3)
	}
}

func TestCachedBlobStorePopulatesOnMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()

	backend := NewInMemoryBlobStore()
	cached := &CachedBlobStore{
		backend: backend,
		client:  redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		prefix:  "test:",
		ttl:     0,
	}

	id := ids.NewResourceId()
	if err := backend.Register(context.Background(), id, "from backend"); err != nil {
		t.Fatalf("backend.Register: %v", err)
	}

	content, err := cached.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if content != "from backend" {
		t.Fatalf("expected %q, got %q", "from backend", content)
	}

	if !mr.Exists("test:" + id.String()) {
		t.Fatal("expected Fetch to populate the cache on miss")
	}
}

func TestCachedBlobStoreRegisterWritesThrough(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()

	backend := NewInMemoryBlobStore()
	cached := &CachedBlobStore{
		backend: backend,
		client:  redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		prefix:  "test:",
		ttl:     0,
	}

	id := ids.NewResourceId()
	if err := cached.Register(context.Background(), id, "content"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	backendContent, err := backend.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("backend.Fetch: %v", err)
	}
	if backendContent != "content" {
		t.Fatalf("expected backend write-through, got %q", backendContent)
	}
}
