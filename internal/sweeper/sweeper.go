// Package sweeper implements the resource-lifecycle sweeper: a
// ticker-driven task that finds content-store ResourceIds whose
// refcount has sat at zero for longer than a grace window and removes
// them from both the blob store and the refcount side table. Grounded
// on nova's internal/pool cleanup loop (ticker + context-cancellable
// background goroutine) and internal/jobtracker.Tracker's cleanupLoop
// (TTL-gated map sweep), adapted here to a content-addressed blob store
// instead of in-memory invocation records.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/arclight-oj/judge/internal/contentstore"
	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/logging"
)

// BlobStore is the subset of the content store the sweeper needs:
// removing a blob once its ResourceId is confirmed idle.
type BlobStore interface {
	Remove(ctx context.Context, id ids.ResourceId) error
}

// Config tunes the sweeper's cadence, grace window, and batch size.
// The TTL and batch size are deployment heuristics, not
// part of the core contract, so they live here rather than in the
// content store or registerer.
type Config struct {
	// Interval between sweeps. Defaults to 1 minute.
	Interval time.Duration
	// TTL is how long a ResourceId must sit at refcount 0 before it is
	// eligible for removal. Defaults to 1 hour.
	TTL time.Duration
	// BatchSize caps how many ResourceIds one sweep inspects. Defaults
	// to 10.
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	return c
}

// Sweeper periodically reclaims orphan content-store blobs.
type Sweeper struct {
	refs   contentstore.ResourceRefTable
	blobs  BlobStore
	config Config
	log    *slog.Logger

	now func() time.Time
}

// New constructs a Sweeper over a refcount table and a blob store.
func New(refs contentstore.ResourceRefTable, blobs BlobStore, config Config) *Sweeper {
	return &Sweeper{
		refs:   refs,
		blobs:  blobs,
		config: config.withDefaults(),
		log:    logging.Op(),
		now:    time.Now,
	}
}

// Run blocks, sweeping on Config.Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: list idle ResourceIds older than the TTL, and
// for each, remove its blob. On success the refcount row is deleted
// too; on failure the row's timestamp is refreshed so it is retried no
// sooner than the next full TTL window.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.config.TTL)
	idle, err := s.refs.ListIdle(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		s.log.Error("sweeper: list idle resources failed", "error", err)
		return
	}

	for _, id := range idle {
		if err := s.blobs.Remove(ctx, id); err != nil {
			s.log.Warn("sweeper: remove blob failed, deferring", "resource_id", id.String(), "error", err)
			if touchErr := s.refs.Touch(ctx, id); touchErr != nil {
				s.log.Error("sweeper: touch failed after deferred remove", "resource_id", id.String(), "error", touchErr)
			}
			continue
		}
		if err := s.refs.Delete(ctx, id); err != nil {
			s.log.Error("sweeper: delete refcount row failed after blob removal", "resource_id", id.String(), "error", err)
		}
	}
}
