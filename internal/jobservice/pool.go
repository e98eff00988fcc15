// Package jobservice implements the worker-pool half of the execution engine: reserving
// worker capacity, placing files onto a worker ahead of an execution,
// and running one script to completion. It generalizes the warm-VM pool
// pattern of nova's internal/pool (one VM serving one function,
// acquired from a LIFO idle stack under a sync.Cond, cold-started via
// singleflight) to "one worker executing one script", via the same
// reservation/execution/outcome shape throughout.
package jobservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/arclight-oj/judge/internal/observability"
)

type pooledWorker struct {
	worker  Worker
	tainted bool
}

// JobService reserves and runs workers. A reservation grants the right
// to call Execute once; the pool provisions new workers lazily to chase
// the desired count and tears down surplus ones once reservations are
// released.
type JobService struct {
	factory  WorkerFactory
	timeouts Timeouts

	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*pooledWorker
	desired int
	actual  int
	closed  bool

	group singleflight.Group
}

// NewJobService constructs a pool backed by factory. Timeouts bounds
// both worker provisioning (ConnectTimeout) and script execution
// (ExecutionTimeout); a zero value for either disables that bound.
func NewJobService(factory WorkerFactory, timeouts Timeouts) *JobService {
	js := &JobService{factory: factory, timeouts: timeouts}
	js.cond = sync.NewCond(&js.mu)
	return js
}

// Reserve grants count reservation tokens and, if the pool does not
// already have enough warm or in-flight workers to cover the new
// desired total, kicks off provisioning in the background. It never
// blocks on provisioning completing — matching
// InstancePool::handle_reservation, which replies to the caller
// immediately and spawns new Instance actors asynchronously.
func (js *JobService) Reserve(ctx context.Context, count int) ([]*ReservationToken, error) {
	if count <= 0 {
		return nil, &ReservationError{Reason: fmt.Sprintf("invalid reservation count %d", count)}
	}

	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil, &ReservationError{Reason: "job service is shut down"}
	}
	js.desired += count
	toProvision := js.desired - js.actual
	if toProvision > 0 {
		js.actual += toProvision
	}
	workersDesired.Set(float64(js.desired))
	workersActual.Set(float64(js.actual))
	js.mu.Unlock()

	for i := 0; i < toProvision; i++ {
		go js.provisionOne(context.Background())
	}

	tokens := make([]*ReservationToken, count)
	for i := range tokens {
		tokens[i] = NewReservationToken()
	}
	reservationsTotal.Add(float64(count))
	return tokens, nil
}

// provisionOne cold-starts a single worker and, on success, pushes it
// onto the idle stack and wakes one waiter. Concurrent provisioning
// attempts are not deduped by singleflight here because each caller
// wants a distinct worker (unlike nova's pool, where concurrent callers
// racing for the same function's first VM genuinely want to share one
// cold start).
func (js *JobService) provisionOne(ctx context.Context) {
	connectCtx := ctx
	var cancel context.CancelFunc
	if js.timeouts.ConnectTimeout > 0 {
		connectCtx, cancel = context.WithTimeout(ctx, js.timeouts.ConnectTimeout)
		defer cancel()
	}

	w, err := js.factory.NewWorker(connectCtx)
	js.mu.Lock()
	defer js.mu.Unlock()
	if err != nil {
		js.actual--
		workersActual.Set(float64(js.actual))
		js.cond.Broadcast()
		return
	}
	if js.closed {
		go w.Terminate(context.Background())
		js.actual--
		workersActual.Set(float64(js.actual))
		return
	}
	js.idle = append(js.idle, &pooledWorker{worker: w})
	js.cond.Broadcast()
}

// acquireWorker blocks until a warm worker is available or ctx is
// cancelled, taking the most recently idled one off the stack (LIFO,
// same warm-cache preference as nova's takeWarmVMLocked).
func (js *JobService) acquireWorker(ctx context.Context) (*pooledWorker, error) {
	stop := context.AfterFunc(ctx, func() {
		js.mu.Lock()
		js.cond.Broadcast()
		js.mu.Unlock()
	})
	defer stop()

	js.mu.Lock()
	defer js.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if js.closed {
			return nil, &ReservationError{Reason: "job service is shut down"}
		}
		if n := len(js.idle); n > 0 {
			pw := js.idle[n-1]
			js.idle = js.idle[:n-1]
			return pw, nil
		}
		js.cond.Wait()
	}
}

func (js *JobService) returnWorker(pw *pooledWorker) {
	js.mu.Lock()
	shrink := pw.tainted || js.closed || js.actual > js.desired
	if shrink {
		js.actual--
		workersActual.Set(float64(js.actual))
	} else {
		js.idle = append(js.idle, pw)
		js.cond.Broadcast()
	}
	js.mu.Unlock()

	if shrink {
		pw.worker.Terminate(context.Background())
	}
}

func (js *JobService) releaseReservation() {
	js.mu.Lock()
	if js.desired > 0 {
		js.desired--
	}
	workersDesired.Set(float64(js.desired))
	js.mu.Unlock()
}

// PlaceFile materializes conf onto a warm worker ahead of time (used to
// stage a submission's source or a testcase's input before it is
// referenced as an execution dependency).
//
// Concurrent requests to place the same content (the common case: many
// queued executions all depending on the same testcase input or the
// same compiled binary) are coalesced through a singleflight group
// keyed on the FileConf's identity, so the content is transferred onto
// a worker once rather than once per caller — the same dedup nova's
// pool applies to concurrent cold starts of the same function, here
// applied to concurrent placements of the same resource.
func (js *JobService) PlaceFile(ctx context.Context, conf FileConf) (OutcomeToken, error) {
	ctx, span := observability.StartSpan(ctx, "jobservice.place_file")
	defer span.End()

	transfer := func() (interface{}, error) {
		connectCtx := ctx
		var cancel context.CancelFunc
		if js.timeouts.ConnectTimeout > 0 {
			connectCtx, cancel = context.WithTimeout(ctx, js.timeouts.ConnectTimeout)
			defer cancel()
		}

		pw, err := js.acquireWorker(connectCtx)
		if err != nil {
			return OutcomeToken{}, fmt.Errorf("no worker available: %w", err)
		}

		outcome, err := pw.worker.Transfer(ctx, conf)
		if err != nil {
			pw.tainted = true
			js.returnWorker(pw)
			return OutcomeToken{}, fmt.Errorf("transfer failed: %w", err)
		}

		js.returnWorker(pw)
		return outcome, nil
	}

	var v interface{}
	var err error
	if key, dedupable := placeFileKey(conf); dedupable {
		v, err, _ = js.group.Do(key, transfer)
	} else {
		v, err = transfer()
	}
	if err != nil {
		observability.SetSpanError(span, err)
		return OutcomeToken{}, &FilePlacementError{Reason: "place file", Cause: err}
	}

	observability.SetSpanOK(span)
	return v.(OutcomeToken), nil
}

// placeFileKey returns a singleflight key identifying conf's content,
// for the FileConf kinds where two placements with equal keys are
// genuinely interchangeable outcomes (content-addressed: same bytes,
// same result). An EmptyDirectory conf carries no content identity — a
// fresh one is requested each time — so it is never deduped.
func placeFileKey(conf FileConf) (string, bool) {
	switch c := conf.(type) {
	case FileConfText:
		return "text:" + c.ResourceID.String(), true
	case FileConfRuntimeText:
		return "runtime:" + c.Content, true
	default:
		return "", false
	}
}

// Execute consumes token and runs one script to completion.
// The request always carries an auto-minted OUTPUT_PATH
// outcome pointing at a fresh empty directory, injected before
// delegating to the instance pool. The worker that ran the execution is
// torn down rather than returned to the idle pool if Execute failed, honoring the
// single-tenant-per-worker invariant: a worker that may have left
// corrupted local state must never serve another execution.
func (js *JobService) Execute(ctx context.Context, token *ReservationToken, deps []ResolvedDependency, timeReservedMs int64) (ExecuteResult, OutcomeToken, error) {
	if !token.release() {
		return ExecuteResult{}, OutcomeToken{}, &ReservationError{Reason: "token already consumed"}
	}
	defer js.releaseReservation()

	ctx, span := observability.StartSpan(ctx, "jobservice.execute")
	defer span.End()

	connectCtx := ctx
	var connectCancel context.CancelFunc
	if js.timeouts.ConnectTimeout > 0 {
		connectCtx, connectCancel = context.WithTimeout(ctx, js.timeouts.ConnectTimeout)
		defer connectCancel()
	}

	pw, err := js.acquireWorker(connectCtx)
	if err != nil {
		execErr := &ExecutionError{Kind: ExecutionErrorTimeout, Reason: "no worker became available", Cause: err}
		executionsTotal.WithLabelValues("connect_timeout").Inc()
		observability.SetSpanError(span, execErr)
		return ExecuteResult{}, OutcomeToken{}, execErr
	}

	execCtx := ctx
	var execCancel context.CancelFunc
	if js.timeouts.ExecutionTimeout > 0 {
		execCtx, execCancel = context.WithTimeout(ctx, js.timeouts.ExecutionTimeout)
		defer execCancel()
	}

	outputID := uuid.New()
	start := time.Now()
	result, err := pw.worker.Execute(execCtx, ExecuteRequest{
		OutcomeID:      outputID,
		Dependencies:   deps,
		TimeReservedMs: timeReservedMs,
	})
	executionDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		pw.tainted = true
		js.returnWorker(pw)
		kind := ExecutionErrorInternal
		label := "internal_error"
		if execCtx.Err() == context.DeadlineExceeded {
			kind = ExecutionErrorTimeout
			label = "execution_timeout"
		}
		execErr := &ExecutionError{Kind: kind, Reason: "worker execute failed", Cause: err}
		executionsTotal.WithLabelValues(label).Inc()
		observability.SetSpanError(span, execErr)
		return ExecuteResult{}, OutcomeToken{}, execErr
	}

	js.returnWorker(pw)
	executionsTotal.WithLabelValues("ok").Inc()
	observability.SetSpanOK(span)
	return result, result.OutputPath, nil
}

// Shutdown terminates every idle worker and marks the pool closed; any
// in-flight Reserve/Execute/PlaceFile calls still complete, but no new
// ones are admitted and provisioned workers are torn down as they are
// returned.
func (js *JobService) Shutdown(ctx context.Context) error {
	js.mu.Lock()
	js.closed = true
	idle := js.idle
	js.idle = nil
	js.cond.Broadcast()
	js.mu.Unlock()

	var firstErr error
	for _, pw := range idle {
		if err := pw.worker.Terminate(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
