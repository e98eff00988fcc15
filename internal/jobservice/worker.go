package jobservice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExecuteRequest is everything a worker needs to run one execution node:
// the outcome to place results under, the dependencies that must be
// staged into its working directory first, and the time budget the
// registered procedure reserved for it.
type ExecuteRequest struct {
	OutcomeID      uuid.UUID
	Dependencies   []ResolvedDependency
	TimeReservedMs int64
}

// ResolvedDependency pairs an envvar name with the outcome backing it,
// mirroring runtime.Dependency once its RuntimeId has been resolved to
// an already-placed OutcomeToken by the caller.
type ResolvedDependency struct {
	EnvvarName string
	Outcome    OutcomeToken
}

// ExecuteResult is what a worker hands back after running a script: the
// process's raw output (stdout/stderr/exit code, parsed by
// internal/verdict) plus the outcome token for whatever the execution
// left in OUTPUT_PATH.
type ExecuteResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	OutputPath OutcomeToken
}

// Worker is one ephemeral execution unit: any reachable executor
// capable of placing files and running one script at a time.
// Implementations are single-tenant — Execute must not be called again
// until the previous call returns, and a failed Execute taints the
// worker (see pool.go).
type Worker interface {
	// Transfer stages dependencies and returns an outcome token for
	// locally materialized content (used by JobService.PlaceFile to
	// push a FileConf onto a concrete worker before it is referenced by
	// an execution).
	Transfer(ctx context.Context, conf FileConf) (OutcomeToken, error)

	// Execute runs one script to completion, subject to ctx's deadline.
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)

	// Terminate tears the worker down. Called once a worker is no
	// longer desired (pool shrink) or has been tainted by a failed
	// Execute; never called twice.
	Terminate(ctx context.Context) error
}

// WorkerFactory provisions a fresh Worker — conceptually an
// EC2-instance-plus-gRPC-dial pairing, though any reachable executor
// qualifies. ConnectTimeout bounds how long provisioning itself may take.
type WorkerFactory interface {
	NewWorker(ctx context.Context) (Worker, error)
}

// WorkerFactoryFunc adapts a plain function to WorkerFactory.
type WorkerFactoryFunc func(ctx context.Context) (Worker, error)

func (f WorkerFactoryFunc) NewWorker(ctx context.Context) (Worker, error) {
	return f(ctx)
}

// Timeouts bounds the two nested waits: how long
// provisioning/connecting to a worker may take, and how long an
// individual execution may run once dispatched.
type Timeouts struct {
	ConnectTimeout   time.Duration
	ExecutionTimeout time.Duration
}
