// Package runner evaluates a runtime.Procedure's DAG against a job
// service: it places every file-backed node up front, then schedules
// each execution as soon as all of its dependencies have an outcome,
// fanning out independent work and stopping the downstream of any node
// whose result says Stop.
package runner

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/jobservice"
	"github.com/arclight-oj/judge/internal/procedure/runtime"
	"github.com/arclight-oj/judge/internal/verdict"
)

// JobService is the subset of *jobservice.JobService the runner needs,
// narrowed to an interface so tests can substitute a fake.
type JobService interface {
	Reserve(ctx context.Context, count int) ([]*jobservice.ReservationToken, error)
	PlaceFile(ctx context.Context, conf jobservice.FileConf) (jobservice.OutcomeToken, error)
	Execute(ctx context.Context, token *jobservice.ReservationToken, deps []jobservice.ResolvedDependency, timeReservedMs int64) (jobservice.ExecuteResult, jobservice.OutcomeToken, error)
}

type execConf struct {
	token          *jobservice.ReservationToken
	dependencies   []runtime.Dependency
	timeReservedMs int64
}

// Runner holds the mutable state of one run: which outcomes have
// materialized so far, which executions are still waiting on
// dependencies, and the accumulated per-node results.
type Runner struct {
	jobService JobService
	fileConfs  map[ids.RuntimeId]jobservice.FileConf

	mu        sync.Mutex
	outcomes  map[ids.RuntimeId]jobservice.OutcomeToken
	outputs   map[ids.RuntimeId]verdict.JobResult
	execConfs map[ids.RuntimeId]execConf
}

// New reserves one execution slot per execution node in procedure and
// returns a Runner ready to Run. Reservation happens eagerly, up front,
// matching a create_exec_confs-style resolution pass.
func New(ctx context.Context, js JobService, procedure runtime.Procedure) (*Runner, error) {
	fileConfs := make(map[ids.RuntimeId]jobservice.FileConf, len(procedure.Texts)+len(procedure.RuntimeTexts)+len(procedure.EmptyDirectories))
	for _, t := range procedure.Texts {
		fileConfs[t.RuntimeId] = jobservice.FileConfText{ResourceID: t.ResourceId}
	}
	for _, rt := range procedure.RuntimeTexts {
		fileConfs[rt.RuntimeId] = jobservice.FileConfRuntimeText{Content: rt.Content}
	}
	for _, ed := range procedure.EmptyDirectories {
		fileConfs[ed.RuntimeId] = jobservice.FileConfEmptyDirectory{}
	}

	execConfs := make(map[ids.RuntimeId]execConf, len(procedure.Executions))
	if len(procedure.Executions) > 0 {
		tokens, err := js.Reserve(ctx, len(procedure.Executions))
		if err != nil {
			return nil, fmt.Errorf("reserve executions: %w", err)
		}
		for i, exec := range procedure.Executions {
			execConfs[exec.RuntimeId] = execConf{
				token:          tokens[i],
				dependencies:   exec.Dependencies,
				timeReservedMs: exec.TimeReservedMs,
			}
		}
	}

	return &Runner{
		jobService: js,
		fileConfs:  fileConfs,
		outcomes:   make(map[ids.RuntimeId]jobservice.OutcomeToken),
		outputs:    make(map[ids.RuntimeId]verdict.JobResult),
		execConfs:  execConfs,
	}, nil
}

// Run drives the DAG to completion and returns one JobResult per
// runtime node that was either executed or early-exited. File-only
// nodes (texts, runtime texts, empty directories) do not themselves
// appear in the result map — only executions do, since only executions
// produce a verdict.
func (r *Runner) Run(ctx context.Context) (map[ids.RuntimeId]verdict.JobResult, error) {
	g, ctx := errgroup.WithContext(ctx)

	if len(r.fileConfs) == 0 {
		if err := r.runNext(ctx, g, nil); err != nil {
			return nil, err
		}
	} else {
		for runtimeID, conf := range r.fileConfs {
			runtimeID, conf := runtimeID, conf
			g.Go(func() error {
				return r.runFileJob(ctx, g, runtimeID, conf)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for runtimeID := range r.execConfs {
		r.outputs[runtimeID] = verdict.EarlyExit{}
	}
	result := make(map[ids.RuntimeId]verdict.JobResult, len(r.outputs))
	for k, v := range r.outputs {
		result[k] = v
	}
	return result, nil
}

func (r *Runner) runFileJob(ctx context.Context, g *errgroup.Group, runtimeID ids.RuntimeId, conf jobservice.FileConf) error {
	outcome, err := r.jobService.PlaceFile(ctx, conf)
	if err != nil {
		return fmt.Errorf("place file for %s: %w", runtimeID, err)
	}
	snapshot := r.recordOutcome(runtimeID, outcome)
	return r.runNext(ctx, g, snapshot)
}

func (r *Runner) runExecutionJob(ctx context.Context, g *errgroup.Group, runtimeID ids.RuntimeId, conf execConf, deps []jobservice.ResolvedDependency) error {
	execResult, outputOutcome, err := r.jobService.Execute(ctx, conf.token, deps, conf.timeReservedMs)
	if err != nil {
		return fmt.Errorf("execute %s: %w", runtimeID, err)
	}

	parsed, err := verdict.Parse(execResult.Stdout, execResult.ExitCode)
	if err != nil {
		return fmt.Errorf("parse output for %s: %w", runtimeID, err)
	}

	if parsed.Continue() == verdict.Continue {
		snapshot := r.recordOutcome(runtimeID, outputOutcome)
		if err := r.runNext(ctx, g, snapshot); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.outputs[runtimeID] = verdict.ExecutionJobResult{Result: parsed}
	r.mu.Unlock()
	return nil
}

// recordOutcome stores outcome under runtimeID and returns a snapshot
// of every outcome recorded so far, mirroring new_outcome's
// clone-under-lock pattern.
func (r *Runner) recordOutcome(runtimeID ids.RuntimeId, outcome jobservice.OutcomeToken) map[ids.RuntimeId]jobservice.OutcomeToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[runtimeID] = outcome
	snapshot := make(map[ids.RuntimeId]jobservice.OutcomeToken, len(r.outcomes))
	for k, v := range r.outcomes {
		snapshot[k] = v
	}
	return snapshot
}

// runNext finds every still-pending execution whose dependencies are
// now fully satisfied by outcomes, removes it from the pending set, and
// fans each one out as its own goroutine. This is the DAG's
// ready-scheduler critical section: the membership test and the
// removal from execConfs happen atomically under the same lock so two
// concurrent calls can never schedule the same execution twice.
func (r *Runner) runNext(ctx context.Context, g *errgroup.Group, outcomes map[ids.RuntimeId]jobservice.OutcomeToken) error {
	type ready struct {
		runtimeID ids.RuntimeId
		conf      execConf
		deps      []jobservice.ResolvedDependency
	}

	r.mu.Lock()
	var readyJobs []ready
	for runtimeID, conf := range r.execConfs {
		resolved := make([]jobservice.ResolvedDependency, 0, len(conf.dependencies))
		satisfied := true
		for _, dep := range conf.dependencies {
			outcome, ok := outcomes[dep.RuntimeId]
			if !ok {
				satisfied = false
				break
			}
			resolved = append(resolved, jobservice.ResolvedDependency{EnvvarName: dep.EnvvarName, Outcome: outcome})
		}
		if satisfied {
			readyJobs = append(readyJobs, ready{runtimeID: runtimeID, conf: conf, deps: resolved})
		}
	}
	for _, rj := range readyJobs {
		delete(r.execConfs, rj.runtimeID)
	}
	r.mu.Unlock()

	for _, rj := range readyJobs {
		rj := rj
		g.Go(func() error {
			return r.runExecutionJob(ctx, g, rj.runtimeID, rj.conf, rj.deps)
		})
	}
	return nil
}
