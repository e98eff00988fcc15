// Package judgeservice implements the submission-flow glue: given a
// problem's already-registered procedure and a submission's source code,
// it converts to a runtime procedure, drives the runner, and folds the
// per-node results back into a submission aggregate plus per-testcase
// rows (convert → runner.New → Runner.Run → remap RuntimeId results to
// DepId), and mirrors nova's internal/workflow/service.go for the
// create-row-then-judge-asynchronously shape.
package judgeservice

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/arclight-oj/judge/internal/convert"
	"github.com/arclight-oj/judge/internal/domain"
	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/logging"
	"github.com/arclight-oj/judge/internal/presets"
	"github.com/arclight-oj/judge/internal/procedure/registered"
	"github.com/arclight-oj/judge/internal/runner"
	"github.com/arclight-oj/judge/internal/verdict"
)

// ProcedureLoader fetches the registered procedure for a problem,
// produced ahead of time by internal/registerer (directly, or via
// internal/presets.BuildNormalJudge followed by registerer.Register).
type ProcedureLoader interface {
	Load(ctx context.Context, problemID string) (registered.Procedure, error)
}

// NameLookup resolves DepIds back to the human-readable names they were
// registered under, so a testPhase_* result can be re-attached to its
// testcase name.
type NameLookup interface {
	GetMany(ctx context.Context, depIDs []ids.DepId) (map[ids.DepId]string, error)
}

// SubmissionStore persists the submission row and its per-testcase
// results.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s domain.Submission) error
	UpdateSubmissionResult(ctx context.Context, s domain.Submission) error
	InsertTestcaseResults(ctx context.Context, results []domain.TestcaseResult) error
}

// IDGenerator mints a fresh submission id. Left pluggable (rather than
// fixed to uuid) so callers matching an existing external id scheme can
// supply their own.
type IDGenerator func() string

// Service wires a problem's registered procedure, its name table, a job
// service-backed runner, and a submission store into one judge flow.
type Service struct {
	procedures ProcedureLoader
	names      NameLookup
	jobService runner.JobService
	store      SubmissionStore
	newID      IDGenerator
	log        *slog.Logger
}

// New constructs a Service.
func New(procedures ProcedureLoader, names NameLookup, jobService runner.JobService, store SubmissionStore, newID IDGenerator) *Service {
	return &Service{
		procedures: procedures,
		names:      names,
		jobService: jobService,
		store:      store,
		newID:      newID,
		log:        logging.Op(),
	}
}

// SubmitRequest is the submission-side input: a problem, a user-authored
// source, and the resource limits it will be judged under.
type SubmitRequest struct {
	ProblemID      string
	UserID         string
	Language       string
	Source         string
	TimeLimitMs    int64
	MemoryLimitKiB int64
}

// Submit allocates a submission id, writes a pending (WJ) row, and
// returns immediately; the judge itself runs asynchronously.
// the caller (an HTTP handler out of this core's scope) is expected to
// poll or subscribe for the submission's eventual result.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	id := s.newID()
	sub := domain.Submission{
		ID:        id,
		ProblemID: req.ProblemID,
		UserID:    req.UserID,
		Language:  req.Language,
		Source:    req.Source,
		Status:    domain.StatusWJ,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return "", fmt.Errorf("judge service: create submission: %w", err)
	}

	go s.judge(context.Background(), id, req)

	return id, nil
}

// judge runs the full convert→run→persist pipeline for one submission.
// Errors here are recorded onto the submission row as StatusIE rather
// than propagated, since this runs detached from the Submit caller.
// StatusIE, not CE: a run failure (job-service death, a place_file/
// execute error, a timeout, a malformed result) means the judge itself
// broke, not that the user's program failed to compile.
func (s *Service) judge(ctx context.Context, submissionID string, req SubmitRequest) {
	result, err := s.run(ctx, req)
	if err != nil {
		s.log.Error("judge service: judge run failed", "submission_id", submissionID, "error", err)
		s.finish(ctx, submissionID, domain.Submission{Status: domain.StatusIE, Message: err.Error()}, nil)
		return
	}
	s.finish(ctx, submissionID, result.aggregate, result.testcases)
}

func (s *Service) finish(ctx context.Context, submissionID string, aggregate domain.Submission, testcases []domain.TestcaseResult) {
	aggregate.ID = submissionID
	aggregate.FinishedAt = time.Now()
	if err := s.store.UpdateSubmissionResult(ctx, aggregate); err != nil {
		s.log.Error("judge service: update submission result failed", "submission_id", submissionID, "error", err)
	}
	for i := range testcases {
		testcases[i].SubmissionID = submissionID
	}
	if len(testcases) > 0 {
		if err := s.store.InsertTestcaseResults(ctx, testcases); err != nil {
			s.log.Error("judge service: insert testcase results failed", "submission_id", submissionID, "error", err)
		}
	}
}

type judgeResult struct {
	aggregate domain.Submission
	testcases []domain.TestcaseResult
}

func (s *Service) run(ctx context.Context, req SubmitRequest) (judgeResult, error) {
	proc, err := s.procedures.Load(ctx, req.ProblemID)
	if err != nil {
		return judgeResult{}, fmt.Errorf("load registered procedure: %w", err)
	}

	labels := map[string]string{
		presets.SubmissionSourceLabel: req.Source,
		presets.LanguageLabel:         req.Language,
		presets.TimeLimitMsLabel:      strconv.FormatInt(req.TimeLimitMs, 10),
		presets.MemoryLimitKiBLabel:   strconv.FormatInt(req.MemoryLimitKiB, 10),
	}

	runtimeProc, runtimeToDep, err := convert.Convert(proc, labels)
	if err != nil {
		return judgeResult{}, fmt.Errorf("convert to runtime procedure: %w", err)
	}

	r, err := runner.New(ctx, s.jobService, runtimeProc)
	if err != nil {
		return judgeResult{}, fmt.Errorf("build runner: %w", err)
	}

	runtimeResults, err := r.Run(ctx)
	if err != nil {
		return judgeResult{}, fmt.Errorf("run: %w", err)
	}

	depResults := make(map[ids.DepId]verdict.JobResult, len(runtimeResults))
	depIDs := make([]ids.DepId, 0, len(runtimeResults))
	for runtimeID, res := range runtimeResults {
		depID, ok := runtimeToDep[runtimeID]
		if !ok {
			continue
		}
		depResults[depID] = res
		depIDs = append(depIDs, depID)
	}

	names, err := s.names.GetMany(ctx, depIDs)
	if err != nil {
		return judgeResult{}, fmt.Errorf("resolve node names: %w", err)
	}

	return foldResults(depResults, names), nil
}

// foldResults applies the fold rules: every testPhase_* Displayable
// becomes a per-testcase row; summaryPhase's Displayable unconditionally
// sets the aggregate; compilePhase's Displayable sets the aggregate only
// if it is still the WJ sentinel (summaryPhase never ran because of an
// upstream Stop).
func foldResults(depResults map[ids.DepId]verdict.JobResult, names map[ids.DepId]string) judgeResult {
	aggregate := domain.Submission{Status: domain.StatusWJ}
	var testcases []domain.TestcaseResult
	var summary, compile *verdict.Displayable

	for depID, result := range depResults {
		name, ok := names[depID]
		if !ok {
			continue
		}
		jr, ok := result.(verdict.ExecutionJobResult)
		if !ok {
			continue
		}
		disp, ok := jr.Result.(verdict.Displayable)
		if !ok {
			continue
		}

		switch {
		case name == presets.SummaryPhase:
			d := disp
			summary = &d
		case name == presets.CompilePhase:
			d := disp
			compile = &d
		case presets.IsTestPhase(name):
			tcName, ok := presets.TestcaseNameFromJobName(name)
			if !ok {
				continue
			}
			testcases = append(testcases, testcaseRow(tcName, disp))
		}
	}

	switch {
	case summary != nil:
		applyDisplayable(&aggregate, *summary)
	case compile != nil:
		applyDisplayable(&aggregate, *compile)
	}

	return judgeResult{aggregate: aggregate, testcases: testcases}
}

func testcaseRow(name string, d verdict.Displayable) domain.TestcaseResult {
	row := domain.TestcaseResult{
		TestcaseName: name,
		Status:       domain.FromVerdictStatus(d.Status),
		Score:        d.Score,
		TimeMs:       d.TimeMs,
		MemoryKiB:    d.MemoryKiB,
	}
	if d.Message != nil {
		row.Message = *d.Message
	}
	return row
}

func applyDisplayable(s *domain.Submission, d verdict.Displayable) {
	s.Status = domain.FromVerdictStatus(d.Status)
	s.Score = d.Score
	s.TimeMs = d.TimeMs
	s.MemoryKiB = d.MemoryKiB
	if d.Message != nil {
		s.Message = *d.Message
	}
}
