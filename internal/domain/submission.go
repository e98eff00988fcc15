package domain

import (
	"time"

	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/verdict"
)

// SubmissionStatus is the aggregate state of a submission.
// WJ (waiting judgement) is the initial sentinel a fresh row is created
// with; compilePhase only overrides it if the aggregate is still WJ by
// the time results are processed (i.e. summaryPhase never ran).
type SubmissionStatus string

const (
	StatusWJ  SubmissionStatus = "WJ"
	StatusAC  SubmissionStatus = SubmissionStatus(verdict.StatusAC)
	StatusWA  SubmissionStatus = SubmissionStatus(verdict.StatusWA)
	StatusTLE SubmissionStatus = SubmissionStatus(verdict.StatusTLE)
	StatusMLE SubmissionStatus = SubmissionStatus(verdict.StatusMLE)
	StatusOLE SubmissionStatus = SubmissionStatus(verdict.StatusOLE)
	StatusRE  SubmissionStatus = SubmissionStatus(verdict.StatusRE)
	StatusCE  SubmissionStatus = SubmissionStatus(verdict.StatusCE)

	// StatusIE marks a submission the judge itself failed to process —
	// job-service death, a place_file/execute error, or a malformed
	// result — as distinct from CE, which is a legitimate user-program
	// verdict from the compile phase. Never derived from verdict.Status:
	// nothing in the pinned verdict set maps to it.
	StatusIE SubmissionStatus = "IE"
)

// FromVerdictStatus converts a verdict.Status into a SubmissionStatus.
func FromVerdictStatus(s verdict.Status) SubmissionStatus {
	return SubmissionStatus(s)
}

// Submission is one user's attempt at a problem.
type Submission struct {
	ID         string
	ProblemID  string
	UserID     string
	Language   string
	Source     string
	Status     SubmissionStatus
	Score      int64
	TimeMs     float64
	MemoryKiB  float64
	Message    string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// TestcaseResult is one testPhase_* node's Displayable result, re-attached
// to its human-readable testcase name via the problem's name table.
type TestcaseResult struct {
	SubmissionID string
	TestcaseName string
	Status       SubmissionStatus
	Score        int64
	TimeMs       float64
	MemoryKiB    float64
	Message      string
}

// RegisteredProblem pairs a problem id with the DepIds of its
// registered procedure's nodes. It carries neither the procedure itself
// nor the DepId→name table; internal/judgeservice does not use it.
type RegisteredProblem struct {
	ProblemID string
	DepIDs    []ids.DepId
}
